package usecase_test

import (
	"context"
	"net/http"
	"testing"

	"checkout/internal/domain/model"
	"checkout/internal/testutil"
	"checkout/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartUsecase_AddToCart_MergesSameProduct(t *testing.T) {
	e := newTestEnv(t)
	u := testutil.SeedUser(t, e.db, "cart@example.com", model.RoleUser)
	p := testutil.SeedProduct(t, e.db, "Tea", 120, 5)
	ctx := context.Background()

	_, err := e.carts.AddToCart(ctx, u.ID, usecase.AddCartInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	out, err := e.carts.AddToCart(ctx, u.ID, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(3), out.Items[0].Quantity)
	assert.Equal(t, int64(360), out.Total)

	// 在庫は減らない
	assert.Equal(t, int64(5), testutil.ProductStock(t, e.db, p.ID))

	_, err = e.carts.AddToCart(ctx, u.ID, usecase.AddCartInput{ProductID: p.ID, Quantity: 3})
	assertErrContains(t, err, "stock exceeded")
}

func TestCartUsecase_AddToCart_Validation(t *testing.T) {
	e := newTestEnv(t)
	u := testutil.SeedUser(t, e.db, "cart@example.com", model.RoleUser)
	p := testutil.SeedProduct(t, e.db, "Tea", 120, 5)
	require.NoError(t, e.db.Model(&model.Product{}).Where("id = ?", p.ID).Update("is_active", false).Error)
	ctx := context.Background()

	_, err := e.carts.AddToCart(ctx, u.ID, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	assertErrContains(t, err, "product not available")

	_, err = e.carts.AddToCart(ctx, u.ID, usecase.AddCartInput{ProductID: 9999, Quantity: 1})
	assertErrContains(t, err, "product not available")

	_, err = e.carts.AddToCart(ctx, u.ID, usecase.AddCartInput{ProductID: p.ID, Quantity: 0})
	assertErrContains(t, err, "invalid quantity")

	_, err = e.carts.AddToCart(ctx, 0, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	assertHTTPError(t, err, http.StatusUnauthorized, usecase.CodeUnauthorized)
}

func TestCartUsecase_UpdateAndDelete_OwnerOnly(t *testing.T) {
	e := newTestEnv(t)
	u := testutil.SeedUser(t, e.db, "cart@example.com", model.RoleUser)
	other := testutil.SeedUser(t, e.db, "other@example.com", model.RoleUser)
	p := testutil.SeedProduct(t, e.db, "Tea", 120, 5)
	item := testutil.SeedCartLine(t, e.db, u.ID, p, 1)
	ctx := context.Background()

	// 他人の明細は404
	_, err := e.carts.UpdateCartItem(ctx, other.ID, item.ID, usecase.UpdateCartItemInput{Quantity: 2})
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)
	_, err = e.carts.DeleteCartItem(ctx, other.ID, item.ID)
	assertHTTPError(t, err, http.StatusNotFound, usecase.CodeNotFound)

	out, err := e.carts.UpdateCartItem(ctx, u.ID, item.ID, usecase.UpdateCartItemInput{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(480), out.Total)

	_, err = e.carts.UpdateCartItem(ctx, u.ID, item.ID, usecase.UpdateCartItemInput{Quantity: 6})
	assertErrContains(t, err, "stock exceeded")

	out, err = e.carts.DeleteCartItem(ctx, u.ID, item.ID)
	require.NoError(t, err)
	assert.Empty(t, out.Items)
	assert.Equal(t, int64(0), out.Total)
}

func TestCartUsecase_Snapshot(t *testing.T) {
	e := newTestEnv(t)
	u := testutil.SeedUser(t, e.db, "cart@example.com", model.RoleUser)
	ctx := context.Background()

	_, err := e.carts.Snapshot(ctx, u.ID)
	assertHTTPError(t, err, http.StatusBadRequest, usecase.CodeEmptyCart)

	a := testutil.SeedProduct(t, e.db, "A", 100, 5)
	b := testutil.SeedProduct(t, e.db, "B", 50, 5)
	testutil.SeedCartLine(t, e.db, u.ID, a, 2)
	testutil.SeedCartLine(t, e.db, u.ID, b, 1)

	snap, err := e.carts.Snapshot(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, int64(250), snap.Total)
	assert.Equal(t, "A", snap.Lines[0].ProductName)

	// 値コピーなので、後からカートを変えても変わらない
	_, err = e.carts.AddToCart(ctx, u.ID, usecase.AddCartInput{ProductID: b.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(250), snap.Total)
	assert.Equal(t, int64(1), snap.Lines[1].Quantity)
}
