package usecase

import (
	"context"
	"net/http"
	"testing"
	"time"

	"checkout/internal/domain/model"
	infrarepo "checkout/internal/infra/repository"
	repo "checkout/internal/repository"
	"checkout/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotInTx(t *testing.T, tx repo.TransactionManager, userID int64, at time.Time) (model.CartSnapshot, error) {
	t.Helper()
	var snap model.CartSnapshot
	err := tx.WithinTx(context.Background(), func(r repo.TxRepos) error {
		var err error
		snap, err = takeCartSnapshot(context.Background(), r, userID, at)
		return err
	})
	return snap, err
}

func TestTakeCartSnapshot_DetachedCopy(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	tx := infrarepo.NewTxManagerGorm(gdb)
	u := testutil.SeedUser(t, gdb, "snap@example.com", model.RoleUser)
	a := testutil.SeedProduct(t, gdb, "Widget A", 100, 5)
	b := testutil.SeedProduct(t, gdb, "Widget B", 50, 5)
	itemA := testutil.SeedCartLine(t, gdb, u.ID, a, 2)
	testutil.SeedCartLine(t, gdb, u.ID, b, 1)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	snap, err := snapshotInTx(t, tx, u.ID, at)
	require.NoError(t, err)

	assert.Equal(t, u.ID, snap.UserID)
	assert.Equal(t, itemA.CartID, snap.CartID)
	assert.Equal(t, at, snap.CapturedAt)
	assert.Equal(t, int64(250), snap.Total)
	require.Len(t, snap.Lines, 2)
	assert.Equal(t, "Widget A", snap.Lines[0].ProductName)
	assert.Equal(t, int64(200), snap.Lines[0].LineTotal)
	assert.Equal(t, "Widget B", snap.Lines[1].ProductName)

	// 後からカートや商品を変えてもスナップショットは変わらない
	require.NoError(t, gdb.Model(&model.CartItem{}).Where("id = ?", itemA.ID).Update("quantity", 5).Error)
	require.NoError(t, gdb.Model(&model.Product{}).Where("id = ?", a.ID).Update("name", "Renamed").Error)
	assert.Equal(t, int64(2), snap.Lines[0].Quantity)
	assert.Equal(t, "Widget A", snap.Lines[0].ProductName)
	assert.Equal(t, int64(250), snap.Total)
}

func TestTakeCartSnapshot_EmptyCart(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	tx := infrarepo.NewTxManagerGorm(gdb)
	u := testutil.SeedUser(t, gdb, "snap@example.com", model.RoleUser)

	// カート自体が無い
	_, err := snapshotInTx(t, tx, u.ID, time.Now())
	he, ok := AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, he.Status)
	assert.Equal(t, CodeEmptyCart, he.Code)

	// カートはあるが明細が無い
	require.NoError(t, gdb.Create(&model.Cart{UserID: u.ID, Status: model.CartStatusActive}).Error)
	_, err = snapshotInTx(t, tx, u.ID, time.Now())
	he, ok = AsHTTPError(err)
	require.True(t, ok)
	assert.Equal(t, CodeEmptyCart, he.Code)
}
