package repository_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"checkout/internal/domain/model"
	infrarepo "checkout/internal/infra/repository"
	repo "checkout/internal/repository"
	"checkout/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 同時に引当しても在庫はマイナスにならない
func TestInventory_DecreaseStockIfEnough_Concurrent(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	inv := infrarepo.NewInventoryGormRepository(gdb)
	p := testutil.SeedProduct(t, gdb, "Pen", 100, 5)

	var ok atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := inv.DecreaseStockIfEnough(context.Background(), p.ID, 1)
			assert.NoError(t, err)
			if got {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(5), ok.Load())
	assert.Equal(t, int64(0), testutil.ProductStock(t, gdb, p.ID))
}

func TestInventory_DecreaseStockIfEnough_Insufficient(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	inv := infrarepo.NewInventoryGormRepository(gdb)
	p := testutil.SeedProduct(t, gdb, "Pen", 100, 2)
	ctx := context.Background()

	got, err := inv.DecreaseStockIfEnough(ctx, p.ID, 3)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = inv.DecreaseStockIfEnough(ctx, p.ID, 0)
	require.NoError(t, err)
	assert.False(t, got)

	assert.Equal(t, int64(2), testutil.ProductStock(t, gdb, p.ID))

	assert.ErrorIs(t, inv.IncreaseStock(ctx, 9999, 1), repo.ErrNotFound)
}

// fnがエラーならtx内の変更は全部戻る
func TestTxManagerGorm_RollbackOnError(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	tm := infrarepo.NewTxManagerGorm(gdb)
	p := testutil.SeedProduct(t, gdb, "Pen", 100, 3)
	boom := errors.New("boom")

	err := tm.WithinTx(context.Background(), func(r repo.TxRepos) error {
		ok, err := r.Inventory().DecreaseStockIfEnough(context.Background(), p.ID, 2)
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(3), testutil.ProductStock(t, gdb, p.ID))
}

func TestPaymentTransaction_IdempotentAndFinalizeOnce(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	ledger := infrarepo.NewPaymentTransactionGormRepository(gdb)
	ctx := context.Background()

	entry := model.PaymentTransaction{
		PaymentID:     1,
		TransactionID: "refund:r1",
		Type:          model.TransactionTypeRefund,
		Status:        model.TransactionStatusInitiated,
		Amount:        100,
	}
	id, err := ledger.Create(ctx, entry)
	require.NoError(t, err)

	_, err = ledger.Create(ctx, entry)
	assert.ErrorIs(t, err, repo.ErrConflict)

	open, found, err := ledger.FindOpenRefund(ctx, 1, 100)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, open.ID)

	require.NoError(t, ledger.Finalize(ctx, id, model.TransactionStatusSuccess, "rfnd_1", ""))
	// 確定済みは書き換えない
	assert.ErrorIs(t, ledger.Finalize(ctx, id, model.TransactionStatusFailed, "", "late"), repo.ErrConflict)

	list, err := ledger.ListByPaymentID(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.TransactionStatusSuccess, list[0].Status)
	assert.Equal(t, "rfnd_1", list[0].GatewayRefundID)
	assert.Empty(t, list[0].FailureReason)

	_, found, err = ledger.FindOpenRefund(ctx, 1, 100)
	require.NoError(t, err)
	assert.False(t, found)

	exists, err := ledger.ExistsByGatewayRefundID(ctx, "rfnd_1")
	require.NoError(t, err)
	assert.True(t, exists)

	sum, err := ledger.Sum(ctx, repo.TransactionFilter{
		Types:    model.RefundTransactionTypes,
		Statuses: []model.TransactionStatus{model.TransactionStatusSuccess},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), sum)
}

func TestOrder_Transition_CompareAndSwap(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	orders := infrarepo.NewOrderGormRepository(gdb)
	u := testutil.SeedUser(t, gdb, "o@example.com", model.RoleUser)
	ctx := context.Background()

	id, err := orders.Create(ctx, model.Order{
		OrderNumber:     model.NewOrderNumber(),
		UserID:          u.ID,
		AddressID:       1,
		ShippingAddress: model.ShippingAddress{Name: "Taro", PostalCode: "100-0001", Prefecture: "Tokyo", City: "Chiyoda", Line1: "1-1"},
		Status:          model.OrderStatusConfirmed,
		PaymentStatus:   model.OrderPaymentPending,
		Subtotal:        100,
		FinalAmount:     100,
		Currency:        "INR",
		IdempotencyKey:  "k1",
	})
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, orders.Transition(ctx, id, model.OrderStatusConfirmed, model.OrderStatusShipped, now))
	// 古いstatusを前提にした更新は負ける
	assert.ErrorIs(t, orders.Transition(ctx, id, model.OrderStatusConfirmed, model.OrderStatusCancelled, now), repo.ErrConflict)

	got, err := orders.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, got.Status)
	assert.NotNil(t, got.ShippedAt)
	assert.Nil(t, got.CancelledAt)

	_, found, err := orders.FindByIdempotencyKey(ctx, u.ID, "k1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestAddress_SetDefault_OnlyOne(t *testing.T) {
	gdb := testutil.NewSQLiteDB(t)
	addrs := infrarepo.NewAddressGormRepository(gdb)
	u := testutil.SeedUser(t, gdb, "a@example.com", model.RoleUser)
	a1 := testutil.SeedAddress(t, gdb, u.ID)
	a2 := testutil.SeedAddress(t, gdb, u.ID)
	ctx := context.Background()

	require.NoError(t, addrs.SetDefault(ctx, u.ID, a1.ID))
	require.NoError(t, addrs.SetDefault(ctx, u.ID, a2.ID))
	assert.ErrorIs(t, addrs.SetDefault(ctx, u.ID+1, a1.ID), repo.ErrNotFound)

	list, err := addrs.ListByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, a2.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)
}
