package usecase_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"checkout/internal/config"
	"checkout/internal/domain/model"
	"checkout/internal/infra/gateway"
	infrarepo "checkout/internal/infra/repository"
	"checkout/internal/testutil"
	"checkout/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// SQLiteテスト環境のゲートウェイ鍵
const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

// =====================
// 通知・重複排除のテスト用実装
// =====================

type notifyRecorder struct {
	mu  sync.Mutex
	got []model.Notification
}

func (n *notifyRecorder) Dispatch(x model.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, x)
}

func (n *notifyRecorder) Kinds() []model.NotificationKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.NotificationKind, 0, len(n.got))
	for _, x := range n.got {
		out = append(out, x.Kind)
	}
	return out
}

type memDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMemDeduper() *memDeduper {
	return &memDeduper{seen: map[string]bool{}}
}

func (d *memDeduper) Seen(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[key], nil
}

func (d *memDeduper) Mark(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[key] = true
	return nil
}

// =====================
// SQLite + 本物のTxManagerGormで組み立てる
// =====================

type testEnv struct {
	db       *gorm.DB
	gw       *gateway.Client
	notices  *notifyRecorder
	deduper  *memDeduper
	carts    *usecase.CartUsecase
	checkout *usecase.CheckoutUsecase
	orders   *usecase.OrderUsecase
	payments *usecase.PaymentUsecase
	webhooks *usecase.WebhookUsecase
	admin    *usecase.AdminOrderUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb := testutil.NewSQLiteDB(t)
	tx := infrarepo.NewTxManagerGorm(gdb)
	cart := infrarepo.NewCartGormRepository(gdb)

	gw := gateway.NewClient(config.GatewayConfig{
		Mode:          config.GatewayModeSandbox,
		KeyID:         "sandbox_key",
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Timeout:       time.Second,
	})
	notices := &notifyRecorder{}
	deduper := newMemDeduper()

	checkout := usecase.NewCheckoutUsecase(
		tx,
		infrarepo.NewUserGormRepository(gdb),
		infrarepo.NewAddressGormRepository(gdb),
		gw,
		notices,
		"INR",
	)

	return &testEnv{
		db:       gdb,
		gw:       gw,
		notices:  notices,
		deduper:  deduper,
		carts:    usecase.NewCartUsecase(cart, cart, infrarepo.NewProductGormRepository(gdb)),
		checkout: checkout,
		orders:   usecase.NewOrderUsecase(tx),
		payments: usecase.NewPaymentUsecase(tx, gw, notices, checkout, "INR"),
		webhooks: usecase.NewWebhookUsecase(tx, gw, deduper, notices),
		admin:    usecase.NewAdminOrderUsecase(tx, notices),
	}
}

// 商品A(100円x2) + 商品B(50円x1) の注文を作れる状態にする
type shopFixture struct {
	user    model.User
	address model.Address
	a       model.Product
	b       model.Product
}

func seedShop(t *testing.T, e *testEnv, stockA, stockB int64) shopFixture {
	t.Helper()
	u := testutil.SeedUser(t, e.db, "buyer@example.com", model.RoleUser)
	addr := testutil.SeedAddress(t, e.db, u.ID)
	a := testutil.SeedProduct(t, e.db, "Widget A", 100, stockA)
	b := testutil.SeedProduct(t, e.db, "Widget B", 50, stockB)
	testutil.SeedCartLine(t, e.db, u.ID, a, 2)
	testutil.SeedCartLine(t, e.db, u.ID, b, 1)
	return shopFixture{user: u, address: addr, a: a, b: b}
}

// 決済済み（GATEWAY / SUCCESS）の注文を1件作る
func placeCapturedOrder(t *testing.T, e *testEnv, f shopFixture, gOrder, gPay string) usecase.OrderOutput {
	t.Helper()
	out, err := e.checkout.Checkout(context.Background(), f.user.ID, usecase.CheckoutInput{
		AddressID:        f.address.ID,
		PaymentMethod:    "GATEWAY",
		GatewayOrderID:   gOrder,
		GatewayPaymentID: gPay,
		GatewaySignature: gateway.Sign(gOrder, gPay, testKeySecret),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Payment)
	return out
}

func loadPayment(t *testing.T, gdb *gorm.DB, paymentID int64) model.Payment {
	t.Helper()
	var p model.Payment
	require.NoError(t, gdb.First(&p, paymentID).Error)
	return p
}

func loadOrder(t *testing.T, gdb *gorm.DB, orderID int64) model.Order {
	t.Helper()
	var o model.Order
	require.NoError(t, gdb.First(&o, orderID).Error)
	return o
}

func ledgerFor(t *testing.T, gdb *gorm.DB, paymentID int64) []model.PaymentTransaction {
	t.Helper()
	var txs []model.PaymentTransaction
	require.NoError(t, gdb.Where("payment_id = ?", paymentID).Order("id ASC").Find(&txs).Error)
	return txs
}

// =====================
// Helper: error contains（HTTPErrorの実装詳細に依存しない）
// =====================

func assertErrContains(t *testing.T, err error, wantSubstr string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, strings.Contains(err.Error(), wantSubstr), "err=%q want contains %q", err.Error(), wantSubstr)
	}
}

func assertHTTPError(t *testing.T, err error, status int, code usecase.ErrorCode) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "want *HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
		assert.Equal(t, code, he.Code)
	}
}

// ゲートウェイ決済が未完了（PENDING）の注文を直接作る
func seedPendingGatewayOrder(t *testing.T, e *testEnv, userID int64, gOrder string, amount int64) (model.Order, model.Payment) {
	t.Helper()
	now := time.Now()
	o := model.Order{
		OrderNumber:     model.NewOrderNumber(),
		UserID:          userID,
		AddressID:       1,
		ShippingAddress: model.ShippingAddress{Name: "Taro", PostalCode: "100-0001", Prefecture: "Tokyo", City: "Chiyoda", Line1: "1-1"},
		Status:          model.OrderStatusConfirmed,
		PaymentStatus:   model.OrderPaymentPending,
		Subtotal:        amount,
		FinalAmount:     amount,
		Currency:        "INR",
		IdempotencyKey:  "seed-" + gOrder,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, e.db.Create(&o).Error)

	p := model.Payment{
		OrderID:        o.ID,
		UserID:         userID,
		Method:         model.PaymentMethodGateway,
		GatewayOrderID: gOrder,
		Amount:         amount,
		Currency:       "INR",
		Status:         model.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, e.db.Create(&p).Error)
	return o, p
}
