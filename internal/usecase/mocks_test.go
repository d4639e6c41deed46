package usecase_test

import (
	"context"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"

	"github.com/stretchr/testify/mock"
)

// =====================
// TxManager / TxRepos mocks
// =====================

// TxManagerMock は WithinTx の中で渡す repos を固定して unit テストを回す
type TxManagerMock struct {
	mock.Mock
	Repos repo.TxRepos
}

func (m *TxManagerMock) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	// 呼ばれた事実だけ記録（ctxの具体値は問わない）
	m.Called(ctx)
	return fn(m.Repos)
}

type TxReposMock struct {
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	inventory  repo.InventoryRepository
	payments   repo.PaymentRepository
	auditLogs  repo.AuditLogRepository

	// AdminOrderUsecase では使わないが TxRepos interface を満たすために保持
	carts        repo.CartRepository
	cartItems    repo.CartItemRepository
	products     repo.ProductRepository
	transactions repo.PaymentTransactionRepository
}

func (r *TxReposMock) Orders() repo.OrderRepository                    { return r.orders }
func (r *TxReposMock) OrderItems() repo.OrderItemRepository            { return r.orderItems }
func (r *TxReposMock) Inventory() repo.InventoryRepository             { return r.inventory }
func (r *TxReposMock) Payments() repo.PaymentRepository                { return r.payments }
func (r *TxReposMock) AuditLogs() repo.AuditLogRepository              { return r.auditLogs }
func (r *TxReposMock) Carts() repo.CartRepository                      { return r.carts }
func (r *TxReposMock) CartItems() repo.CartItemRepository              { return r.cartItems }
func (r *TxReposMock) Products() repo.ProductRepository                { return r.products }
func (r *TxReposMock) Transactions() repo.PaymentTransactionRepository { return r.transactions }

// =====================
// Repository mocks
// =====================

type OrderRepoMock struct{ mock.Mock }

func (m *OrderRepoMock) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	args := m.Called(ctx, orderID)
	o, _ := args.Get(0).(model.Order)
	return o, args.Error(1)
}

func (m *OrderRepoMock) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *OrderRepoMock) Create(ctx context.Context, order model.Order) (int64, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *OrderRepoMock) Transition(ctx context.Context, orderID int64, from, to model.OrderStatus, at time.Time) error {
	args := m.Called(ctx, orderID, from, to)
	return args.Error(0)
}

func (m *OrderRepoMock) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.OrderPaymentStatus) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *OrderRepoMock) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *OrderRepoMock) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	args := m.Called(ctx, f)
	orders, _ := args.Get(0).([]model.Order)
	return orders, args.Get(1).(int64), args.Error(2)
}

type OrderItemRepoMock struct{ mock.Mock }

func (m *OrderItemRepoMock) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *OrderItemRepoMock) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	args := m.Called(ctx, orderID)
	items, _ := args.Get(0).([]model.OrderItem)
	return items, args.Error(1)
}

type InventoryRepoMock struct{ mock.Mock }

func (m *InventoryRepoMock) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *InventoryRepoMock) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	args := m.Called(ctx, productID, qty)
	return args.Error(0)
}

func (m *InventoryRepoMock) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	args := m.Called(ctx, adjustment)
	return args.Error(0)
}

func (m *InventoryRepoMock) ListAdjustmentsByOrderID(ctx context.Context, orderID int64) ([]model.InventoryAdjustment, error) {
	panic("not used in AdminOrderUsecase tests")
}

// 注文一覧で決済を引くのに使う
type PaymentRepoMock struct{ mock.Mock }

func (m *PaymentRepoMock) Create(ctx context.Context, p model.Payment) (int64, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) FindByIDForUpdate(ctx context.Context, paymentID int64) (model.Payment, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error) {
	args := m.Called(ctx, orderID)
	p, _ := args.Get(0).(model.Payment)
	return p, args.Error(1)
}

func (m *PaymentRepoMock) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Payment, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) FindByGatewayPaymentIDForUpdate(ctx context.Context, gatewayPaymentID string) (model.Payment, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (model.Payment, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Payment, error) {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) Update(ctx context.Context, p model.Payment) error {
	panic("not used in AdminOrderUsecase tests")
}

func (m *PaymentRepoMock) ListForAnalytics(ctx context.Context, from, to *time.Time) ([]model.Payment, error) {
	panic("not used in AdminOrderUsecase tests")
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Dispatch(n model.Notification) {
	m.Called(n)
}
