package repository

import (
	"context"

	repo "checkout/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders       repo.OrderRepository
	orderItems   repo.OrderItemRepository
	carts        repo.CartRepository
	cartItems    repo.CartItemRepository
	inventory    repo.InventoryRepository
	products     repo.ProductRepository
	payments     repo.PaymentRepository
	transactions repo.PaymentTransactionRepository
	auditLogs    repo.AuditLogRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                    { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository            { return r.orderItems }
func (r *txReposGorm) Carts() repo.CartRepository                      { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository              { return r.cartItems }
func (r *txReposGorm) Inventory() repo.InventoryRepository             { return r.inventory }
func (r *txReposGorm) Products() repo.ProductRepository                { return r.products }
func (r *txReposGorm) Payments() repo.PaymentRepository                { return r.payments }
func (r *txReposGorm) Transactions() repo.PaymentTransactionRepository { return r.transactions }
func (r *txReposGorm) AuditLogs() repo.AuditLogRepository              { return r.auditLogs }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		cart := NewCartGormRepository(tx)
		r := &txReposGorm{
			orders:       NewOrderGormRepository(tx),
			orderItems:   NewOrderItemGormRepository(tx),
			carts:        cart,
			cartItems:    cart,
			inventory:    NewInventoryGormRepository(tx),
			products:     NewProductGormRepository(tx),
			payments:     NewPaymentGormRepository(tx),
			transactions: NewPaymentTransactionGormRepository(tx),
			auditLogs:    NewAuditLogGormRepository(tx),
		}
		return fn(r)
	})
}
