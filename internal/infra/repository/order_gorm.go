package repository

import (
	"context"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, found, err := r.first(r.db.WithContext(ctx).Where("id = ?", orderID))
	if err != nil {
		return model.Order{}, err
	}
	if !found {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

// 同じキーで2回目のチェックアウトが来たら既存の注文を返すため
func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	return r.first(r.db.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key))
}

func (r *OrderGormRepository) first(q *gorm.DB) (model.Order, bool, error) {
	var o model.Order
	err := q.First(&o).Error
	if isNotFound(err) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)
	return listOrders(q, page, limit)
}

// idempotency_key の一意制約違反は ErrConflict
func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, translateWriteError(err)
	}
	return order.ID, nil
}

// 現在の status を条件にした更新（CAS）。遷移先に応じて日時も入れる
func (r *OrderGormRepository) Transition(ctx context.Context, orderID int64, from, to model.OrderStatus, at time.Time) error {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case model.OrderStatusShipped:
		updates["shipped_at"] = at
	case model.OrderStatusDelivered:
		updates["delivered_at"] = at
	case model.OrderStatusCancelled:
		updates["cancelled_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (r *OrderGormRepository) UpdatePaymentStatus(ctx context.Context, orderID int64, status model.OrderPaymentStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{"payment_status": status, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Order{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	//期間
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return listOrders(q, f.Page, f.Limit)
}

// 件数＋新しい順の1ページ
func listOrders(q *gorm.DB, page, limit int) ([]model.Order, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	items := []model.Order{}
	if err := q.Order("id desc").Limit(limit).Offset((page - 1) * limit).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}
	return items, total, nil
}
