package repository

import (
	"context"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentGormRepository struct {
	db *gorm.DB
}

func NewPaymentGormRepository(db *gorm.DB) *PaymentGormRepository {
	return &PaymentGormRepository{db: db}
}

func (r *PaymentGormRepository) Create(ctx context.Context, p model.Payment) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, translateWriteError(err)
	}
	return p.ID, nil
}

func (r *PaymentGormRepository) FindByID(ctx context.Context, paymentID int64) (model.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", paymentID))
}

func (r *PaymentGormRepository) FindByIDForUpdate(ctx context.Context, paymentID int64) (model.Payment, error) {
	return r.first(r.locked(ctx).Where("id = ?", paymentID))
}

func (r *PaymentGormRepository) FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("order_id = ?", orderID))
}

func (r *PaymentGormRepository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Payment, error) {
	if gatewayOrderID == "" {
		return model.Payment{}, repo.ErrNotFound
	}
	return r.first(r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID))
}

func (r *PaymentGormRepository) FindByGatewayPaymentIDForUpdate(ctx context.Context, gatewayPaymentID string) (model.Payment, error) {
	if gatewayPaymentID == "" {
		return model.Payment{}, repo.ErrNotFound
	}
	return r.first(r.locked(ctx).Where("gateway_payment_id = ?", gatewayPaymentID))
}

func (r *PaymentGormRepository) FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (model.Payment, error) {
	if gatewayOrderID == "" {
		return model.Payment{}, repo.ErrNotFound
	}
	return r.first(r.locked(ctx).Where("gateway_order_id = ?", gatewayOrderID))
}

func (r *PaymentGormRepository) ListByUserID(ctx context.Context, userID int64) ([]model.Payment, error) {
	var list []model.Payment
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&list).Error; err != nil {
		return []model.Payment{}, err
	}
	return list, nil
}

func (r *PaymentGormRepository) Update(ctx context.Context, p model.Payment) error {
	res := r.db.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"status":             p.Status,
			"gateway_order_id":   p.GatewayOrderID,
			"gateway_payment_id": p.GatewayPaymentID,
			"gateway_signature":  p.GatewaySignature,
			"failure_reason":     p.FailureReason,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *PaymentGormRepository) ListForAnalytics(ctx context.Context, from, to *time.Time) ([]model.Payment, error) {
	q := r.db.WithContext(ctx).Model(&model.Payment{})
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at <= ?", *to)
	}

	var list []model.Payment
	if err := q.Order("id asc").Find(&list).Error; err != nil {
		return []model.Payment{}, err
	}
	return list, nil
}

// SELECT ... FOR UPDATE
func (r *PaymentGormRepository) locked(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"})
}

func (r *PaymentGormRepository) first(q *gorm.DB) (model.Payment, error) {
	var p model.Payment
	err := q.First(&p).Error
	if isNotFound(err) {
		return model.Payment{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}
