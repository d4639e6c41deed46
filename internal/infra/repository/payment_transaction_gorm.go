package repository

import (
	"context"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"

	"gorm.io/gorm"
)

var finalTransactionStatuses = []model.TransactionStatus{
	model.TransactionStatusSuccess,
	model.TransactionStatusFailed,
}

type PaymentTransactionGormRepository struct {
	db *gorm.DB
}

func NewPaymentTransactionGormRepository(db *gorm.DB) *PaymentTransactionGormRepository {
	return &PaymentTransactionGormRepository{db: db}
}

func (r *PaymentTransactionGormRepository) Create(ctx context.Context, t model.PaymentTransaction) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return 0, translateWriteError(err)
	}
	return t.ID, nil
}

func (r *PaymentTransactionGormRepository) ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error) {
	return r.exists(r.db.WithContext(ctx).Where("transaction_id = ?", transactionID))
}

func (r *PaymentTransactionGormRepository) ExistsByGatewayRefundID(ctx context.Context, gatewayRefundID string) (bool, error) {
	if gatewayRefundID == "" {
		return false, nil
	}
	return r.exists(r.db.WithContext(ctx).Where("gateway_refund_id = ?", gatewayRefundID))
}

func (r *PaymentTransactionGormRepository) ListByPaymentID(ctx context.Context, paymentID int64) ([]model.PaymentTransaction, error) {
	var list []model.PaymentTransaction
	if err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("id asc").
		Find(&list).Error; err != nil {
		return []model.PaymentTransaction{}, err
	}
	return list, nil
}

func (r *PaymentTransactionGormRepository) FindOpenRefund(ctx context.Context, paymentID int64, amount int64) (model.PaymentTransaction, bool, error) {
	var t model.PaymentTransaction
	err := r.db.WithContext(ctx).
		Where("payment_id = ? AND amount = ?", paymentID, amount).
		Where("type IN ?", model.RefundTransactionTypes).
		Where("status NOT IN ?", finalTransactionStatuses).
		Order("id asc").
		First(&t).Error
	if isNotFound(err) {
		return model.PaymentTransaction{}, false, nil
	}
	if err != nil {
		return model.PaymentTransaction{}, false, err
	}
	return t, true, nil
}

// 確定済み(SUCCESS/FAILED)の行は条件で弾く
func (r *PaymentTransactionGormRepository) Finalize(ctx context.Context, id int64, status model.TransactionStatus, gatewayRefundID string, failureReason string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if gatewayRefundID != "" {
		updates["gateway_refund_id"] = gatewayRefundID
	}
	if failureReason != "" {
		updates["failure_reason"] = failureReason
	}

	res := r.db.WithContext(ctx).Model(&model.PaymentTransaction{}).
		Where("id = ? AND status NOT IN ?", id, finalTransactionStatuses).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrConflict
	}
	return nil
}

func (r *PaymentTransactionGormRepository) Sum(ctx context.Context, f repo.TransactionFilter) (int64, error) {
	var total int64
	err := r.filtered(ctx, f).
		Select("CAST(COALESCE(SUM(amount), 0) AS BIGINT)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PaymentTransactionGormRepository) Count(ctx context.Context, f repo.TransactionFilter) (int64, error) {
	var n int64
	if err := r.filtered(ctx, f).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PaymentTransactionGormRepository) filtered(ctx context.Context, f repo.TransactionFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.PaymentTransaction{})
	if f.PaymentID != nil {
		q = q.Where("payment_id = ?", *f.PaymentID)
	}
	if len(f.Types) > 0 {
		q = q.Where("type IN ?", f.Types)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", f.Statuses)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}
	return q
}

func (r *PaymentTransactionGormRepository) exists(q *gorm.DB) (bool, error) {
	var n int64
	if err := q.Model(&model.PaymentTransaction{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
