package repository

import (
	"context"
	"time"

	"checkout/internal/domain/model"
)

// ForUpdate 付きは行ロック。状態を変える処理は必ずこちらで読む
type PaymentRepository interface {
	Create(ctx context.Context, p model.Payment) (int64, error)
	FindByID(ctx context.Context, paymentID int64) (model.Payment, error)
	FindByIDForUpdate(ctx context.Context, paymentID int64) (model.Payment, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (model.Payment, error)
	FindByGatewayPaymentIDForUpdate(ctx context.Context, gatewayPaymentID string) (model.Payment, error)
	FindByGatewayOrderIDForUpdate(ctx context.Context, gatewayOrderID string) (model.Payment, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Payment, error)

	// status / gateway ids / failure_reason をまとめて保存
	Update(ctx context.Context, p model.Payment) error

	// 集計用（期間は created_at）
	ListForAnalytics(ctx context.Context, from, to *time.Time) ([]model.Payment, error)
}
