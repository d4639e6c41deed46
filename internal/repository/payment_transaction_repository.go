package repository

import (
	"context"
	"time"

	"checkout/internal/domain/model"
)

// 台帳の集計条件。空のフィールドは絞り込まない
type TransactionFilter struct {
	PaymentID *int64
	Types     []model.TransactionType
	Statuses  []model.TransactionStatus
	From      *time.Time
	To        *time.Time
}

// 決済台帳（追記のみ）
type PaymentTransactionRepository interface {
	// transaction_id 重複は ErrConflict
	Create(ctx context.Context, t model.PaymentTransaction) (int64, error)
	ExistsByTransactionID(ctx context.Context, transactionID string) (bool, error)
	ExistsByGatewayRefundID(ctx context.Context, gatewayRefundID string) (bool, error)
	ListByPaymentID(ctx context.Context, paymentID int64) ([]model.PaymentTransaction, error)

	// 処理中の返金で金額が一致する最古の1件
	FindOpenRefund(ctx context.Context, paymentID int64, amount int64) (model.PaymentTransaction, bool, error)

	// まだ確定していない行だけ確定させる。確定済みなら ErrConflict
	Finalize(ctx context.Context, id int64, status model.TransactionStatus, gatewayRefundID string, failureReason string) error

	Sum(ctx context.Context, f TransactionFilter) (int64, error)
	Count(ctx context.Context, f TransactionFilter) (int64, error)
}
