package model

import "time"

type TransactionType string

const (
	TransactionTypePayment       TransactionType = "PAYMENT"
	TransactionTypeRefund        TransactionType = "REFUND"
	TransactionTypePartialRefund TransactionType = "PARTIAL_REFUND"
	TransactionTypeChargeback    TransactionType = "CHARGEBACK"
	TransactionTypeReversal      TransactionType = "REVERSAL"
)

// 返金として集計する種類
var RefundTransactionTypes = []TransactionType{TransactionTypeRefund, TransactionTypePartialRefund}

type TransactionStatus string

const (
	TransactionStatusInitiated  TransactionStatus = "INITIATED"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusSuccess    TransactionStatus = "SUCCESS"
	TransactionStatusFailed     TransactionStatus = "FAILED"
	TransactionStatusCancelled  TransactionStatus = "CANCELLED"
	TransactionStatusPending    TransactionStatus = "PENDING"
)

// SUCCESS / FAILED になった行は二度と書き換えない
func (s TransactionStatus) IsFinal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// 決済台帳（追記のみ）。transaction_idが冪等キー
type PaymentTransaction struct {
	ID                   int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentID            int64             `gorm:"not null;index" json:"payment_id"`
	TransactionID        string            `gorm:"type:varchar(120);not null;uniqueIndex" json:"transaction_id"`
	Type                 TransactionType   `gorm:"type:varchar(20);not null;index" json:"type"`
	Status               TransactionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Amount               int64             `gorm:"not null" json:"amount"`
	GatewayTransactionID string            `gorm:"type:varchar(100)" json:"gateway_transaction_id,omitempty"`
	GatewayRefundID      string            `gorm:"type:varchar(100);index" json:"gateway_refund_id,omitempty"`
	FailureReason        string            `gorm:"type:text" json:"failure_reason,omitempty"`
	Notes                string            `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
