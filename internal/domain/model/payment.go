package model

import (
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodGateway        PaymentMethod = "GATEWAY"
	PaymentMethodCashOnDelivery PaymentMethod = "CASH_ON_DELIVERY"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

// 注文と1:1。statusを変えるのは決済の突合処理だけ
type Payment struct {
	ID               int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID          int64         `gorm:"not null;uniqueIndex" json:"order_id"`
	UserID           int64         `gorm:"not null;index" json:"user_id"`
	Method           PaymentMethod `gorm:"type:varchar(30);not null;index" json:"method"`
	GatewayOrderID   string        `gorm:"type:varchar(100);index" json:"gateway_order_id"`
	GatewayPaymentID string        `gorm:"type:varchar(100);index" json:"gateway_payment_id"`
	GatewaySignature string        `gorm:"type:varchar(255)" json:"-"`
	Amount           int64         `gorm:"not null" json:"amount"`
	Currency         string        `gorm:"type:varchar(3);not null" json:"currency"`
	Status           PaymentStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	FailureReason    string        `gorm:"type:text" json:"failure_reason,omitempty"`
	CreatedAt        time.Time     `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// リクエストの支払い方法。TESTはサンドボックス専用
type CheckoutMethod string

const (
	CheckoutMethodGateway CheckoutMethod = "GATEWAY"
	CheckoutMethodCOD     CheckoutMethod = "COD"
	CheckoutMethodTest    CheckoutMethod = "TEST"
)

func ParseCheckoutMethod(v string) (CheckoutMethod, bool) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "GATEWAY", "RAZORPAY":
		return CheckoutMethodGateway, true
	case "COD", "CASH_ON_DELIVERY":
		return CheckoutMethodCOD, true
	case "TEST":
		return CheckoutMethodTest, true
	default:
		return "", false
	}
}
