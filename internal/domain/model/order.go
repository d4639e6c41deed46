package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// 注文側から見た支払い状態
type OrderPaymentStatus string

const (
	OrderPaymentPending  OrderPaymentStatus = "PENDING"
	OrderPaymentPaid     OrderPaymentStatus = "PAID"
	OrderPaymentFailed   OrderPaymentStatus = "FAILED"
	OrderPaymentRefunded OrderPaymentStatus = "REFUNDED"
)

// 注文時点の配送先コピー（住所を後で編集しても変わらない）
type ShippingAddress struct {
	Name       string `gorm:"type:varchar(255);not null" json:"name"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`
	Prefecture string `gorm:"type:varchar(100);not null" json:"prefecture"`
	City       string `gorm:"type:varchar(255);not null" json:"city"`
	Line1      string `gorm:"type:varchar(255);not null" json:"line1"`
	Line2      string `gorm:"type:varchar(255)" json:"line2"`
	Phone      string `gorm:"type:varchar(30)" json:"phone"`
}

// status / payment_status / 各日時以外は作成後に変えない
type Order struct {
	ID              int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber     string             `gorm:"type:varchar(32);not null;uniqueIndex" json:"order_number"`
	UserID          int64              `gorm:"not null;index;uniqueIndex:idx_orders_user_idem" json:"user_id"`
	AddressID       int64              `gorm:"not null" json:"address_id"`
	ShippingAddress ShippingAddress    `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	Status          OrderStatus        `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus   OrderPaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	Subtotal        int64              `gorm:"not null" json:"subtotal"`
	ShippingCharge  int64              `gorm:"not null;default:0" json:"shipping_charge"`
	Discount        int64              `gorm:"not null;default:0" json:"discount"`
	FinalAmount     int64              `gorm:"not null" json:"final_amount"`
	Currency        string             `gorm:"type:varchar(3);not null" json:"currency"`
	IdempotencyKey  string             `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_user_idem" json:"-"`
	ShippedAt       *time.Time         `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time         `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// 連番ではなくランダムトークンから作る（同時チェックアウトでも衝突しない）
func NewOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(raw[:16])
}

// final = subtotal - discount + shipping
func FinalAmount(subtotal, discount, shippingCharge int64) int64 {
	return subtotal - discount + shippingCharge
}
