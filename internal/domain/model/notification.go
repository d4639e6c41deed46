package model

import "time"

type NotificationKind string

const (
	NotifyOrderConfirmed  NotificationKind = "order.confirmed"
	NotifyOrderShipped    NotificationKind = "order.shipped"
	NotifyOrderDelivered  NotificationKind = "order.delivered"
	NotifyOrderCancelled  NotificationKind = "order.cancelled"
	NotifyPaymentCaptured NotificationKind = "payment.captured"
	NotifyPaymentFailed   NotificationKind = "payment.failed"
	NotifyPaymentRefunded NotificationKind = "payment.refunded"
)

// 外部へ流す通知（メール送信などは受け手側の責務）
type Notification struct {
	Kind        NotificationKind `json:"kind"`
	OrderID     int64            `json:"order_id"`
	OrderNumber string           `json:"order_number"`
	UserID      int64            `json:"user_id"`
	PaymentID   int64            `json:"payment_id,omitempty"`
	Amount      int64            `json:"amount"`
	Currency    string           `json:"currency"`
	OccurredAt  time.Time        `json:"occurred_at"`
}

// 注文ステータスに対応する通知。無ければ false
func NotificationKindForOrder(s OrderStatus) (NotificationKind, bool) {
	switch s {
	case OrderStatusConfirmed:
		return NotifyOrderConfirmed, true
	case OrderStatusShipped:
		return NotifyOrderShipped, true
	case OrderStatusDelivered:
		return NotifyOrderDelivered, true
	case OrderStatusCancelled:
		return NotifyOrderCancelled, true
	default:
		return "", false
	}
}
