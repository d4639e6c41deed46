package model

import "time"

const (
	AdjustmentReasonOrderReserve = "ORDER_RESERVE"
	AdjustmentReasonOrderRelease = "ORDER_CANCEL_RELEASE"
	AdjustmentReasonAdminRestock = "ADMIN_RESTOCK"
)

// 在庫の増減履歴（引当はマイナス、戻しはプラス）
type InventoryAdjustment struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64     `gorm:"not null;index" json:"product_id"`
	OrderID     *int64    `gorm:"index" json:"order_id,omitempty"`
	ActorUserID int64     `gorm:"not null;index" json:"actor_user_id"`
	Delta       int64     `gorm:"not null" json:"delta"`
	Reason      string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
