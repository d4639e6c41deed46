package usecase

import (
	"context"

	"checkout/internal/domain/model"
	"checkout/internal/infra/gateway"
)

// 決済ゲートウェイ（infra/gateway.Client が実装）
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amount int64, currency string, receipt string) (gateway.IntentRef, error)
	Refund(ctx context.Context, gatewayPaymentID string, amount int64, reason string, notes string) (gateway.RefundRef, error)
	VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	Sandbox() bool
	KeyID() string
}

// 通知は送りっぱなし。commit後にだけ呼ぶ
type Notifier interface {
	Dispatch(n model.Notification)
}

// 処理済みWebhookの目印（Redis）
type WebhookDeduper interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// 閲覧者。管理者は他人の決済も見られる
type Viewer struct {
	UserID int64
	Admin  bool
}

func (v Viewer) canSee(ownerID int64) bool {
	return v.Admin || v.UserID == ownerID
}
