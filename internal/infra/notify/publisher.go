package notify

import (
	"context"

	"checkout/internal/domain/model"

	"go.uber.org/zap"
)

// 通知の送り先
type Publisher interface {
	Publish(ctx context.Context, n model.Notification) error
	Close() error
}

// ブローカーが無い環境用。ログに出すだけ
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(l *zap.Logger) *LogPublisher {
	return &LogPublisher{log: l}
}

func (p *LogPublisher) Publish(ctx context.Context, n model.Notification) error {
	p.log.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.Int64("order_id", n.OrderID),
		zap.String("order_number", n.OrderNumber),
		zap.Int64("user_id", n.UserID),
		zap.Int64("payment_id", n.PaymentID),
		zap.Int64("amount", n.Amount),
		zap.String("currency", n.Currency),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
