package usecase

import (
	"context"
	"encoding/json"
	"time"

	"checkout/internal/domain/model"
	"checkout/internal/logger"
	repo "checkout/internal/repository"
)

const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
)

const (
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
	eventOrderPaid       = "order.paid"
	eventRefundCreated   = "refund.created"
	eventRefundProcessed = "refund.processed"
)

type WebhookResult struct {
	Status string `json:"status"`
	Event  string `json:"event,omitempty"`
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity webhookPayment `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity webhookRefund `json:"entity"`
		} `json:"refund"`
		Order *struct {
			Entity webhookOrder `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type webhookPayment struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int64  `json:"amount"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
}

type webhookRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

type webhookOrder struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// ゲートウェイからの非同期通知を突合する。
// 署名が通った後は、壊れた内容や未知のイベントでも ignored で受け取る
type WebhookUsecase struct {
	tx       repo.TransactionManager
	gateway  PaymentGateway
	deduper  WebhookDeduper
	notifier Notifier
	now      func() time.Time
}

func NewWebhookUsecase(tx repo.TransactionManager, gw PaymentGateway, deduper WebhookDeduper, notifier Notifier) *WebhookUsecase {
	return &WebhookUsecase{
		tx:       tx,
		gateway:  gw,
		deduper:  deduper,
		notifier: notifier,
		now:      time.Now,
	}
}

func (u *WebhookUsecase) Handle(ctx context.Context, signature string, body []byte) (WebhookResult, error) {
	// 何よりも先に署名
	if !u.gateway.VerifyWebhookSignature(body, signature) {
		return WebhookResult{}, errInvalidWebhookSignature()
	}

	if err := validateWebhookEnvelope(body); err != nil {
		logger.Warn("webhook ignored: malformed payload", "error", err.Error())
		return WebhookResult{Status: WebhookIgnored}, nil
	}
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		logger.Warn("webhook ignored: decode failed", "error", err.Error())
		return WebhookResult{Status: WebhookIgnored}, nil
	}

	entityID, ok := webhookEntityID(env)
	if !ok {
		logger.Warn("webhook ignored", "event", env.Event)
		return WebhookResult{Status: WebhookIgnored, Event: env.Event}, nil
	}

	dedupeKey := env.Event + ":" + entityID
	seen, err := u.deduper.Seen(ctx, dedupeKey)
	if err != nil {
		// 台帳側でも重複は防げるので続ける
		logger.Warn("webhook dedupe lookup failed", "key", dedupeKey, "error", err.Error())
	}
	if seen {
		logger.Info("webhook already processed", "key", dedupeKey)
		return WebhookResult{Status: WebhookProcessed, Event: env.Event}, nil
	}

	var (
		status string
		notice *model.Notification
	)
	switch env.Event {
	case eventPaymentCaptured, eventOrderPaid:
		gPay, gOrder := capturedRefs(env)
		status, notice, err = u.applyPaymentWebhook(ctx, model.PaymentEventCapture, gPay, gOrder, "")
	case eventPaymentFailed:
		pe := env.Payload.Payment.Entity
		status, notice, err = u.applyPaymentWebhook(ctx, model.PaymentEventFail, pe.ID, pe.OrderID, pe.ErrorDescription)
	case eventRefundCreated, eventRefundProcessed:
		status, notice, err = u.applyRefundWebhook(ctx, env.Payload.Refund.Entity)
	}
	if err != nil {
		return WebhookResult{}, err
	}

	if notice != nil {
		u.notifier.Dispatch(*notice)
	}
	if status == WebhookProcessed {
		if err := u.deduper.Mark(ctx, dedupeKey); err != nil {
			logger.Warn("webhook dedupe mark failed", "key", dedupeKey, "error", err.Error())
		}
	}

	logger.Info("webhook handled", "event", env.Event, "entity_id", entityID, "status", status)
	return WebhookResult{Status: status, Event: env.Event}, nil
}

// イベントに必要なエンティティが揃っていればそのIDを返す
func webhookEntityID(env webhookEnvelope) (string, bool) {
	switch env.Event {
	case eventPaymentCaptured, eventPaymentFailed:
		if env.Payload.Payment == nil {
			return "", false
		}
		return env.Payload.Payment.Entity.ID, true
	case eventOrderPaid:
		if env.Payload.Payment != nil {
			return env.Payload.Payment.Entity.ID, true
		}
		if env.Payload.Order != nil {
			return env.Payload.Order.Entity.ID, true
		}
		return "", false
	case eventRefundCreated, eventRefundProcessed:
		if env.Payload.Refund == nil || env.Payload.Refund.Entity.PaymentID == "" || env.Payload.Refund.Entity.Amount <= 0 {
			return "", false
		}
		return env.Payload.Refund.Entity.ID, true
	default:
		return "", false
	}
}

func capturedRefs(env webhookEnvelope) (gatewayPaymentID string, gatewayOrderID string) {
	if env.Payload.Payment != nil {
		gatewayPaymentID = env.Payload.Payment.Entity.ID
		gatewayOrderID = env.Payload.Payment.Entity.OrderID
	}
	if env.Payload.Order != nil && gatewayOrderID == "" {
		gatewayOrderID = env.Payload.Order.Entity.ID
	}
	return gatewayPaymentID, gatewayOrderID
}

// 決済ID → ゲートウェイ注文ID（retryで張り替えた場合）の順で探す
func findPaymentForUpdate(ctx context.Context, r repo.TxRepos, gatewayPaymentID, gatewayOrderID string) (model.Payment, error) {
	if gatewayPaymentID != "" {
		p, err := r.Payments().FindByGatewayPaymentIDForUpdate(ctx, gatewayPaymentID)
		if err != repo.ErrNotFound {
			return p, err
		}
	}
	if gatewayOrderID != "" {
		return r.Payments().FindByGatewayOrderIDForUpdate(ctx, gatewayOrderID)
	}
	return model.Payment{}, repo.ErrNotFound
}

func (u *WebhookUsecase) applyPaymentWebhook(ctx context.Context, ev model.PaymentEvent, gatewayPaymentID, gatewayOrderID, reason string) (string, *model.Notification, error) {
	status := WebhookProcessed
	var notice *model.Notification

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := findPaymentForUpdate(ctx, r, gatewayPaymentID, gatewayOrderID)
		if err == repo.ErrNotFound {
			logger.Warn("webhook for unknown payment", "gateway_payment_id", gatewayPaymentID, "gateway_order_id", gatewayOrderID)
			status = WebhookIgnored
			return nil
		}
		if err != nil {
			return errDB()
		}

		now := u.now()
		res, err := applyPaymentEvent(ctx, r, &p, ev, gatewayPaymentID, reason, now)
		if err != nil {
			return err
		}
		switch res {
		case reconcileRejected:
			logger.Warn("stale webhook event", "payment_id", p.ID, "status", string(p.Status), "event", string(ev))
			status = WebhookIgnored
			return nil
		case reconcileNoop:
			return nil
		}

		kind := model.NotifyPaymentCaptured
		if ev == model.PaymentEventFail {
			kind = model.NotifyPaymentFailed
		}
		n, err := paymentNotification(ctx, r, p, kind, p.Amount, now)
		if err != nil {
			return err
		}
		notice = &n
		return nil
	})
	return status, notice, err
}

func (u *WebhookUsecase) applyRefundWebhook(ctx context.Context, rf webhookRefund) (string, *model.Notification, error) {
	status := WebhookProcessed
	var notice *model.Notification

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := findPaymentForUpdate(ctx, r, rf.PaymentID, "")
		if err == repo.ErrNotFound {
			logger.Warn("refund webhook for unknown payment", "gateway_payment_id", rf.PaymentID)
			status = WebhookIgnored
			return nil
		}
		if err != nil {
			return errDB()
		}

		// 同じ返金IDが台帳にあれば適用済み
		exists, err := r.Transactions().ExistsByGatewayRefundID(ctx, rf.ID)
		if err != nil {
			return errDB()
		}
		if exists {
			return nil
		}

		if p.Status != model.PaymentStatusSuccess {
			logger.Warn("refund webhook for non refundable payment", "payment_id", p.ID, "status", string(p.Status))
			status = WebhookIgnored
			return nil
		}

		now := u.now()
		// API側で処理中の返金があれば、それを確定させる
		open, found, err := r.Transactions().FindOpenRefund(ctx, p.ID, rf.Amount)
		if err != nil {
			return errDB()
		}
		if found {
			if err := r.Transactions().Finalize(ctx, open.ID, model.TransactionStatusSuccess, rf.ID, ""); err != nil && err != repo.ErrConflict {
				return errDB()
			}
		} else {
			// API側で処理中の返金も残額から引く
			reserved, err := reservedRefundAmount(ctx, r, p.ID)
			if err != nil {
				return errDB()
			}
			if reserved+rf.Amount > p.Amount {
				logger.Warn("refund webhook exceeds payment amount", "payment_id", p.ID, "amount", rf.Amount)
				status = WebhookIgnored
				return nil
			}
			if _, err := r.Transactions().Create(ctx, model.PaymentTransaction{
				PaymentID:       p.ID,
				TransactionID:   "refund:" + rf.ID,
				Type:            model.TransactionTypeRefund,
				Status:          model.TransactionStatusSuccess,
				Amount:          rf.Amount,
				GatewayRefundID: rf.ID,
				CreatedAt:       now,
				UpdatedAt:       now,
			}); err != nil {
				if err == repo.ErrConflict {
					return nil
				}
				return errDB()
			}
		}

		if _, err := settleFullRefund(ctx, r, &p); err != nil {
			return err
		}

		n, err := paymentNotification(ctx, r, p, model.NotifyPaymentRefunded, rf.Amount, now)
		if err != nil {
			return err
		}
		notice = &n
		return nil
	})
	return status, notice, err
}
