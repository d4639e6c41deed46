package usecase

import (
	"context"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"
)

type reconcileResult int

const (
	reconcileApplied reconcileResult = iota
	// 適用済み（同じ状態への遷移）
	reconcileNoop
	// 表に無い遷移（SUCCESSへの遅延FAILなど）
	reconcileRejected
)

func captureLedgerID(gatewayPaymentID string) string {
	return "capture:" + gatewayPaymentID
}

func failLedgerID(gatewayPaymentID string) string {
	return "fail:" + gatewayPaymentID
}

// ロック済みの決済にイベントを適用する。呼び出し側はFOR UPDATEで読んでおくこと。
// 台帳は transaction_id で重複を防ぐ
func applyPaymentEvent(ctx context.Context, r repo.TxRepos, p *model.Payment, ev model.PaymentEvent, gatewayPaymentID string, reason string, at time.Time) (reconcileResult, error) {
	next, ok := p.Status.Next(ev)
	if !ok {
		return reconcileRejected, nil
	}
	if next == p.Status {
		return reconcileNoop, nil
	}

	if gatewayPaymentID != "" {
		p.GatewayPaymentID = gatewayPaymentID
	}
	ref := p.GatewayPaymentID
	if ref == "" {
		ref = p.GatewayOrderID
	}

	var (
		ledgerID     string
		ledgerStatus model.TransactionStatus
		orderStatus  model.OrderPaymentStatus
	)
	switch ev {
	case model.PaymentEventCapture:
		ledgerID = captureLedgerID(ref)
		ledgerStatus = model.TransactionStatusSuccess
		orderStatus = model.OrderPaymentPaid
		p.FailureReason = ""
	case model.PaymentEventFail:
		ledgerID = failLedgerID(ref)
		ledgerStatus = model.TransactionStatusFailed
		orderStatus = model.OrderPaymentFailed
		p.FailureReason = reason
	default:
		return reconcileRejected, nil
	}

	p.Status = next
	if err := r.Payments().Update(ctx, *p); err != nil {
		return reconcileRejected, errDB()
	}
	if err := r.Orders().UpdatePaymentStatus(ctx, p.OrderID, orderStatus); err != nil {
		return reconcileRejected, errDB()
	}

	exists, err := r.Transactions().ExistsByTransactionID(ctx, ledgerID)
	if err != nil {
		return reconcileRejected, errDB()
	}
	if !exists {
		_, err := r.Transactions().Create(ctx, model.PaymentTransaction{
			PaymentID:            p.ID,
			TransactionID:        ledgerID,
			Type:                 model.TransactionTypePayment,
			Status:               ledgerStatus,
			Amount:               p.Amount,
			GatewayTransactionID: p.GatewayPaymentID,
			FailureReason:        p.FailureReason,
			CreatedAt:            at,
			UpdatedAt:            at,
		})
		if err != nil && err != repo.ErrConflict {
			return reconcileRejected, errDB()
		}
	}
	return reconcileApplied, nil
}

// 成功した返金の合計
func refundedAmount(ctx context.Context, r repo.TxRepos, paymentID int64) (int64, error) {
	return r.Transactions().Sum(ctx, repo.TransactionFilter{
		PaymentID: &paymentID,
		Types:     model.RefundTransactionTypes,
		Statuses:  []model.TransactionStatus{model.TransactionStatusSuccess},
	})
}

// 処理中（INITIATED / PROCESSING）の返金も確保済みとして数えた合計
func reservedRefundAmount(ctx context.Context, r repo.TxRepos, paymentID int64) (int64, error) {
	return r.Transactions().Sum(ctx, repo.TransactionFilter{
		PaymentID: &paymentID,
		Types:     model.RefundTransactionTypes,
		Statuses: []model.TransactionStatus{
			model.TransactionStatusInitiated,
			model.TransactionStatusProcessing,
			model.TransactionStatusSuccess,
		},
	})
}

// 累計が決済額に達したら全額返金に進める。進めたら true
func settleFullRefund(ctx context.Context, r repo.TxRepos, p *model.Payment) (bool, error) {
	refunded, err := refundedAmount(ctx, r, p.ID)
	if err != nil {
		return false, errDB()
	}
	if refunded < p.Amount {
		return false, nil
	}
	next, ok := p.Status.Next(model.PaymentEventRefundFull)
	if !ok {
		return false, nil
	}
	p.Status = next
	if err := r.Payments().Update(ctx, *p); err != nil {
		return false, errDB()
	}
	if err := r.Orders().UpdatePaymentStatus(ctx, p.OrderID, model.OrderPaymentRefunded); err != nil {
		return false, errDB()
	}
	return true, nil
}

// commit後に流す通知を組み立てる（注文番号が要るので注文を読む）
func paymentNotification(ctx context.Context, r repo.TxRepos, p model.Payment, kind model.NotificationKind, amount int64, at time.Time) (model.Notification, error) {
	o, err := r.Orders().FindByID(ctx, p.OrderID)
	if err != nil {
		return model.Notification{}, errDB()
	}
	return model.Notification{
		Kind:        kind,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      p.UserID,
		PaymentID:   p.ID,
		Amount:      amount,
		Currency:    p.Currency,
		OccurredAt:  at,
	}, nil
}
