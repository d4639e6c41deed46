package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"

	"github.com/google/uuid"
)

type RefundInput struct {
	PaymentID int64
	// nil なら全額
	Amount *int64
	Reason string
	Notes  string
}

type RefundOutput struct {
	RefundID        string    `json:"refund_id"`
	PaymentID       int64     `json:"payment_id"`
	RefundAmount    int64     `json:"refund_amount"`
	RefundStatus    string    `json:"refund_status"`
	GatewayRefundID string    `json:"gateway_refund_id"`
	Reason          string    `json:"reason,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
	Message         string    `json:"message"`
}

// 返金は3段階。
// 1) ロックして残額を確認しINITIATEDを記録 2) ロックの外でゲートウェイ 3) ロックして結果を確定
func (u *PaymentUsecase) ProcessRefund(ctx context.Context, actorUserID int64, in RefundInput) (RefundOutput, error) {
	if actorUserID <= 0 {
		return RefundOutput{}, errUnauthorized()
	}
	if in.PaymentID <= 0 {
		return RefundOutput{}, errValidation("invalid payment_id")
	}
	if in.Amount != nil && *in.Amount <= 0 {
		return RefundOutput{}, errValidation("refund amount must be positive")
	}
	reason := strings.TrimSpace(in.Reason)

	var (
		entry            model.PaymentTransaction
		gatewayPaymentID string
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByIDForUpdate(ctx, in.PaymentID)
		if err == repo.ErrNotFound {
			return errNotFound("payment")
		}
		if err != nil {
			return errDB()
		}
		if p.Status != model.PaymentStatusSuccess {
			return errInvalidState("payment is not refundable in status " + string(p.Status))
		}
		if p.GatewayPaymentID == "" {
			return errInvalidState("payment has no gateway reference")
		}

		amount := p.Amount
		if in.Amount != nil {
			amount = *in.Amount
		}
		if amount > p.Amount {
			return errInvalidState("refund amount exceeds payment amount")
		}

		reserved, err := reservedRefundAmount(ctx, r, p.ID)
		if err != nil {
			return errDB()
		}
		if amount > p.Amount-reserved {
			return errInvalidState("refund amount exceeds remaining refundable amount")
		}

		now := u.now()
		entry = model.PaymentTransaction{
			PaymentID:     p.ID,
			TransactionID: "REFUND_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			Type:          model.TransactionTypeRefund,
			Status:        model.TransactionStatusInitiated,
			Amount:        amount,
			Notes:         refundNotes(reason, in.Notes),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		entry.ID, err = r.Transactions().Create(ctx, entry)
		if err != nil {
			return errDB()
		}
		gatewayPaymentID = p.GatewayPaymentID
		return nil
	})
	if err != nil {
		return RefundOutput{}, err
	}

	ref, gwErr := u.gateway.Refund(ctx, gatewayPaymentID, entry.Amount, reason, in.Notes)

	var (
		notice *model.Notification
		now    = u.now()
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByIDForUpdate(ctx, in.PaymentID)
		if err != nil {
			return errDB()
		}

		if gwErr != nil {
			// 失敗も台帳に残す（確保していた額は解放される）
			if err := r.Transactions().Finalize(ctx, entry.ID, model.TransactionStatusFailed, "", gwErr.Error()); err != nil && err != repo.ErrConflict {
				return errDB()
			}
			return nil
		}

		// Webhookが先に確定させていれば ErrConflict
		if err := r.Transactions().Finalize(ctx, entry.ID, model.TransactionStatusSuccess, ref.ID, ""); err != nil && err != repo.ErrConflict {
			return errDB()
		}

		before := paymentStateJSON(p)
		if _, err := settleFullRefund(ctx, r, &p); err != nil {
			return err
		}

		after, _ := json.Marshal(map[string]interface{}{
			"status":            p.Status,
			"refund_id":         entry.TransactionID,
			"refund_amount":     entry.Amount,
			"gateway_refund_id": ref.ID,
		})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionRefundPayment,
			ResourceType: model.AuditResourcePayment,
			ResourceID:   p.ID,
			BeforeJSON:   before,
			AfterJSON:    string(after),
			CreatedAt:    now,
		}); err != nil {
			return errDB()
		}

		n, err := paymentNotification(ctx, r, p, model.NotifyPaymentRefunded, entry.Amount, now)
		if err != nil {
			return err
		}
		notice = &n
		return nil
	})
	if err != nil {
		return RefundOutput{}, err
	}
	if gwErr != nil {
		return RefundOutput{}, mapGatewayError(gwErr)
	}

	if notice != nil {
		u.notifier.Dispatch(*notice)
	}

	return RefundOutput{
		RefundID:        entry.TransactionID,
		PaymentID:       in.PaymentID,
		RefundAmount:    entry.Amount,
		RefundStatus:    string(model.TransactionStatusSuccess),
		GatewayRefundID: ref.ID,
		Reason:          reason,
		ProcessedAt:     now,
		Message:         "refund processed",
	}, nil
}

func refundNotes(reason, notes string) string {
	notes = strings.TrimSpace(notes)
	switch {
	case reason == "":
		return notes
	case notes == "":
		return reason
	default:
		return reason + ": " + notes
	}
}
