package usecase

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"
)

type PaymentUsecase struct {
	tx       repo.TransactionManager
	gateway  PaymentGateway
	notifier Notifier
	checkout *CheckoutUsecase
	currency string
	now      func() time.Time
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	gw PaymentGateway,
	notifier Notifier,
	checkout *CheckoutUsecase,
	currency string,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:       tx,
		gateway:  gw,
		notifier: notifier,
		checkout: checkout,
		currency: currency,
		now:      time.Now,
	}
}

type TransactionOutput struct {
	ID              int64     `json:"id"`
	TransactionID   string    `json:"transaction_id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	Amount          int64     `json:"amount"`
	GatewayRefundID string    `json:"gateway_refund_id,omitempty"`
	FailureReason   string    `json:"failure_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type PaymentOutput struct {
	ID               int64               `json:"id"`
	OrderID          int64               `json:"order_id"`
	UserID           int64               `json:"user_id"`
	Method           string              `json:"method"`
	Status           string              `json:"status"`
	Amount           int64               `json:"amount"`
	Currency         string              `json:"currency"`
	GatewayOrderID   string              `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string              `json:"gateway_payment_id,omitempty"`
	FailureReason    string              `json:"failure_reason,omitempty"`
	RefundedAmount   int64               `json:"refunded_amount"`
	IsRefundable     bool                `json:"is_refundable"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	Transactions     []TransactionOutput `json:"transactions"`
}

type IntentOutput struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Key            string `json:"key"`
	Sandbox        bool   `json:"sandbox"`
}

type VerifyPaymentInput struct {
	AddressID        int64
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	IdempotencyKey   string
}

type VerifyPaymentOutput struct {
	Verified bool        `json:"verified"`
	Order    OrderOutput `json:"order"`
}

// 金額はクライアントから受け取らず、カートの合計から決める
func (u *PaymentUsecase) CreateIntent(ctx context.Context, userID int64) (IntentOutput, error) {
	if userID <= 0 {
		return IntentOutput{}, errUnauthorized()
	}

	var snap model.CartSnapshot
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		snap, err = takeCartSnapshot(ctx, r, userID, u.now())
		return err
	})
	if err != nil {
		return IntentOutput{}, err
	}

	receipt := "rcpt_" + strconv.FormatInt(userID, 10) + "_" + strconv.FormatInt(u.now().UnixMilli(), 10)
	intent, err := u.gateway.CreateIntent(ctx, snap.Total, u.currency, receipt)
	if err != nil {
		return IntentOutput{}, mapGatewayError(err)
	}

	return IntentOutput{
		GatewayOrderID: intent.ID,
		Amount:         snap.Total,
		Currency:       u.currency,
		Key:            u.gateway.KeyID(),
		Sandbox:        intent.Sandbox,
	}, nil
}

// 署名を確認してから注文を作る。
// 再決済（retry）のゲートウェイ注文なら、既存の決済をその場でCAPTUREする
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, userID int64, in VerifyPaymentInput) (VerifyPaymentOutput, error) {
	if userID <= 0 {
		return VerifyPaymentOutput{}, errUnauthorized()
	}
	gOrder := strings.TrimSpace(in.GatewayOrderID)
	gPay := strings.TrimSpace(in.GatewayPaymentID)
	sig := strings.TrimSpace(in.GatewaySignature)
	if gOrder == "" || gPay == "" || sig == "" {
		return VerifyPaymentOutput{}, errValidation("gateway_order_id, gateway_payment_id and gateway_signature are required")
	}
	if !u.gateway.VerifyPaymentSignature(gOrder, gPay, sig) {
		return VerifyPaymentOutput{}, errInvalidSignature()
	}

	var (
		out      OrderOutput
		existing bool
		notice   *model.Notification
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByGatewayOrderIDForUpdate(ctx, gOrder)
		if err == repo.ErrNotFound {
			return nil
		}
		if err != nil {
			return errDB()
		}
		if p.UserID != userID {
			return errForbidden()
		}
		existing = true

		now := u.now()
		p.GatewaySignature = sig
		res, err := applyPaymentEvent(ctx, r, &p, model.PaymentEventCapture, gPay, "", now)
		if err != nil {
			return err
		}
		if res == reconcileRejected {
			return errInvalidState("payment cannot be captured in status " + string(p.Status))
		}
		if res == reconcileApplied {
			n, err := paymentNotification(ctx, r, p, model.NotifyPaymentCaptured, p.Amount, now)
			if err != nil {
				return err
			}
			notice = &n
		}

		o, err := r.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return errDB()
		}
		out, err = loadOrderOutput(ctx, r, o)
		return err
	})
	if err != nil {
		return VerifyPaymentOutput{}, err
	}
	if notice != nil {
		u.notifier.Dispatch(*notice)
	}
	if existing {
		return VerifyPaymentOutput{Verified: true, Order: out}, nil
	}

	out, err = u.checkout.Checkout(ctx, userID, CheckoutInput{
		AddressID:        in.AddressID,
		PaymentMethod:    string(model.CheckoutMethodGateway),
		GatewayOrderID:   gOrder,
		GatewayPaymentID: gPay,
		GatewaySignature: sig,
		IdempotencyKey:   in.IdempotencyKey,
	})
	if err != nil {
		return VerifyPaymentOutput{}, err
	}
	return VerifyPaymentOutput{Verified: true, Order: out}, nil
}

func (u *PaymentUsecase) GetPayment(ctx context.Context, viewer Viewer, paymentID int64) (PaymentOutput, error) {
	if viewer.UserID <= 0 {
		return PaymentOutput{}, errUnauthorized()
	}
	if paymentID <= 0 {
		return PaymentOutput{}, errValidation("invalid id")
	}

	var out PaymentOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByID(ctx, paymentID)
		if err == repo.ErrNotFound {
			return errNotFound("payment")
		}
		if err != nil {
			return errDB()
		}
		if !viewer.canSee(p.UserID) {
			return errForbidden()
		}
		out, err = buildPaymentOutput(ctx, r, p)
		return err
	})
	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}

func (u *PaymentUsecase) GetPaymentByOrder(ctx context.Context, viewer Viewer, orderID int64) (PaymentOutput, error) {
	if viewer.UserID <= 0 {
		return PaymentOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return PaymentOutput{}, errValidation("invalid id")
	}

	var out PaymentOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Payments().FindByOrderID(ctx, orderID)
		if err == repo.ErrNotFound {
			return errNotFound("payment")
		}
		if err != nil {
			return errDB()
		}
		if !viewer.canSee(p.UserID) {
			return errForbidden()
		}
		out, err = buildPaymentOutput(ctx, r, p)
		return err
	})
	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}

func (u *PaymentUsecase) PaymentHistory(ctx context.Context, userID int64) ([]PaymentOutput, error) {
	if userID <= 0 {
		return []PaymentOutput{}, errUnauthorized()
	}

	var outs []PaymentOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		list, err := r.Payments().ListByUserID(ctx, userID)
		if err != nil {
			return errDB()
		}
		outs = make([]PaymentOutput, 0, len(list))
		for _, p := range list {
			o, err := buildPaymentOutput(ctx, r, p)
			if err != nil {
				return err
			}
			outs = append(outs, o)
		}
		return nil
	})
	if err != nil {
		return []PaymentOutput{}, err
	}
	return outs, nil
}

// 失敗・未完了の決済に新しいゲートウェイ注文を発行し直す。
// 注文と決済の行は増やさない
func (u *PaymentUsecase) RetryPayment(ctx context.Context, actorUserID int64, paymentID int64) (PaymentOutput, error) {
	if actorUserID <= 0 {
		return PaymentOutput{}, errUnauthorized()
	}
	if paymentID <= 0 {
		return PaymentOutput{}, errValidation("invalid id")
	}

	// 事前チェック（ゲートウェイ呼び出しはロックの外）
	var (
		p model.Payment
		o model.Order
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		p, err = r.Payments().FindByID(ctx, paymentID)
		if err == repo.ErrNotFound {
			return errNotFound("payment")
		}
		if err != nil {
			return errDB()
		}
		o, err = r.Orders().FindByID(ctx, p.OrderID)
		if err != nil {
			return errDB()
		}
		return nil
	})
	if err != nil {
		return PaymentOutput{}, err
	}
	if err := checkRetryable(p); err != nil {
		return PaymentOutput{}, err
	}

	intent, err := u.gateway.CreateIntent(ctx, p.Amount, p.Currency, "RETRY_"+o.OrderNumber)
	if err != nil {
		return PaymentOutput{}, mapGatewayError(err)
	}

	var out PaymentOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		locked, err := r.Payments().FindByIDForUpdate(ctx, paymentID)
		if err != nil {
			return errDB()
		}
		// ロックを取っている間に状態が変わっていないか
		if err := checkRetryable(locked); err != nil {
			return err
		}
		next, _ := locked.Status.Next(model.PaymentEventRetry)

		before := paymentStateJSON(locked)
		locked.Status = next
		locked.GatewayOrderID = intent.ID
		locked.GatewayPaymentID = ""
		locked.GatewaySignature = ""
		locked.FailureReason = ""
		if err := r.Payments().Update(ctx, locked); err != nil {
			return errDB()
		}
		if err := r.Orders().UpdatePaymentStatus(ctx, locked.OrderID, model.OrderPaymentPending); err != nil {
			return errDB()
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorUserID,
			Action:       model.AuditActionRetryPayment,
			ResourceType: model.AuditResourcePayment,
			ResourceID:   locked.ID,
			BeforeJSON:   before,
			AfterJSON:    paymentStateJSON(locked),
			CreatedAt:    u.now(),
		}); err != nil {
			return errDB()
		}

		out, err = buildPaymentOutput(ctx, r, locked)
		return err
	})
	if err != nil {
		return PaymentOutput{}, err
	}
	return out, nil
}

// 再決済できるのはGATEWAYのPENDING / FAILEDだけ（SUCCESS・REFUNDED・代引きは不可）
func checkRetryable(p model.Payment) error {
	if p.Method != model.PaymentMethodGateway {
		return errInvalidState("only gateway payments can be retried (method " + string(p.Method) + ")")
	}
	if _, ok := p.Status.Next(model.PaymentEventRetry); !ok {
		return errInvalidState("only PENDING or FAILED payments can be retried (status " + string(p.Status) + ")")
	}
	return nil
}

func buildPaymentOutput(ctx context.Context, r repo.TxRepos, p model.Payment) (PaymentOutput, error) {
	txs, err := r.Transactions().ListByPaymentID(ctx, p.ID)
	if err != nil {
		return PaymentOutput{}, errDB()
	}
	refunded, err := refundedAmount(ctx, r, p.ID)
	if err != nil {
		return PaymentOutput{}, errDB()
	}

	outTxs := make([]TransactionOutput, 0, len(txs))
	for _, t := range txs {
		outTxs = append(outTxs, TransactionOutput{
			ID:              t.ID,
			TransactionID:   t.TransactionID,
			Type:            string(t.Type),
			Status:          string(t.Status),
			Amount:          t.Amount,
			GatewayRefundID: t.GatewayRefundID,
			FailureReason:   t.FailureReason,
			CreatedAt:       t.CreatedAt,
		})
	}

	return PaymentOutput{
		ID:               p.ID,
		OrderID:          p.OrderID,
		UserID:           p.UserID,
		Method:           string(p.Method),
		Status:           string(p.Status),
		Amount:           p.Amount,
		Currency:         p.Currency,
		GatewayOrderID:   p.GatewayOrderID,
		GatewayPaymentID: p.GatewayPaymentID,
		FailureReason:    p.FailureReason,
		RefundedAmount:   refunded,
		IsRefundable:     p.Status.Refundable() && refunded < p.Amount,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
		Transactions:     outTxs,
	}, nil
}

// 監査ログ用
func paymentStateJSON(p model.Payment) string {
	b, _ := json.Marshal(map[string]interface{}{
		"status":           p.Status,
		"gateway_order_id": p.GatewayOrderID,
		"failure_reason":   p.FailureReason,
	})
	return string(b)
}
