package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"

	"github.com/google/uuid"
)

// カートを注文に変える。在庫引当・注文・決済・台帳を1トランザクションで作る
type CheckoutUsecase struct {
	tx        repo.TransactionManager
	users     repo.UserRepository
	addresses repo.AddressRepository
	gateway   PaymentGateway
	notifier  Notifier
	currency  string
	now       func() time.Time
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	users repo.UserRepository,
	addresses repo.AddressRepository,
	gw PaymentGateway,
	notifier Notifier,
	currency string,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:        tx,
		users:     users,
		addresses: addresses,
		gateway:   gw,
		notifier:  notifier,
		currency:  currency,
		now:       time.Now,
	}
}

type CheckoutInput struct {
	AddressID        int64
	PaymentMethod    string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	IdempotencyKey   string
}

// 決済方法ごとの初期状態
type paymentSelection struct {
	method             model.PaymentMethod
	status             model.PaymentStatus
	orderPaymentStatus model.OrderPaymentStatus
	gatewayOrderID     string
	gatewayPaymentID   string
	signature          string
	ledgerID           string
	ledgerStatus       model.TransactionStatus
}

func (u *CheckoutUsecase) Checkout(ctx context.Context, userID int64, in CheckoutInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if in.AddressID <= 0 {
		return OrderOutput{}, errValidation("invalid address_id")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if len(key) > 255 {
		return OrderOutput{}, errValidation("invalid idempotency_key")
	}
	if key == "" {
		key = uuid.NewString()
	}

	user, err := u.users.FindByID(ctx, userID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, errNotFound("user")
	}
	if err != nil {
		return OrderOutput{}, errDB()
	}
	if !user.IsActive {
		return OrderOutput{}, errForbidden()
	}

	//address_idの存在確認＋所有チェック
	addr, err := u.addresses.FindByID(ctx, in.AddressID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, errNotFound("address")
	}
	if err != nil {
		return OrderOutput{}, errDB()
	}
	if addr.UserID != userID {
		return OrderOutput{}, errForbidden()
	}

	// 署名などは書き込み前に確認
	sel, err := u.selectPayment(in)
	if err != nil {
		return OrderOutput{}, err
	}

	var (
		out     OrderOutput
		replay  bool
		capture *model.Notification
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return errDB()
		}
		if found {
			replay = true
			out, err = loadOrderOutput(ctx, r, existing)
			return err
		}

		// 同じゲートウェイ注文の決済が既にあれば新しい注文は作らない。
		// 未完了（retry後のPENDING / FAILED）ならここでCAPTUREする
		if sel.gatewayOrderID != "" {
			p, err := r.Payments().FindByGatewayOrderIDForUpdate(ctx, sel.gatewayOrderID)
			if err == nil {
				if p.UserID != userID {
					return errForbidden()
				}
				now := u.now()
				p.GatewaySignature = sel.signature
				res, err := applyPaymentEvent(ctx, r, &p, model.PaymentEventCapture, sel.gatewayPaymentID, "", now)
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
					capture = &n
				}

				o, err := r.Orders().FindByID(ctx, p.OrderID)
				if err != nil {
					return errDB()
				}
				replay = true
				out, err = loadOrderOutput(ctx, r, o)
				return err
			}
			if err != repo.ErrNotFound {
				return errDB()
			}
		}

		out, err = u.placeOrder(ctx, r, userID, addr, key, sel)
		return err
	})
	if err != nil {
		return OrderOutput{}, err
	}

	if capture != nil {
		u.notifier.Dispatch(*capture)
	}
	if !replay {
		u.notifier.Dispatch(model.Notification{
			Kind:        model.NotifyOrderConfirmed,
			OrderID:     out.ID,
			OrderNumber: out.OrderNumber,
			UserID:      out.UserID,
			PaymentID:   paymentIDOf(out),
			Amount:      out.FinalAmount,
			Currency:    out.Currency,
			OccurredAt:  u.now(),
		})
	}
	return out, nil
}

func (u *CheckoutUsecase) selectPayment(in CheckoutInput) (paymentSelection, error) {
	method, ok := model.ParseCheckoutMethod(in.PaymentMethod)
	if !ok {
		return paymentSelection{}, errValidation("invalid payment_method")
	}

	switch method {
	case model.CheckoutMethodGateway:
		gOrder := strings.TrimSpace(in.GatewayOrderID)
		gPay := strings.TrimSpace(in.GatewayPaymentID)
		sig := strings.TrimSpace(in.GatewaySignature)
		if gOrder == "" || gPay == "" || sig == "" {
			return paymentSelection{}, errValidation("gateway_order_id, gateway_payment_id and gateway_signature are required")
		}
		if !u.gateway.VerifyPaymentSignature(gOrder, gPay, sig) {
			return paymentSelection{}, errInvalidSignature()
		}
		return capturedSelection(gOrder, gPay, sig), nil

	case model.CheckoutMethodTest:
		if !u.gateway.Sandbox() {
			return paymentSelection{}, errValidation("test payments are only available in sandbox mode")
		}
		gOrder := "test_order_" + strconv.FormatInt(u.now().UnixMilli(), 10)
		gPay := "test_payment_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		return capturedSelection(gOrder, gPay, ""), nil

	default:
		return paymentSelection{
			method:             model.PaymentMethodCashOnDelivery,
			status:             model.PaymentStatusPending,
			orderPaymentStatus: model.OrderPaymentPending,
			ledgerID:           "cod:" + uuid.NewString(),
			ledgerStatus:       model.TransactionStatusPending,
		}, nil
	}
}

func capturedSelection(gOrder, gPay, sig string) paymentSelection {
	return paymentSelection{
		method:             model.PaymentMethodGateway,
		status:             model.PaymentStatusSuccess,
		orderPaymentStatus: model.OrderPaymentPaid,
		gatewayOrderID:     gOrder,
		gatewayPaymentID:   gPay,
		signature:          sig,
		ledgerID:           captureLedgerID(gPay),
		ledgerStatus:       model.TransactionStatusSuccess,
	}
}

// トランザクション内。どこかで失敗すればロールバックで引当もすべて戻る
func (u *CheckoutUsecase) placeOrder(ctx context.Context, r repo.TxRepos, userID int64, addr model.Address, key string, sel paymentSelection) (OrderOutput, error) {
	now := u.now()

	snap, err := takeCartSnapshot(ctx, r, userID, now)
	if err != nil {
		return OrderOutput{}, err
	}

	//在庫を確定時に再チェックして減らす
	orderItems := make([]model.OrderItem, 0, len(snap.Lines))
	var subtotal int64
	for _, line := range snap.Lines {
		p, err := r.Products().FindByID(ctx, line.ProductID)
		if err == repo.ErrNotFound {
			return OrderOutput{}, errNotFound("product")
		}
		if err != nil {
			return OrderOutput{}, errDB()
		}
		if !p.IsActive {
			return OrderOutput{}, errInvalidState("product not available: " + p.Name)
		}

		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, line.Quantity)
		if err != nil {
			return OrderOutput{}, errDB()
		}
		if !ok {
			return OrderOutput{}, errInsufficientStock(p.Name)
		}

		orderItems = append(orderItems, model.OrderItem{
			ProductID:           p.ID,
			ProductNameSnapshot: p.Name,
			UnitPriceSnapshot:   line.UnitPrice,
			Quantity:            line.Quantity,
			LineTotal:           line.LineTotal,
			CreatedAt:           now,
		})
		subtotal += line.LineTotal
	}

	order := model.Order{
		OrderNumber:     model.NewOrderNumber(),
		UserID:          userID,
		AddressID:       addr.ID,
		ShippingAddress: addr.ToShippingAddress(),
		Status:          model.OrderStatusConfirmed,
		PaymentStatus:   sel.orderPaymentStatus,
		Subtotal:        subtotal,
		FinalAmount:     model.FinalAmount(subtotal, 0, 0),
		Currency:        u.currency,
		IdempotencyKey:  key,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	orderID, err := r.Orders().Create(ctx, order)
	if err == repo.ErrConflict {
		return OrderOutput{}, errInvalidState("checkout already submitted")
	}
	if err != nil {
		return OrderOutput{}, errDB()
	}
	order.ID = orderID

	for _, it := range orderItems {
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   it.ProductID,
			OrderID:     &orderID,
			ActorUserID: userID,
			Delta:       -it.Quantity,
			Reason:      model.AdjustmentReasonOrderReserve,
			CreatedAt:   now,
		}); err != nil {
			return OrderOutput{}, errDB()
		}
	}

	if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
		return OrderOutput{}, errDB()
	}

	payment := model.Payment{
		OrderID:          orderID,
		UserID:           userID,
		Method:           sel.method,
		GatewayOrderID:   sel.gatewayOrderID,
		GatewayPaymentID: sel.gatewayPaymentID,
		GatewaySignature: sel.signature,
		Amount:           order.FinalAmount,
		Currency:         u.currency,
		Status:           sel.status,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	paymentID, err := r.Payments().Create(ctx, payment)
	if err == repo.ErrConflict {
		return OrderOutput{}, errInvalidState("payment already recorded")
	}
	if err != nil {
		return OrderOutput{}, errDB()
	}
	payment.ID = paymentID

	if _, err := r.Transactions().Create(ctx, model.PaymentTransaction{
		PaymentID:            paymentID,
		TransactionID:        sel.ledgerID,
		Type:                 model.TransactionTypePayment,
		Status:               sel.ledgerStatus,
		Amount:               payment.Amount,
		GatewayTransactionID: sel.gatewayPaymentID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}); err != nil {
		if err == repo.ErrConflict {
			return OrderOutput{}, errInvalidState("payment already recorded")
		}
		return OrderOutput{}, errDB()
	}

	//明細をクリア（再注文防止）
	if err := r.Carts().Clear(ctx, snap.CartID); err != nil {
		return OrderOutput{}, errDB()
	}

	out := toOrderOutput(order, orderItems)
	out.Payment = toOrderPaymentOutput(payment)
	return out, nil
}

func paymentIDOf(o OrderOutput) int64 {
	if o.Payment == nil {
		return 0
	}
	return o.Payment.ID
}
