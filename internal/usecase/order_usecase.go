package usecase

import (
	"context"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"
)

type OrderUsecase struct {
	tx repo.TransactionManager
}

func NewOrderUsecase(tx repo.TransactionManager) *OrderUsecase {
	return &OrderUsecase{tx: tx}
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	LineTotal int64  `json:"line_total"`
}

type OrderPaymentOutput struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Status string `json:"status"`
	Amount int64  `json:"amount"`
}

type OrderOutput struct {
	ID              int64                 `json:"id"`
	OrderNumber     string                `json:"order_number"`
	UserID          int64                 `json:"user_id"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	Subtotal        int64                 `json:"subtotal"`
	ShippingCharge  int64                 `json:"shipping_charge"`
	Discount        int64                 `json:"discount"`
	FinalAmount     int64                 `json:"final_amount"`
	Currency        string                `json:"currency"`
	ShippingAddress model.ShippingAddress `json:"shipping_address"`
	CreatedAt       time.Time             `json:"created_at"`
	ShippedAt       *time.Time            `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time            `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time            `json:"cancelled_at,omitempty"`
	Items           []OrderItemOutput     `json:"items"`
	Payment         *OrderPaymentOutput   `json:"payment,omitempty"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, errUnauthorized()
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return errDB()
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return errDB()
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	if orderID <= 0 {
		return OrderOutput{}, errValidation("invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return errNotFound("order")
		}
		if err != nil {
			return errDB()
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return errNotFound("order")
		}

		out, err = loadOrderOutput(ctx, r, o)
		return err
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 明細と決済をまとめて読む
func loadOrderOutput(ctx context.Context, r repo.TxRepos, o model.Order) (OrderOutput, error) {
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, errDB()
	}
	out := toOrderOutput(o, items)

	p, err := r.Payments().FindByOrderID(ctx, o.ID)
	if err != nil && err != repo.ErrNotFound {
		return OrderOutput{}, errDB()
	}
	if err == nil {
		out.Payment = toOrderPaymentOutput(p)
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			LineTotal: it.UnitPriceSnapshot * it.Quantity,
		})
	}

	return OrderOutput{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Subtotal:        o.Subtotal,
		ShippingCharge:  o.ShippingCharge,
		Discount:        o.Discount,
		FinalAmount:     o.FinalAmount,
		Currency:        o.Currency,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		ShippedAt:       o.ShippedAt,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		Items:           outItems,
	}
}

func toOrderPaymentOutput(p model.Payment) *OrderPaymentOutput {
	return &OrderPaymentOutput{
		ID:     p.ID,
		Method: string(p.Method),
		Status: string(p.Status),
		Amount: p.Amount,
	}
}
