package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"checkout/internal/domain/model"
	"checkout/internal/logger"
	repo "checkout/internal/repository"
)

type AdminOrderUsecase struct {
	tx       repo.TransactionManager
	notifier Notifier
	now      func() time.Time
}

func NewAdminOrderUsecase(tx repo.TransactionManager, notifier Notifier) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, notifier: notifier, now: time.Now}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

type AdminOrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// 注文一覧（status / user / 期間で絞り込み）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) (AdminOrderListOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return AdminOrderListOutput{}, errValidation("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return AdminOrderListOutput{}, errValidation("invalid limit")
	}
	if f.Status != "" {
		s, ok := model.ParseOrderStatus(f.Status)
		if !ok {
			return AdminOrderListOutput{}, errValidation("invalid status")
		}
		f.Status = string(s)
	}

	out := AdminOrderListOutput{Items: []OrderOutput{}, Page: f.Page, Limit: f.Limit}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, total, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return errDB()
		}
		out.Total = total

		for _, o := range orders {
			oo, err := loadOrderOutput(ctx, r, o)
			if err != nil {
				return err
			}
			out.Items = append(out.Items, oo)
		}
		return nil
	})
	if err != nil {
		return AdminOrderListOutput{}, err
	}
	return out, nil
}

type orderStatusAudit struct {
	Status string `json:"status"`
}

// ステータス更新。CANCELLEDなら引当た在庫を戻す
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) error {
	if actorAdminUserID <= 0 {
		return errUnauthorized()
	}
	if orderID <= 0 {
		return errValidation("invalid id")
	}

	target, ok := model.ParseOrderStatus(in.Status)
	if !ok {
		return errValidation("invalid status")
	}
	ev, ok := model.OrderEventFor(target)
	if !ok {
		return errValidation("invalid status")
	}

	var notice *model.Notification

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return errNotFound("order")
		}
		if err != nil {
			return errDB()
		}

		// すでに同じなら何もしない
		if o.Status == target {
			return nil
		}
		next, ok := o.Status.Next(ev)
		if !ok || next != target {
			return errInvalidState("cannot change order from " + string(o.Status) + " to " + string(target))
		}

		now := u.now()
		// 読んだ後に他で変わっていたら ErrConflict
		if err := r.Orders().Transition(ctx, orderID, o.Status, target, now); err != nil {
			if err == repo.ErrConflict {
				return errInvalidState("order status changed concurrently")
			}
			return errDB()
		}

		if target == model.OrderStatusCancelled {
			if err := releaseOrderStock(ctx, r, actorAdminUserID, o.ID, now); err != nil {
				return err
			}
		}

		before, _ := json.Marshal(orderStatusAudit{Status: string(o.Status)})
		after, _ := json.Marshal(orderStatusAudit{Status: string(target)})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    now,
		}); err != nil {
			return errDB()
		}

		if kind, ok := model.NotificationKindForOrder(target); ok {
			notice = &model.Notification{
				Kind:        kind,
				OrderID:     o.ID,
				OrderNumber: o.OrderNumber,
				UserID:      o.UserID,
				Amount:      o.FinalAmount,
				Currency:    o.Currency,
				OccurredAt:  now,
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if notice != nil {
		u.notifier.Dispatch(*notice)
	}
	logger.Info("order status updated", "order_id", orderID, "status", string(target), "actor", actorAdminUserID)
	return nil
}

// 注文の明細数だけ在庫を戻す。遷移のCASが通った時だけ呼ぶので一度きり
func releaseOrderStock(ctx context.Context, r repo.TxRepos, actorUserID int64, orderID int64, at time.Time) error {
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return errDB()
	}
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return errDB()
		}
		oid := orderID
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   it.ProductID,
			OrderID:     &oid,
			ActorUserID: actorUserID,
			Delta:       it.Quantity,
			Reason:      model.AdjustmentReasonOrderRelease,
			CreatedAt:   at,
		}); err != nil {
			return errDB()
		}
	}
	return nil
}

// 監査ログ一覧
func (u *AdminOrderUsecase) ListAuditLogs(ctx context.Context, f repo.AuditLogFilter) ([]model.AuditLog, error) {
	if f.Limit == 0 {
		f.Limit = 50
	}
	if f.Limit < 0 || f.Limit > 200 {
		return nil, errValidation("invalid limit")
	}
	if f.Offset < 0 {
		return nil, errValidation("invalid offset")
	}
	if f.Action != nil {
		a := model.AuditAction(strings.ToUpper(strings.TrimSpace(string(*f.Action))))
		f.Action = &a
	}

	var logs []model.AuditLog
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		logs, err = r.AuditLogs().List(ctx, f)
		if err != nil {
			return errDB()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if logs == nil {
		logs = []model.AuditLog{}
	}
	return logs, nil
}
