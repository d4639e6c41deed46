package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"checkout/internal/domain/model"
	repo "checkout/internal/repository"
)

// 商品の参照と、管理者の在庫補充
type ProductUsecase struct {
	tx  repo.TransactionManager
	now func() time.Time
}

// DI
func NewProductUsecase(tx repo.TransactionManager) *ProductUsecase {
	return &ProductUsecase{tx: tx, now: time.Now}
}

type ProductOutput struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"stock"`
	InStock     bool   `json:"in_stock"`
}

type AdminRestockInput struct {
	Quantity int64
	Reason   string
}

type RestockOutput struct {
	ProductID int64 `json:"product_id"`
	Before    int64 `json:"before"`
	After     int64 `json:"after"`
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, productID int64) (ProductOutput, error) {
	if productID <= 0 {
		return ProductOutput{}, errValidation("invalid product id")
	}

	var out ProductOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("product")
		}
		if err != nil {
			return errDB()
		}
		//非公開は存在しない扱い
		if !p.IsActive {
			return errNotFound("product")
		}
		out = toProductOutput(p)
		return nil
	})
	return out, err
}

// 補充は加算だけ。減らす操作は引当（チェックアウト）の経路に限る
func (u *ProductUsecase) AdminRestock(ctx context.Context, adminUserID int64, productID int64, in AdminRestockInput) (RestockOutput, error) {
	if adminUserID <= 0 {
		return RestockOutput{}, errUnauthorized()
	}
	if productID <= 0 {
		return RestockOutput{}, errValidation("invalid product id")
	}
	if in.Quantity <= 0 {
		return RestockOutput{}, errValidation("quantity must be > 0")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return RestockOutput{}, errValidation("reason required")
	}

	var out RestockOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := u.now()

		//変更前の在庫（before）
		p, err := r.Products().FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound("product")
		}
		if err != nil {
			return errDB()
		}

		if err := r.Inventory().IncreaseStock(ctx, productID, in.Quantity); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return errNotFound("product")
			}
			return errDB()
		}

		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   productID,
			ActorUserID: adminUserID,
			Delta:       in.Quantity,
			Reason:      model.AdjustmentReasonAdminRestock,
			CreatedAt:   now,
		}); err != nil {
			return errDB()
		}

		out = RestockOutput{ProductID: productID, Before: p.Stock, After: p.Stock + in.Quantity}

		//監査ログ（在庫補充）
		before, _ := json.Marshal(map[string]int64{"stock": out.Before})
		after, _ := json.Marshal(map[string]interface{}{"stock": out.After, "reason": reason})
		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  adminUserID,
			Action:       model.AuditActionRestockProduct,
			ResourceType: model.AuditResourceProduct,
			ResourceID:   productID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    now,
		}); err != nil {
			return errDB()
		}
		return nil
	})
	if err != nil {
		return RestockOutput{}, err
	}
	return out, nil
}

func toProductOutput(p model.Product) ProductOutput {
	return ProductOutput{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		InStock:     p.Stock > 0,
	}
}
