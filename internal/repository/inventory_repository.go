package repository

import (
	"checkout/internal/domain/model"
	"context"
)

type InventoryRepository interface {
	// 在庫が足りるときだけ減算（1回の条件付きUPDATE）。足りなければ false で何も変えない
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 増減履歴
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
	ListAdjustmentsByOrderID(ctx context.Context, orderID int64) ([]model.InventoryAdjustment, error)
}
