package repository

import (
	"checkout/internal/domain/model"
	"context"
)

// 住所(Address)の窓口。注文は住所を値でコピーするので、ここでの変更は既存注文に影響しない
type AddressRepository interface {
	//住所IDから住所を1件取得。無ければ ErrNotFound
	FindByID(ctx context.Context, addressID int64) (model.Address, error)
	//デフォルトが先頭
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)
	Create(ctx context.Context, a model.Address) (model.Address, error)
	//user内でdefaultは1つ。対象が無ければ ErrNotFound
	SetDefault(ctx context.Context, userID int64, addressID int64) error
}
