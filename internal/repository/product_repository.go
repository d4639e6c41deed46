package repository

import (
	"checkout/internal/domain/model"
	"context"
)

// 商品はカタログ側の持ち物。チェックアウトは参照だけ
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}
