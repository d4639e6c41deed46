package repository

import (
	"checkout/internal/domain/model"
	"context"
)

// 見つからないときは ErrNotFound
type UserRepository interface {
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
