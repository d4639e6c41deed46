package db

import (
	"fmt"

	"checkout/internal/config"
	"checkout/internal/domain/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect はDBに接続して *gorm.DB を返す。
func Connect(cfg config.Config) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return gdb, nil
}

// 一意制約違反を gorm.ErrDuplicatedKey に変換させる（repositoryがErrConflictにする）
func GormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// テーブル一覧。本番はgooseのSQL、テストはAutoMigrateで作る
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.Address{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.PaymentTransaction{},
		&model.InventoryAdjustment{},
		&model.AuditLog{},
	}
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(Models()...)
}
