// Package testutil はSQLiteを使った結合テスト用の部品。
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"checkout/internal/domain/model"
	"checkout/internal/infra/db"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// テストごとに別ファイルのDBを作り、AutoMigrateまで済ませる。
// 接続は1本に絞る（SQLiteは同時書き込みができない）
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "checkout.db")
	cfg := db.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?_busy_timeout=5000", path)), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

func SeedUser(t *testing.T, gdb *gorm.DB, email string, role model.Role) model.User {
	t.Helper()
	u := model.User{Email: email, Role: role, IsActive: true}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedProduct(t *testing.T, gdb *gorm.DB, name string, price int64, stock int64) model.Product {
	t.Helper()
	p := model.Product{Name: name, Price: price, Stock: stock, IsActive: true}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedAddress(t *testing.T, gdb *gorm.DB, userID int64) model.Address {
	t.Helper()
	now := time.Now()
	a := model.Address{
		UserID:     userID,
		Name:       "Taro Yamada",
		PostalCode: "100-0001",
		Prefecture: "Tokyo",
		City:       "Chiyoda",
		Line1:      "1-1",
		Phone:      "090-0000-0000",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := gdb.Create(&a).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return a
}

// ACTIVEカートに明細を入れる（カートが無ければ作る）
func SeedCartLine(t *testing.T, gdb *gorm.DB, userID int64, product model.Product, qty int64) model.CartItem {
	t.Helper()

	var cart model.Cart
	err := gdb.Where("user_id = ? AND status = ?", userID, model.CartStatusActive).First(&cart).Error
	if err != nil {
		cart = model.Cart{UserID: userID, Status: model.CartStatusActive}
		if err := gdb.Create(&cart).Error; err != nil {
			t.Fatalf("seed cart: %v", err)
		}
	}

	item := model.CartItem{
		CartID:            cart.ID,
		ProductID:         product.ID,
		Quantity:          qty,
		UnitPriceSnapshot: product.Price,
	}
	if err := gdb.Create(&item).Error; err != nil {
		t.Fatalf("seed cart item: %v", err)
	}
	return item
}

func ProductStock(t *testing.T, gdb *gorm.DB, productID int64) int64 {
	t.Helper()
	var p model.Product
	if err := gdb.First(&p, productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.Stock
}

func CountRows(t *testing.T, gdb *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	if err := gdb.Model(m).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
