package model_test

import (
	"testing"
	"time"

	"checkout/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func TestNewCartSnapshot_TotalsAndNames(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cart := model.Cart{ID: 7, UserID: 3}
	items := []model.CartItem{
		{CartID: 7, ProductID: 1, Quantity: 2, UnitPriceSnapshot: 100},
		{CartID: 7, ProductID: 2, Quantity: 1, UnitPriceSnapshot: 50},
	}

	snap := model.NewCartSnapshot(cart, items, map[int64]string{1: "product 1", 2: "product 2"}, at)

	assert.Equal(t, int64(3), snap.UserID)
	assert.Equal(t, int64(7), snap.CartID)
	assert.Equal(t, int64(250), snap.Total)
	assert.Equal(t, at, snap.CapturedAt)
	assert.Len(t, snap.Lines, 2)
	assert.Equal(t, "product 2", snap.Lines[1].ProductName)
	assert.Equal(t, int64(200), snap.Lines[0].LineTotal)
}

func TestNewCartSnapshot_DetachedFromItems(t *testing.T) {
	items := []model.CartItem{{ProductID: 1, Quantity: 2, UnitPriceSnapshot: 100}}
	snap := model.NewCartSnapshot(model.Cart{ID: 1}, items, nil, time.Now())

	// 元の明細を書き換えてもスナップショットは変わらない
	items[0].Quantity = 99
	items[0].UnitPriceSnapshot = 1

	assert.Equal(t, int64(2), snap.Lines[0].Quantity)
	assert.Equal(t, int64(100), snap.Lines[0].UnitPrice)
	assert.Equal(t, int64(200), snap.Total)
}

func TestNewCartSnapshot_Empty(t *testing.T) {
	snap := model.NewCartSnapshot(model.Cart{ID: 1}, nil, nil, time.Now())
	assert.True(t, snap.IsEmpty())
	assert.Equal(t, int64(0), snap.Total)
}
