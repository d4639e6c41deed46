package model

import "time"

type CartSnapshotLine struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

// チェックアウト時点のカートの値コピー。
// 元のカートを後から変更してもこちらは変わらない。
type CartSnapshot struct {
	UserID     int64              `json:"user_id"`
	CartID     int64              `json:"cart_id"`
	Lines      []CartSnapshotLine `json:"lines"`
	Total      int64              `json:"total"`
	CapturedAt time.Time          `json:"captured_at"`
}

// names は product_id -> 商品名。無い場合は空文字のまま
func NewCartSnapshot(cart Cart, items []CartItem, names map[int64]string, at time.Time) CartSnapshot {
	lines := make([]CartSnapshotLine, 0, len(items))
	var total int64
	for _, it := range items {
		line := CartSnapshotLine{
			ProductID:   it.ProductID,
			ProductName: names[it.ProductID],
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPriceSnapshot,
			LineTotal:   it.UnitPriceSnapshot * it.Quantity,
		}
		total += line.LineTotal
		lines = append(lines, line)
	}
	return CartSnapshot{
		UserID:     cart.UserID,
		CartID:     cart.ID,
		Lines:      lines,
		Total:      total,
		CapturedAt: at,
	}
}

func (s CartSnapshot) IsEmpty() bool {
	return len(s.Lines) == 0
}
