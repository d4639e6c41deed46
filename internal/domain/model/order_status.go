package model

import "strings"

// 注文ステータスを進めるイベント
type OrderEvent string

const (
	OrderEventConfirm OrderEvent = "CONFIRM"
	OrderEventShip    OrderEvent = "SHIP"
	OrderEventDeliver OrderEvent = "DELIVER"
	OrderEventCancel  OrderEvent = "CANCEL"
)

// from × event -> to。載っていない組み合わせは拒否
var orderTransitions = map[OrderStatus]map[OrderEvent]OrderStatus{
	OrderStatusPlaced: {
		OrderEventConfirm: OrderStatusConfirmed,
		OrderEventCancel:  OrderStatusCancelled,
	},
	OrderStatusConfirmed: {
		OrderEventShip:   OrderStatusShipped,
		OrderEventCancel: OrderStatusCancelled,
	},
	OrderStatusShipped: {
		OrderEventDeliver: OrderStatusDelivered,
		OrderEventCancel:  OrderStatusCancelled,
	},
	OrderStatusDelivered: {},
	OrderStatusCancelled: {},
}

func (s OrderStatus) Next(ev OrderEvent) (OrderStatus, bool) {
	to, ok := orderTransitions[s][ev]
	return to, ok
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func ParseOrderStatus(v string) (OrderStatus, bool) {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(v)))
	if _, ok := orderTransitions[s]; !ok {
		return "", false
	}
	return s, true
}

// 目標ステータスに対応するイベント（PLACEDへ戻すイベントは無い）
func OrderEventFor(target OrderStatus) (OrderEvent, bool) {
	switch target {
	case OrderStatusConfirmed:
		return OrderEventConfirm, true
	case OrderStatusShipped:
		return OrderEventShip, true
	case OrderStatusDelivered:
		return OrderEventDeliver, true
	case OrderStatusCancelled:
		return OrderEventCancel, true
	default:
		return "", false
	}
}
