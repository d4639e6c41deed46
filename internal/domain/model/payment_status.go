package model

// 決済ステータスを進めるイベント
type PaymentEvent string

const (
	PaymentEventCapture    PaymentEvent = "CAPTURE"
	PaymentEventFail       PaymentEvent = "FAIL"
	PaymentEventRefundFull PaymentEvent = "REFUND_FULL"
	PaymentEventRetry      PaymentEvent = "RETRY"
)

// from == to は適用済み（台帳も通知も増やさない）。
// SUCCESSに来た遅延FAILは表に無いので拒否される。
var paymentTransitions = map[PaymentStatus]map[PaymentEvent]PaymentStatus{
	PaymentStatusPending: {
		PaymentEventCapture: PaymentStatusSuccess,
		PaymentEventFail:    PaymentStatusFailed,
		PaymentEventRetry:   PaymentStatusPending,
	},
	PaymentStatusFailed: {
		PaymentEventCapture: PaymentStatusSuccess,
		PaymentEventFail:    PaymentStatusFailed,
		PaymentEventRetry:   PaymentStatusPending,
	},
	PaymentStatusSuccess: {
		PaymentEventCapture:    PaymentStatusSuccess,
		PaymentEventRefundFull: PaymentStatusRefunded,
	},
	PaymentStatusRefunded: {},
}

func (s PaymentStatus) Next(ev PaymentEvent) (PaymentStatus, bool) {
	to, ok := paymentTransitions[s][ev]
	return to, ok
}

func (s PaymentStatus) Refundable() bool {
	_, ok := s.Next(PaymentEventRefundFull)
	return ok
}
