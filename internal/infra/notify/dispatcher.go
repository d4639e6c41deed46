package notify

import (
	"context"
	"sync"
	"time"

	"checkout/internal/domain/model"

	"go.uber.org/zap"
)

// 送りっぱなしの通知。失敗はログだけで呼び出し側には返さない
type Dispatcher struct {
	pub     Publisher
	log     *zap.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(pub Publisher, l *zap.Logger, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{pub: pub, log: l, timeout: timeout}
}

func (d *Dispatcher) Dispatch(n model.Notification) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("notification dropped after close", zap.String("kind", string(n.Kind)), zap.Int64("order_id", n.OrderID))
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("notification panic", zap.Any("panic", r), zap.String("kind", string(n.Kind)))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.pub.Publish(ctx, n); err != nil {
			d.log.Warn("notification failed",
				zap.String("kind", string(n.Kind)),
				zap.Int64("order_id", n.OrderID),
				zap.Error(err),
			)
		}
	}()
}

// 配送中の通知を待ってから送り先を閉じる
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	return d.pub.Close()
}
