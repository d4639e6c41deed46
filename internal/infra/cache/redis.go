package cache

import (
	"context"
	"fmt"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

const webhookKeyPrefix = "webhook:done:"

// 処理済みWebhookの目印。DB側の台帳チェックの前に弾くための近道
type WebhookDeduper struct {
	client radix.Client
	ttl    time.Duration
}

func NewRedisPool(addr string) (radix.Client, error) {
	pool, err := radix.NewPool("tcp", addr, 10)
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return pool, nil
}

func NewWebhookDeduper(client radix.Client, ttl time.Duration) *WebhookDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &WebhookDeduper{client: client, ttl: ttl}
}

func (d *WebhookDeduper) Seen(ctx context.Context, key string) (bool, error) {
	var n int
	if err := d.client.Do(radix.Cmd(&n, "EXISTS", webhookKeyPrefix+key)); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *WebhookDeduper) Mark(ctx context.Context, key string) error {
	return d.client.Do(radix.FlatCmd(nil, "SET", webhookKeyPrefix+key, "1", "EX", int(d.ttl.Seconds())))
}

// Redisが無い環境用。重複判定はDBの台帳だけに任せる
type NoopDeduper struct{}

func (NoopDeduper) Seen(ctx context.Context, key string) (bool, error) { return false, nil }

func (NoopDeduper) Mark(ctx context.Context, key string) error { return nil }
