package notify

import (
	"context"
	"encoding/json"

	"checkout/internal/domain/model"

	"github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
		},
	}
}

// 同じ注文の通知は同じパーティションに入る（キーは注文番号）
func (p *KafkaPublisher) Publish(ctx context.Context, n model.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}

	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(n.OrderNumber),
		Value: b,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "kind", Value: []byte(n.Kind)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
