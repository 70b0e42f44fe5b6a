package repository

import (
	"context"

	"GoldPulse/internal/domain/models"
	"GoldPulse/internal/domain/repository"
	pkgkafka "GoldPulse/pkg/kafka"
)

// KafkaSignalPublisher implements Publisher for Kafka. Each lifecycle
// event becomes one message keyed by signal ID so all events for a signal
// land on the same partition in order.
type KafkaSignalPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalPublisher creates a Kafka signal event publisher.
func NewKafkaSignalPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaSignalPublisher{producer: producer, topic: topic}
}

func (p *KafkaSignalPublisher) Publish(ctx context.Context, s *models.Signal) error {
	return p.producer.Publish(ctx, p.topic, []byte(s.ID), map[string]interface{}{
		"id":          s.ID,
		"symbol":      s.Symbol,
		"timeframe":   s.Timeframe,
		"strategy":    s.Strategy,
		"direction":   string(s.Direction),
		"entry":       s.Entry,
		"stop_loss":   s.StopLoss,
		"take_profit": s.TakeProfit,
		"confidence":  s.Confidence,
		"status":      string(s.Status),
		"pnl":         s.PnL,
		"candle_time": s.CandleTime.Unix(),
		"published":   s.PublishedAt.Unix(),
	})
}

func (p *KafkaSignalPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NoopPublisher discards events. Used when Kafka is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.Signal) error { return nil }
func (NoopPublisher) Close() error                                  { return nil }
