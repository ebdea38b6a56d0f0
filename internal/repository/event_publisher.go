package repository

import (
	"context"

	"PriceCast/internal/domain/models"
	pkgkafka "PriceCast/pkg/kafka"
)

// KafkaEventPublisher emits forecast events keyed by symbol.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishForecast(ctx context.Context, ev *models.ForecastEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(ev.Symbol), ev)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopEventPublisher drops events; used when Kafka is disabled.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishForecast(context.Context, *models.ForecastEvent) error { return nil }
func (NopEventPublisher) Close() error                                                 { return nil }
