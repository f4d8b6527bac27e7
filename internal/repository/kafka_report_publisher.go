package repository

import (
	"context"
	"fmt"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/domain/repository"
	pkgkafka "PriceCast/pkg/kafka"
)

// producer is the subset of *pkgkafka.Producer the publisher needs.
type producer interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

var _ producer = (*pkgkafka.Producer)(nil)

// KafkaReportPublisher writes reports to a topic keyed by instrument, so
// reports of one instrument stay ordered within a partition.
type KafkaReportPublisher struct {
	producer producer
	topic    string
	metrics  repository.Metrics
}

var _ repository.ReportPublisher = (*KafkaReportPublisher)(nil)

func NewKafkaReportPublisher(p *pkgkafka.Producer, topic string, metrics repository.Metrics) *KafkaReportPublisher {
	return newKafkaReportPublisher(p, topic, metrics)
}

func newKafkaReportPublisher(p producer, topic string, metrics repository.Metrics) *KafkaReportPublisher {
	if metrics == nil {
		metrics = repository.NopMetrics{}
	}
	return &KafkaReportPublisher{producer: p, topic: topic, metrics: metrics}
}

func (k *KafkaReportPublisher) PublishReport(ctx context.Context, r *models.ForecastReport) error {
	if r == nil {
		return fmt.Errorf("nil report")
	}
	if err := k.producer.Publish(ctx, k.topic, []byte(r.Instrument), r); err != nil {
		k.metrics.RecordError("kafka_publish")
		return fmt.Errorf("publish report %s: %w", r.ID, err)
	}
	return nil
}

func (k *KafkaReportPublisher) Close() error {
	return k.producer.Close()
}
