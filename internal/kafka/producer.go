package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/dashboard-metrics-service/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const eventSource = "dashboard-metrics-service"

const eventTypeHeader = "event_type"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer announces metric writes on the metrics topic
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a producer for topic. Events are hashed on their key so
// updates to the same snapshot or day stay ordered within one partition.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}
}

// PublishMetricsUpdated publishes a snapshot update event
func (p *Producer) PublishMetricsUpdated(ctx context.Context, snapshot *models.MetricsSnapshot) error {
	if snapshot == nil {
		return errors.New("cannot publish metrics event without payload")
	}
	event := models.MetricsEvent{
		EventType: models.EventMetricsUpdated,
		Source:    eventSource,
		Metrics:   snapshot,
		Timestamp: time.Now(),
	}
	return p.publish(ctx, models.EventMetricsUpdated, event)
}

// PublishDailyMetricUpdated publishes a daily metric update event keyed by its date
func (p *Producer) PublishDailyMetricUpdated(ctx context.Context, dm *models.DailyMetric) error {
	if dm == nil {
		return errors.New("cannot publish daily metric event without payload")
	}
	event := models.MetricsEvent{
		EventType:   models.EventDailyMetricUpdated,
		Source:      eventSource,
		DailyMetric: dm,
		Timestamp:   time.Now(),
	}
	return p.publish(ctx, dm.Date.Format(time.DateOnly), event)
}

// publish writes one event under key. The event type is repeated in a header
// so consumers can filter without decoding the payload.
func (p *Producer) publish(ctx context.Context, key string, event models.MetricsEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType, err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   data,
		Headers: []kafka.Header{{Key: eventTypeHeader, Value: []byte(event.EventType)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}
	return nil
}

// Close flushes pending events and closes the writer
func (p *Producer) Close() error {
	return p.writer.Close()
}
