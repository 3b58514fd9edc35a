package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/trogers1052/dashboard-metrics-service/internal/logging"
	"github.com/trogers1052/dashboard-metrics-service/internal/models"
)

// MetricsRepository defines the store operations the consumer writes through
type MetricsRepository interface {
	UpsertLatest(ctx context.Context, s *models.MetricsSnapshot) error
	UpsertDaily(ctx context.Context, dm *models.DailyMetric) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Config() kafka.ReaderConfig
	Close() error
}

// Consumer applies metric events from Kafka to the store
type Consumer struct {
	reader messageReader
	repo   MetricsRepository
	log    logrus.FieldLogger
}

// NewConsumer creates a new Kafka consumer for metric events
func NewConsumer(brokers []string, topic, groupID string, repo MetricsRepository, log logrus.FieldLogger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		repo:   repo,
		log:    logging.OrDiscard(log),
	}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	c.log.WithField("topic", c.reader.Config().Topic).Info("starting kafka consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				c.log.WithError(err).Warn("error reading message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.WithError(err).WithField("offset", msg.Offset).Error("error processing message")
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.MetricsEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal metrics event: %w", err)
	}

	entry := c.log.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"partition":  msg.Partition,
		"offset":     msg.Offset,
	})

	// writes made through this service are already in the store
	if event.Source == eventSource {
		entry.Debug("skipping own event")
		return nil
	}

	switch event.EventType {
	case models.EventMetricsUpdated:
		if event.Metrics == nil {
			return errors.New("metrics event without payload")
		}
		if err := c.repo.UpsertLatest(ctx, event.Metrics); err != nil {
			return fmt.Errorf("failed to save metrics snapshot: %w", err)
		}
	case models.EventDailyMetricUpdated:
		if event.DailyMetric == nil {
			return errors.New("daily metric event without payload")
		}
		if err := c.repo.UpsertDaily(ctx, event.DailyMetric); err != nil {
			return fmt.Errorf("failed to save daily metric: %w", err)
		}
	default:
		entry.Debug("ignoring event")
		return nil
	}

	entry.Debug("applied metrics event")
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
