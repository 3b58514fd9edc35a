package models

import "time"

// Event types carried on the metrics topic
const (
	EventMetricsUpdated     = "METRICS_UPDATED"
	EventDailyMetricUpdated = "DAILY_METRIC_UPDATED"
)

// MetricsEvent represents a Kafka event for metric changes
type MetricsEvent struct {
	EventType   string           `json:"event_type"`
	Source      string           `json:"source,omitempty"`
	Metrics     *MetricsSnapshot `json:"metrics,omitempty"`
	DailyMetric *DailyMetric     `json:"daily_metric,omitempty"`
	Timestamp   time.Time        `json:"timestamp"`
}
