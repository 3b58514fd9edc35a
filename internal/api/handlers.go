package api

import (
	"context"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
	"github.com/trogers1052/dashboard-metrics-service/internal/logging"
	"github.com/trogers1052/dashboard-metrics-service/internal/models"
	"github.com/trogers1052/dashboard-metrics-service/internal/presenter"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MetricsStore is the persistence the handlers depend on
type MetricsStore interface {
	LoadLatest(ctx context.Context) (*models.MetricsSnapshot, []*models.DailyMetric, error)
	UpsertLatest(ctx context.Context, s *models.MetricsSnapshot) error
	UpsertDaily(ctx context.Context, dm *models.DailyMetric) error
	UpsertDailyBatch(ctx context.Context, metrics []*models.DailyMetric) error
	Ping(ctx context.Context) error
}

// EventPublisher announces successful writes
type EventPublisher interface {
	PublishMetricsUpdated(ctx context.Context, s *models.MetricsSnapshot) error
	PublishDailyMetricUpdated(ctx context.Context, dm *models.DailyMetric) error
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	store     MetricsStore
	publisher EventPublisher
	log       logrus.FieldLogger
}

// NewHandler creates a new Handler. publisher and log may be nil.
func NewHandler(store MetricsStore, publisher EventPublisher, log logrus.FieldLogger) *Handler {
	return &Handler{
		store:     store,
		publisher: publisher,
		log:       logging.OrDiscard(log),
	}
}

// GetMetrics handles GET /api/metrics
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot, daily, err := h.store.LoadLatest(r.Context())
	if err != nil {
		h.log.WithError(err).Error("failed to load metrics")
		respondError(w, http.StatusInternalServerError, "Failed to fetch metrics")
		return
	}

	respondJSON(w, http.StatusOK, presenter.Normalize(snapshot, daily))
}

// UpdateMetrics handles POST /api/metrics
func (h *Handler) UpdateMetrics(w http.ResponseWriter, r *http.Request) {
	var snapshot models.MetricsSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snapshot); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	h.log.WithField("metrics", snapshot).Debug("updating metrics")

	if err := h.store.UpsertLatest(r.Context(), &snapshot); err != nil {
		h.log.WithError(err).Error("failed to update metrics")
		respondError(w, http.StatusInternalServerError, "Failed to update metrics")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishMetricsUpdated(r.Context(), &snapshot); err != nil {
			h.log.WithError(err).Warn("failed to publish metrics update")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateDailyMetric handles POST /api/metrics/daily
func (h *Handler) UpdateDailyMetric(w http.ResponseWriter, r *http.Request) {
	var dm models.DailyMetric
	if err := json.NewDecoder(r.Body).Decode(&dm); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if dm.Date.IsZero() {
		respondError(w, http.StatusBadRequest, "date is required")
		return
	}

	if err := h.store.UpsertDaily(r.Context(), &dm); err != nil {
		h.log.WithError(err).WithField("date", dm.Date.Format(time.DateOnly)).Error("failed to update daily metric")
		respondError(w, http.StatusInternalServerError, "Failed to update daily metrics")
		return
	}

	if h.publisher != nil {
		if err := h.publisher.PublishDailyMetricUpdated(r.Context(), &dm); err != nil {
			h.log.WithError(err).Warn("failed to publish daily metric update")
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// UpdateDailyMetrics handles POST /api/metrics/daily/batch
func (h *Handler) UpdateDailyMetrics(w http.ResponseWriter, r *http.Request) {
	var batch []*models.DailyMetric
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	for _, dm := range batch {
		if dm == nil || dm.Date.IsZero() {
			respondError(w, http.StatusBadRequest, "date is required")
			return
		}
	}

	if err := h.store.UpsertDailyBatch(r.Context(), batch); err != nil {
		h.log.WithError(err).WithField("count", len(batch)).Error("failed to update daily metrics")
		respondError(w, http.StatusInternalServerError, "Failed to update daily metrics")
		return
	}

	if h.publisher != nil {
		for _, dm := range batch {
			if err := h.publisher.PublishDailyMetricUpdated(r.Context(), dm); err != nil {
				h.log.WithError(err).Warn("failed to publish daily metric update")
			}
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.log.WithError(err).Warn("health check failed")
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
