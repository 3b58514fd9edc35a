package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/dashboard-metrics-service/internal/models"
)

type mockStore struct {
	snapshot *models.MetricsSnapshot
	daily    []*models.DailyMetric
	err      error
	pingErr  error

	upserted      []*models.MetricsSnapshot
	upsertedDaily []*models.DailyMetric
}

func (m *mockStore) LoadLatest(ctx context.Context) (*models.MetricsSnapshot, []*models.DailyMetric, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	if m.snapshot == nil {
		return &models.MetricsSnapshot{}, []*models.DailyMetric{}, nil
	}
	return m.snapshot, m.daily, nil
}

func (m *mockStore) UpsertLatest(ctx context.Context, s *models.MetricsSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.upserted = append(m.upserted, s)
	return nil
}

func (m *mockStore) UpsertDaily(ctx context.Context, dm *models.DailyMetric) error {
	if m.err != nil {
		return m.err
	}
	m.upsertedDaily = append(m.upsertedDaily, dm)
	return nil
}

func (m *mockStore) UpsertDailyBatch(ctx context.Context, metrics []*models.DailyMetric) error {
	if m.err != nil {
		return m.err
	}
	m.upsertedDaily = append(m.upsertedDaily, metrics...)
	return nil
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

type mockPublisher struct {
	metrics int
	daily   int
	err     error
}

func (p *mockPublisher) PublishMetricsUpdated(ctx context.Context, s *models.MetricsSnapshot) error {
	p.metrics++
	return p.err
}

func (p *mockPublisher) PublishDailyMetricUpdated(ctx context.Context, dm *models.DailyMetric) error {
	p.daily++
	return p.err
}

func serve(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	SetupRoutes(h).ServeHTTP(rr, req)
	return rr
}

func TestGetMetrics(t *testing.T) {
	t.Run("empty store returns defaults", func(t *testing.T) {
		h := NewHandler(&mockStore{}, nil, nil)

		rr := serve(t, h, http.MethodGet, "/api/metrics", "")

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
		assert.NotEmpty(t, rr.Header().Get(requestIDHeader))

		var body struct {
			Metrics map[string]models.MetricField `json:"metrics"`
			Charts  struct {
				BarChart  []models.ChartPoint `json:"barChart"`
				LineChart []models.ChartPoint `json:"lineChart"`
			} `json:"charts"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))

		assert.Len(t, body.Metrics, 12)
		for _, def := range models.MetricDefinitions {
			f, ok := body.Metrics[string(def.Key)]
			require.True(t, ok, "missing %s", def.Key)
			assert.Equal(t, 0.0, f.Value)
			assert.Equal(t, def.Label, f.Label)
		}
		assert.Contains(t, rr.Body.String(), `"barChart":[]`)
		assert.Contains(t, rr.Body.String(), `"lineChart":[]`)
	})

	t.Run("populated store", func(t *testing.T) {
		store := &mockStore{
			snapshot: &models.MetricsSnapshot{
				Revenue:           &models.MetricField{Value: 22000},
				RevenueSpentOnAds: &models.MetricField{Value: 14.2},
			},
			daily: []*models.DailyMetric{
				{Date: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), GrossRevenue: 1000, DailyGuests: 40},
				{Date: time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), GrossRevenue: 1300, DailyGuests: 52},
			},
		}
		h := NewHandler(store, nil, nil)

		rr := serve(t, h, http.MethodGet, "/api/metrics", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var data models.DashboardData
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &data))

		assert.Equal(t, 22000.0, data.Metrics.Revenue.Value)
		assert.Equal(t, "$", data.Metrics.Revenue.Prefix)
		assert.Equal(t, 14.2, data.Metrics.RevenueSpentOnAds.Value)
		assert.Equal(t, "%", data.Metrics.RevenueSpentOnAds.Suffix)
		require.Len(t, data.Charts.BarChart, 2)
		assert.Equal(t, 52.0, data.Charts.BarChart[1].Value)
		assert.Equal(t, 1300.0, data.Charts.LineChart[1].Value)
	})

	t.Run("store failure returns generic 500", func(t *testing.T) {
		h := NewHandler(&mockStore{err: errors.New("pq: password authentication failed")}, nil, nil)

		rr := serve(t, h, http.MethodGet, "/api/metrics", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Failed to fetch metrics"}`, rr.Body.String())
		assert.NotContains(t, rr.Body.String(), "password")
		assert.NotContains(t, rr.Body.String(), "metrics\":{")
	})
}

func TestUpdateMetrics(t *testing.T) {
	t.Run("stores the snapshot and publishes", func(t *testing.T) {
		store := &mockStore{}
		pub := &mockPublisher{}
		h := NewHandler(store, pub, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics", `{
			"tickets": {"value": 150, "label": "Tickets"},
			"revenue": {"value": 22000, "label": "Revenue", "prefix": "$"},
			"paidAdsSpend": {"value": "not a number"}
		}`)

		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Len(t, store.upserted, 1)
		s := store.upserted[0]
		assert.Nil(t, s.TotalMarketingSpend)
		assert.Equal(t, 0.0, s.Value(models.KeyTotalMarketingSpend))
		assert.Equal(t, 0.0, s.Value(models.KeyPaidAdsSpend))
		assert.Equal(t, 150.0, s.Value(models.KeyTickets))
		assert.Equal(t, 1, pub.metrics)
	})

	t.Run("invalid body", func(t *testing.T) {
		store := &mockStore{}
		h := NewHandler(store, nil, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics", `{not json`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, store.upserted)
	})

	t.Run("store failure", func(t *testing.T) {
		pub := &mockPublisher{}
		h := NewHandler(&mockStore{err: errors.New("boom")}, pub, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics", `{}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Failed to update metrics"}`, rr.Body.String())
		assert.Equal(t, 0, pub.metrics)
	})

	t.Run("publish failure does not fail the request", func(t *testing.T) {
		store := &mockStore{}
		h := NewHandler(store, &mockPublisher{err: errors.New("broker down")}, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics", `{"tickets": {"value": 1}}`)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Len(t, store.upserted, 1)
	})
}

func TestUpdateDailyMetric(t *testing.T) {
	t.Run("stores the daily metric", func(t *testing.T) {
		store := &mockStore{}
		pub := &mockPublisher{}
		h := NewHandler(store, pub, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics/daily",
			`{"date":"2024-01-15","grossRevenue":1200,"netRevenue":950,"dailyGuests":48,"accumulatedGuests":310}`)

		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Len(t, store.upsertedDaily, 1)
		assert.Equal(t, int64(48), store.upsertedDaily[0].DailyGuests)
		assert.Equal(t, 1, pub.daily)
	})

	t.Run("missing date", func(t *testing.T) {
		store := &mockStore{}
		h := NewHandler(store, nil, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics/daily", `{"grossRevenue":1200}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, store.upsertedDaily)
	})

	t.Run("malformed date", func(t *testing.T) {
		h := NewHandler(&mockStore{}, nil, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics/daily", `{"date":"yesterday"}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		h := NewHandler(&mockStore{err: errors.New("boom")}, nil, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics/daily", `{"date":"2024-01-15"}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Failed to update daily metrics"}`, rr.Body.String())
	})
}

func TestUpdateDailyMetrics(t *testing.T) {
	t.Run("stores the batch and publishes each day", func(t *testing.T) {
		store := &mockStore{}
		pub := &mockPublisher{}
		h := NewHandler(store, pub, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics/daily/batch", `[
			{"date":"2024-01-15","grossRevenue":1200,"dailyGuests":48},
			{"date":"2024-01-16","grossRevenue":"1350.5","dailyGuests":51}
		]`)

		require.Equal(t, http.StatusNoContent, rr.Code)
		require.Len(t, store.upsertedDaily, 2)
		assert.Equal(t, 1350.5, store.upsertedDaily[1].GrossRevenue)
		assert.Equal(t, 2, pub.daily)
	})

	t.Run("rejects a batch with a missing date", func(t *testing.T) {
		store := &mockStore{}
		h := NewHandler(store, nil, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics/daily/batch", `[{"date":"2024-01-15"},{"grossRevenue":10}]`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Empty(t, store.upsertedDaily)
	})

	t.Run("store failure", func(t *testing.T) {
		pub := &mockPublisher{}
		h := NewHandler(&mockStore{err: errors.New("boom")}, pub, nil)

		rr := serve(t, h, http.MethodPost, "/api/metrics/daily/batch", `[{"date":"2024-01-15"}]`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"error":"Failed to update daily metrics"}`, rr.Body.String())
		assert.Equal(t, 0, pub.daily)
	})
}

func TestHealthCheck(t *testing.T) {
	rr := serve(t, NewHandler(&mockStore{}, nil, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rr.Body.String())

	rr = serve(t, NewHandler(&mockStore{pingErr: errors.New("down")}, nil, nil), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestRoutesRejectUnknownMethod(t *testing.T) {
	rr := serve(t, NewHandler(&mockStore{}, nil, nil), http.MethodDelete, "/api/metrics", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRecoverPanic(t *testing.T) {
	h := NewHandler(&mockStore{}, nil, nil)
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	})

	rr := httptest.NewRecorder()
	recoverPanic(h.log)(panicking).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rr.Body.String())
}

func TestRecoverPanicAfterHeadersWritten(t *testing.T) {
	h := NewHandler(&mockStore{}, nil, nil)
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("partial"))
		panic("unexpected")
	})

	rr := httptest.NewRecorder()
	recoverPanic(h.log)(panicking).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Equal(t, "partial", rr.Body.String())
}

func TestPanickingRequestIsLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := NewHandler(&mockStore{}, nil, logger)
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected")
	})
	chain := requestLogger(h.log)(recoverPanic(h.log)(panicking))

	rr := httptest.NewRecorder()
	chain.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusInternalServerError, entry.Data["status_code"])
	assert.Equal(t, "/api/metrics", entry.Data["path"])
}
