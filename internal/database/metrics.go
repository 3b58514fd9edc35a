package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/trogers1052/dashboard-metrics-service/internal/models"
)

// Columns of the metrics table that form its unique key
var metricsConflictColumns = []string{"tickets", "revenue"}

var dailyMetricColumns = []string{"date", "gross_revenue", "net_revenue", "daily_guests", "accumulated_guests"}

// ErrMissingDate is returned when a daily metric has no date to key on
var ErrMissingDate = errors.New("daily metric date is required")

func metricColumns() []string {
	cols := make([]string, len(models.MetricDefinitions))
	for i, def := range models.MetricDefinitions {
		cols[i] = def.Column
	}
	return cols
}

// LoadLatest returns the most recent metrics snapshot and every daily metric ordered by date.
// Missing rows or NULL columns leave the corresponding snapshot fields nil.
func (db *DB) LoadLatest(ctx context.Context) (*models.MetricsSnapshot, []*models.DailyMetric, error) {
	snapshot, err := db.latestSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}

	daily, err := db.GetDailyMetrics(ctx)
	if err != nil {
		return nil, nil, err
	}

	return snapshot, daily, nil
}

func (db *DB) latestSnapshot(ctx context.Context) (*models.MetricsSnapshot, error) {
	query, args, err := psql.
		Select(metricColumns()...).
		From("metrics").
		OrderBy("timestamp DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest metrics query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("get latest metrics", err)
	}
	defer rows.Close()

	snapshot := &models.MetricsSnapshot{}
	if rows.Next() {
		values := make([]sql.NullString, len(models.MetricDefinitions))
		dest := make([]any, len(values))
		for i := range values {
			dest[i] = &values[i]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, unavailable("scan latest metrics", err)
		}

		for i, def := range models.MetricDefinitions {
			if !values[i].Valid {
				continue
			}
			if v, ok := models.LookupNumber(values[i].String); ok {
				snapshot.SetField(def.Key, &models.MetricField{Value: v})
			}
		}
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate latest metrics", err)
	}
	return snapshot, nil
}

// GetDailyMetrics retrieves all daily metrics ordered by date ascending
func (db *DB) GetDailyMetrics(ctx context.Context) ([]*models.DailyMetric, error) {
	query, args, err := psql.
		Select(dailyMetricColumns...).
		From("daily_metrics").
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build daily metrics query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("get daily metrics", err)
	}
	defer rows.Close()

	daily := make([]*models.DailyMetric, 0)
	for rows.Next() {
		var (
			dm                  models.DailyMetric
			gross, net          sql.NullString
			guests, accumulated sql.NullInt64
		)

		if err := rows.Scan(&dm.Date, &gross, &net, &guests, &accumulated); err != nil {
			return nil, unavailable("scan daily metric", err)
		}

		dm.GrossRevenue = models.ParseNumberString(gross.String)
		dm.NetRevenue = models.ParseNumberString(net.String)
		dm.DailyGuests = guests.Int64
		dm.AccumulatedGuests = accumulated.Int64
		daily = append(daily, &dm)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate daily metrics", err)
	}
	return daily, nil
}

// UpsertLatest writes a metrics snapshot. A row with the same tickets and revenue is
// updated in place. Absent, non-finite or out-of-range values are stored as 0.
func (db *DB) UpsertLatest(ctx context.Context, s *models.MetricsSnapshot) error {
	values := make([]any, len(models.MetricDefinitions))
	for i, def := range models.MetricDefinitions {
		values[i] = s.Value(def.Key)
	}

	query, args, err := psql.
		Insert("metrics").
		Columns(metricColumns()...).
		Values(values...).
		Suffix(metricsConflictClause()).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build metrics upsert: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return unavailable("upsert metrics", err)
	}
	return nil
}

func metricsConflictClause() string {
	isKey := make(map[string]bool, len(metricsConflictColumns))
	for _, c := range metricsConflictColumns {
		isKey[c] = true
	}

	var set []string
	for _, col := range metricColumns() {
		if !isKey[col] {
			set = append(set, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	set = append(set, "timestamp = NOW()")

	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(metricsConflictColumns, ", "), strings.Join(set, ", "))
}

const dailyConflictClause = `ON CONFLICT (date) DO UPDATE SET
	gross_revenue = EXCLUDED.gross_revenue,
	net_revenue = EXCLUDED.net_revenue,
	daily_guests = EXCLUDED.daily_guests,
	accumulated_guests = EXCLUDED.accumulated_guests`

func dailyUpsertQuery(dm *models.DailyMetric) (string, []any, error) {
	return psql.
		Insert("daily_metrics").
		Columns(dailyMetricColumns...).
		Values(dailyMetricArgs(dm)...).
		Suffix(dailyConflictClause).
		ToSql()
}

func dailyMetricArgs(dm *models.DailyMetric) []any {
	return []any{
		dm.Date.Format(time.DateOnly),
		models.Finite(dm.GrossRevenue),
		models.Finite(dm.NetRevenue),
		models.GuestCount(dm.DailyGuests),
		models.GuestCount(dm.AccumulatedGuests),
	}
}

// UpsertDaily writes one daily metric keyed by its date
func (db *DB) UpsertDaily(ctx context.Context, dm *models.DailyMetric) error {
	if dm == nil || dm.Date.IsZero() {
		return ErrMissingDate
	}

	query, args, err := dailyUpsertQuery(dm)
	if err != nil {
		return fmt.Errorf("failed to build daily metric upsert: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return unavailable("upsert daily metric", err)
	}
	return nil
}

// UpsertDailyBatch writes several daily metrics in a single transaction
func (db *DB) UpsertDailyBatch(ctx context.Context, metrics []*models.DailyMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	for _, dm := range metrics {
		if dm == nil || dm.Date.IsZero() {
			return ErrMissingDate
		}
	}

	query, _, err := dailyUpsertQuery(metrics[0])
	if err != nil {
		return fmt.Errorf("failed to build daily metric upsert: %w", err)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return unavailable("prepare statement", err)
	}
	defer stmt.Close()

	for _, dm := range metrics {
		if _, err := stmt.ExecContext(ctx, dailyMetricArgs(dm)...); err != nil {
			return unavailable(fmt.Sprintf("upsert daily metric for %s", dm.Date.Format(time.DateOnly)), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return unavailable("commit transaction", err)
	}
	return nil
}
