// Package presenter turns stored metrics into the shape the dashboard renders.
package presenter

import (
	"github.com/trogers1052/dashboard-metrics-service/internal/models"
)

// Normalize builds the dashboard response from a raw snapshot and the daily series.
// Every metric is present in the result; absent ones get their zero-valued default.
// Chart series hold one point per daily entry in input order. Nil entries have no
// date to plot and are skipped, so the series are shorter than daily only when it
// contains nils; store reads never do. The inputs are never modified.
func Normalize(raw *models.MetricsSnapshot, daily []*models.DailyMetric) *models.DashboardData {
	data := &models.DashboardData{
		Charts: models.Charts{
			BarChart:  make([]models.ChartPoint, 0, len(daily)),
			LineChart: make([]models.ChartPoint, 0, len(daily)),
		},
	}

	for _, def := range models.MetricDefinitions {
		data.Metrics.SetField(def.Key, normalizeField(def, raw.Field(def.Key)))
	}

	for _, dm := range daily {
		if dm == nil {
			continue
		}
		data.Charts.BarChart = append(data.Charts.BarChart, models.ChartPoint{
			Date:  dm.Date,
			Value: float64(dm.DailyGuests),
		})
		data.Charts.LineChart = append(data.Charts.LineChart, models.ChartPoint{
			Date:  dm.Date,
			Value: models.Finite(dm.GrossRevenue),
		})
	}

	return data
}

func normalizeField(def models.MetricDefinition, f *models.MetricField) *models.MetricField {
	out := def.DefaultField()
	if f == nil {
		return out
	}

	out.Value = models.Finite(f.Value)
	if f.Label != "" {
		out.Label = f.Label
		out.Prefix = f.Prefix
		out.Suffix = f.Suffix
	}
	return out
}
