package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// DailyMetric represents one calendar day's operational totals
type DailyMetric struct {
	Date              time.Time `json:"date"`
	GrossRevenue      float64   `json:"grossRevenue"`
	NetRevenue        float64   `json:"netRevenue"`
	DailyGuests       int64     `json:"dailyGuests"`
	AccumulatedGuests int64     `json:"accumulatedGuests"`
}

// UnmarshalJSON accepts a YYYY-MM-DD or RFC3339 date.
// Numeric fields that are missing or not numeric decode to 0, as do guest
// counts outside the INTEGER column range.
func (d *DailyMetric) UnmarshalJSON(data []byte) error {
	var raw struct {
		Date              string          `json:"date"`
		GrossRevenue      json.RawMessage `json:"grossRevenue"`
		NetRevenue        json.RawMessage `json:"netRevenue"`
		DailyGuests       json.RawMessage `json:"dailyGuests"`
		AccumulatedGuests json.RawMessage `json:"accumulatedGuests"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid daily metric: %w", err)
	}

	date, err := ParseDate(raw.Date)
	if err != nil {
		return err
	}

	*d = DailyMetric{
		Date:              date,
		GrossRevenue:      ParseNumber(raw.GrossRevenue),
		NetRevenue:        ParseNumber(raw.NetRevenue),
		DailyGuests:       ParseCount(raw.DailyGuests),
		AccumulatedGuests: ParseCount(raw.AccumulatedGuests),
	}
	return nil
}

// ParseCount converts a raw JSON value to a rounded guest count.
// Counts an INTEGER column cannot hold yield 0.
func ParseCount(raw []byte) int64 {
	v := math.Round(ParseNumber(raw))
	if v > math.MaxInt32 || v < math.MinInt32 {
		return 0
	}
	return int64(v)
}

// GuestCount maps counts an INTEGER column cannot hold to 0
func GuestCount(n int64) int64 {
	if n > math.MaxInt32 || n < math.MinInt32 {
		return 0
	}
	return n
}

// ParseDate parses a calendar date. An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}
