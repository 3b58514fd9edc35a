package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MetricKey identifies one of the twelve dashboard metrics
type MetricKey string

const (
	KeyTotalMarketingSpend     MetricKey = "totalMarketingSpend"
	KeyInfluencerSpend         MetricKey = "influencerSpend"
	KeyPaidAdsSpend            MetricKey = "paidAdsSpend"
	KeyNetRevenue              MetricKey = "netRevenue"
	KeyRevenueSpentOnAds       MetricKey = "revenueSpentOnAds"
	KeyCustomerLifetimeValue   MetricKey = "customerLifetimeValue"
	KeyCustomerAcquisitionCost MetricKey = "customerAcquisitionCost"
	KeyTickets                 MetricKey = "tickets"
	KeyRevenue                 MetricKey = "revenue"
	KeyOperationalExpenses     MetricKey = "operationalExpenses"
	KeyYadinExpenses           MetricKey = "yadinExpenses"
	KeyOpEx                    MetricKey = "opEx"
)

// MetricDefinition describes how a metric is stored and displayed
type MetricDefinition struct {
	Key    MetricKey
	Column string
	Label  string
	Prefix string
	Suffix string
}

// MetricDefinitions lists every dashboard metric in display order.
// yadinExpenses lives in the total_ads_count column.
var MetricDefinitions = []MetricDefinition{
	{Key: KeyTotalMarketingSpend, Column: "total_marketing_spend", Label: "Total Marketing Spend", Prefix: "$"},
	{Key: KeyInfluencerSpend, Column: "influencer_spend", Label: "Influencer Spend", Prefix: "$"},
	{Key: KeyPaidAdsSpend, Column: "paid_ads_spend", Label: "Paid Ads Spend", Prefix: "$"},
	{Key: KeyNetRevenue, Column: "net_revenue", Label: "Net Revenue", Prefix: "$"},
	{Key: KeyRevenueSpentOnAds, Column: "revenue_spent_on_ads", Label: "Revenue Spent on Ads", Suffix: "%"},
	{Key: KeyCustomerLifetimeValue, Column: "customer_lifetime_value", Label: "Customer Lifetime Value", Prefix: "$"},
	{Key: KeyCustomerAcquisitionCost, Column: "customer_acquisition_cost", Label: "Customer Acquisition Cost", Prefix: "$"},
	{Key: KeyTickets, Column: "tickets", Label: "Tickets"},
	{Key: KeyRevenue, Column: "revenue", Label: "Revenue", Prefix: "$"},
	{Key: KeyOperationalExpenses, Column: "operational_expenses", Label: "Operational Expenses", Prefix: "$"},
	{Key: KeyYadinExpenses, Column: "total_ads_count", Label: "Yadin Expenses", Prefix: "$"},
	{Key: KeyOpEx, Column: "opex", Label: "OpEx", Prefix: "$"},
}

// DefaultField returns the zero-valued field carrying the definition's display metadata
func (d MetricDefinition) DefaultField() *MetricField {
	return &MetricField{Label: d.Label, Prefix: d.Prefix, Suffix: d.Suffix}
}

// MetricField is a displayable numeric value
type MetricField struct {
	Value  float64 `json:"value"`
	Label  string  `json:"label"`
	Prefix string  `json:"prefix,omitempty"`
	Suffix string  `json:"suffix,omitempty"`
}

// UnmarshalJSON accepts numbers, numeric strings and null for value.
// Anything that is not numeric, or does not fit a metric column, decodes to 0
// instead of failing. Metadata of the wrong type is dropped without touching value.
func (f *MetricField) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		// a bare scalar is taken as the value itself
		*f = MetricField{Value: MetricValue(ParseNumber(trimmed))}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		*f = MetricField{}
		return nil
	}

	*f = MetricField{
		Value:  MetricValue(ParseNumber(raw["value"])),
		Label:  parseText(raw["label"]),
		Prefix: parseText(raw["prefix"]),
		Suffix: parseText(raw["suffix"]),
	}
	return nil
}

func parseText(raw json.RawMessage) string {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

// MetricsSnapshot is the business state at a point in time.
// A nil field means the value was absent.
type MetricsSnapshot struct {
	TotalMarketingSpend     *MetricField `json:"totalMarketingSpend,omitempty"`
	InfluencerSpend         *MetricField `json:"influencerSpend,omitempty"`
	PaidAdsSpend            *MetricField `json:"paidAdsSpend,omitempty"`
	NetRevenue              *MetricField `json:"netRevenue,omitempty"`
	RevenueSpentOnAds       *MetricField `json:"revenueSpentOnAds,omitempty"`
	CustomerLifetimeValue   *MetricField `json:"customerLifetimeValue,omitempty"`
	CustomerAcquisitionCost *MetricField `json:"customerAcquisitionCost,omitempty"`
	Tickets                 *MetricField `json:"tickets,omitempty"`
	Revenue                 *MetricField `json:"revenue,omitempty"`
	OperationalExpenses     *MetricField `json:"operationalExpenses,omitempty"`
	YadinExpenses           *MetricField `json:"yadinExpenses,omitempty"`
	OpEx                    *MetricField `json:"opEx,omitempty"`
}

func (s *MetricsSnapshot) slot(key MetricKey) **MetricField {
	switch key {
	case KeyTotalMarketingSpend:
		return &s.TotalMarketingSpend
	case KeyInfluencerSpend:
		return &s.InfluencerSpend
	case KeyPaidAdsSpend:
		return &s.PaidAdsSpend
	case KeyNetRevenue:
		return &s.NetRevenue
	case KeyRevenueSpentOnAds:
		return &s.RevenueSpentOnAds
	case KeyCustomerLifetimeValue:
		return &s.CustomerLifetimeValue
	case KeyCustomerAcquisitionCost:
		return &s.CustomerAcquisitionCost
	case KeyTickets:
		return &s.Tickets
	case KeyRevenue:
		return &s.Revenue
	case KeyOperationalExpenses:
		return &s.OperationalExpenses
	case KeyYadinExpenses:
		return &s.YadinExpenses
	case KeyOpEx:
		return &s.OpEx
	}
	return nil
}

// Field returns the field stored under key, or nil when it is absent
func (s *MetricsSnapshot) Field(key MetricKey) *MetricField {
	if s == nil {
		return nil
	}
	if p := s.slot(key); p != nil {
		return *p
	}
	return nil
}

// SetField stores f under key. Unknown keys are ignored.
func (s *MetricsSnapshot) SetField(key MetricKey, f *MetricField) {
	if p := s.slot(key); p != nil {
		*p = f
	}
}

// Value returns the numeric value stored under key, 0 when absent, not finite
// or too large for a metric column
func (s *MetricsSnapshot) Value(key MetricKey) float64 {
	f := s.Field(key)
	if f == nil {
		return 0
	}
	return MetricValue(f.Value)
}

// ChartPoint is one entry of a chart series
type ChartPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Charts holds the chart series shown on the dashboard
type Charts struct {
	BarChart  []ChartPoint `json:"barChart"`
	LineChart []ChartPoint `json:"lineChart"`
}

// DashboardData is the response served to the dashboard
type DashboardData struct {
	Metrics MetricsSnapshot `json:"metrics"`
	Charts  Charts          `json:"charts"`
}

// ParseNumber converts a raw JSON value to a finite float64.
// null, empty, non-numeric and out-of-range input yield 0.
func ParseNumber(raw []byte) float64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unquoted)
	}
	return ParseNumberString(s)
}

// ParseNumberString converts a textual number to a finite float64, 0 when it does not parse
func ParseNumberString(s string) float64 {
	v, _ := LookupNumber(s)
	return v
}

// LookupNumber parses a textual number such as a NUMERIC column value.
// ok is false when s is not a number.
func LookupNumber(s string) (v float64, ok bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return Finite(d.InexactFloat64()), true
}

// MaxMetricValue is the largest magnitude a NUMERIC(14,2) metric column holds
const MaxMetricValue = 999_999_999_999.99

// MetricValue maps values a metric column cannot store to 0
func MetricValue(v float64) float64 {
	if math.Abs(Finite(v)) > MaxMetricValue {
		return 0
	}
	return Finite(v)
}

// Finite maps NaN and infinities to 0
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
