package metrics

import (
	"math"
)

// FirmMetrics holds the derived metrics for one firm-year. Metrics that
// cannot be computed (missing inputs, no prior year) are NaN.
type FirmMetrics struct {
	FirmID  string  `json:"firm_id"`
	Country string  `json:"country"`
	Year    int     `json:"year"`
	Revenue float64 `json:"revenue"`

	InvestedCapital float64 `json:"invested_capital"`
	ROIC            float64 `json:"roic"`
	EBITDAMargin    float64 `json:"ebitda_margin"`
	RevenueGrowth   float64 `json:"revenue_growth"`
	AssetTurnover   float64 `json:"asset_turnover"`
}

// MetricNames lists the derived metric columns in canonical order.
var MetricNames = []string{"roic", "ebitda_margin", "revenue_growth", "asset_turnover"}

// Value returns the named metric, or NaN for unknown names.
func (m FirmMetrics) Value(name string) float64 {
	switch name {
	case "roic":
		return m.ROIC
	case "ebitda_margin":
		return m.EBITDAMargin
	case "revenue_growth":
		return m.RevenueGrowth
	case "asset_turnover":
		return m.AssetTurnover
	default:
		return math.NaN()
	}
}

// SetValue stores the named metric.
func (m *FirmMetrics) SetValue(name string, v float64) {
	switch name {
	case "roic":
		m.ROIC = v
	case "ebitda_margin":
		m.EBITDAMargin = v
	case "revenue_growth":
		m.RevenueGrowth = v
	case "asset_turnover":
		m.AssetTurnover = v
	}
}

// WinsorizationBounds contains percentile bounds for outlier capping.
type WinsorizationBounds struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// IsValid checks if winsorization bounds are valid
func (wb WinsorizationBounds) IsValid() bool {
	return wb.Lower >= 0 && wb.Upper <= 1 && wb.Lower < wb.Upper
}

// Default winsorization bounds (5th and 95th percentiles)
const (
	DefaultLowerBound = 0.05
	DefaultUpperBound = 0.95
)
