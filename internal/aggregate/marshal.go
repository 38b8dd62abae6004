package aggregate

import (
	"encoding/json"

	"firmpulse/internal/jsonutil"
)

// MarshalJSON encodes missing aggregates as null. The analysis API serves
// these rows directly and encoding/json rejects NaN.
func (c Cell) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Country      string   `json:"country"`
		Year         int      `json:"year"`
		Metric       string   `json:"metric"`
		Mean         *float64 `json:"mean"`
		Median       *float64 `json:"median"`
		WeightedMean *float64 `json:"weighted_mean"`
		StdDev       *float64 `json:"std_dev"`
		NFirms       int      `json:"n_firms"`
	}{
		Country:      c.Country,
		Year:         c.Year,
		Metric:       c.Metric,
		Mean:         jsonutil.Float(c.Mean),
		Median:       jsonutil.Float(c.Median),
		WeightedMean: jsonutil.Float(c.WeightedMean),
		StdDev:       jsonutil.Float(c.StdDev),
		NFirms:       c.NFirms,
	})
}

// MarshalJSON encodes unmatched covariates as null.
func (r AnalysisRow) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Country      string          `json:"country"`
		Year         int             `json:"year"`
		Metrics      map[string]Cell `json:"metrics"`
		MacroValue   *float64        `json:"macro_value"`
		Gini         *float64        `json:"gini"`
		GDPPerCapita *float64        `json:"gdp_per_capita"`
	}{
		Country:      r.Country,
		Year:         r.Year,
		Metrics:      r.Metrics,
		MacroValue:   jsonutil.Float(r.MacroValue),
		Gini:         jsonutil.Float(r.Gini),
		GDPPerCapita: jsonutil.Float(r.GDPPerCapita),
	})
}
