// Package aggregate collapses the winsorized firm metric panel into
// country-year cells and merges the result with the WEO macro series and
// inequality data into the analysis dataset.
package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"firmpulse/internal/dataset"
	"firmpulse/internal/metrics"
	"firmpulse/internal/stats"
)

// Cell is one country-year aggregate of a single metric.
type Cell struct {
	Country      string  `json:"country"`
	Year         int     `json:"year"`
	Metric       string  `json:"metric"`
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	WeightedMean float64 `json:"weighted_mean"` // revenue-weighted
	StdDev       float64 `json:"std_dev"`
	NFirms       int     `json:"n_firms"`
}

// AnalysisRow is one row of the merged country-year analysis dataset.
type AnalysisRow struct {
	Country string `json:"country"`
	Year    int    `json:"year"`

	// Collapsed firm metric aggregates, keyed by metric name.
	Metrics map[string]Cell `json:"metrics"`

	// Macro and inequality covariates; NaN when the merge found no match.
	MacroValue   float64 `json:"macro_value"`
	Gini         float64 `json:"gini"`
	GDPPerCapita float64 `json:"gdp_per_capita"`
}

// Collapser aggregates firm metrics into country-year cells.
type Collapser struct {
	minFirms int
	logger   *slog.Logger
}

// NewCollapser creates a collapser. Cells built from fewer than minFirms
// valid observations are dropped.
func NewCollapser(minFirms int, logger *slog.Logger) *Collapser {
	if minFirms < 1 {
		minFirms = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collapser{minFirms: minFirms, logger: logger}
}

// Collapse aggregates the metric panel per country-year-metric. Output is
// sorted by country, year, metric.
func (c *Collapser) Collapse(ctx context.Context, panel []metrics.FirmMetrics) ([]Cell, error) {
	if len(panel) == 0 {
		return nil, fmt.Errorf("no metric rows to collapse")
	}

	type groupKey struct {
		country string
		year    int
	}
	groups := make(map[groupKey][]metrics.FirmMetrics)
	for _, m := range panel {
		if m.Country == "" || m.Year <= 0 {
			continue
		}
		k := groupKey{country: m.Country, year: m.Year}
		groups[k] = append(groups[k], m)
	}

	var cells []Cell
	dropped := 0
	for k, group := range groups {
		for _, name := range metrics.MetricNames {
			values := make([]float64, len(group))
			weights := make([]float64, len(group))
			for i, m := range group {
				values[i] = m.Value(name)
				weights[i] = m.Revenue
			}

			n := stats.CountValid(values)
			if n < c.minFirms {
				dropped++
				continue
			}

			cells = append(cells, Cell{
				Country:      k.country,
				Year:         k.year,
				Metric:       name,
				Mean:         stats.Mean(values),
				Median:       stats.Median(values),
				WeightedMean: stats.WeightedMean(values, weights),
				StdDev:       stats.StdDev(values),
				NFirms:       n,
			})
		}
	}

	if len(cells) == 0 {
		return nil, fmt.Errorf("all country-year cells below minimum of %d firms", c.minFirms)
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Country != cells[j].Country {
			return cells[i].Country < cells[j].Country
		}
		if cells[i].Year != cells[j].Year {
			return cells[i].Year < cells[j].Year
		}
		return cells[i].Metric < cells[j].Metric
	})

	c.logger.InfoContext(ctx, "collapsed firm metrics",
		slog.Int("cells", len(cells)),
		slog.Int("dropped_cells", dropped),
		slog.Int("min_firms", c.minFirms))

	return cells, nil
}

// MergeAnalysis joins collapsed cells with the macro and inequality
// datasets into one country-year analysis dataset. The join is one-to-one
// on country-year; duplicate keys in either right-hand dataset are an
// error, unmatched keys leave NaN covariates (left join).
func MergeAnalysis(ctx context.Context, logger *slog.Logger, cells []Cell,
	macro []dataset.MacroObservation, ineq []dataset.Inequality) ([]AnalysisRow, error) {

	if logger == nil {
		logger = slog.Default()
	}

	macroIdx, err := dataset.MacroIndex(macro)
	if err != nil {
		return nil, fmt.Errorf("index macro data: %w", err)
	}
	ineqIdx, err := dataset.InequalityIndex(ineq)
	if err != nil {
		return nil, fmt.Errorf("index inequality data: %w", err)
	}

	rowsByKey := make(map[dataset.CountryYearKey]*AnalysisRow)
	var keys []dataset.CountryYearKey
	for _, cell := range cells {
		key := dataset.CountryYearKey{Country: cell.Country, Year: cell.Year}
		row, ok := rowsByKey[key]
		if !ok {
			row = &AnalysisRow{
				Country:      cell.Country,
				Year:         cell.Year,
				Metrics:      make(map[string]Cell, len(metrics.MetricNames)),
				MacroValue:   math.NaN(),
				Gini:         math.NaN(),
				GDPPerCapita: math.NaN(),
			}
			if v, ok := macroIdx[key]; ok {
				row.MacroValue = v
			}
			if iq, ok := ineqIdx[key]; ok {
				row.Gini = iq.Gini
				row.GDPPerCapita = iq.GDPPerCapita
			}
			rowsByKey[key] = row
			keys = append(keys, key)
		}
		row.Metrics[cell.Metric] = cell
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Country != keys[j].Country {
			return keys[i].Country < keys[j].Country
		}
		return keys[i].Year < keys[j].Year
	})

	out := make([]AnalysisRow, 0, len(keys))
	matched := 0
	for _, key := range keys {
		row := rowsByKey[key]
		if !math.IsNaN(row.MacroValue) {
			matched++
		}
		out = append(out, *row)
	}

	logger.InfoContext(ctx, "merged analysis dataset",
		slog.Int("rows", len(out)),
		slog.Int("macro_matched", matched))

	return out, nil
}

// Series extracts the year-ordered mean values of one metric for one
// country from the analysis dataset, for decomposition and ARMA modeling.
func Series(rows []AnalysisRow, country, metric string) (years []int, values []float64) {
	for _, r := range rows {
		if r.Country != country {
			continue
		}
		v := math.NaN()
		if cell, ok := r.Metrics[metric]; ok {
			v = cell.Mean
		}
		years = append(years, r.Year)
		values = append(values, v)
	}
	return years, values
}
