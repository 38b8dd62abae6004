// Package metrics derives firm-level financial metrics from the firm-year
// panel: invested capital, ROIC over lagged invested capital, EBITDA margin,
// lag-based revenue growth, and asset turnover, followed by per-year
// winsorization across firms.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"firmpulse/internal/dataset"
	"firmpulse/internal/stats"
)

// Builder computes firm metrics over a panel.
type Builder struct {
	bounds WinsorizationBounds
	logger *slog.Logger
}

// NewBuilder creates a metric builder with the given winsorization bounds.
func NewBuilder(bounds WinsorizationBounds, logger *slog.Logger) (*Builder, error) {
	if !bounds.IsValid() {
		return nil, fmt.Errorf("invalid winsorization bounds: lower=%.3f, upper=%.3f", bounds.Lower, bounds.Upper)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{bounds: bounds, logger: logger}, nil
}

// Build derives the full metric panel: per-firm lag-based construction,
// then per-year winsorization of each metric across firms. The output is
// sorted by firm then year.
func (b *Builder) Build(ctx context.Context, rows []dataset.FirmYear) ([]FirmMetrics, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no firm-year rows provided")
	}

	byFirm := groupByFirm(rows)
	b.logger.InfoContext(ctx, "building firm metrics",
		slog.Int("rows", len(rows)),
		slog.Int("firms", len(byFirm)))

	var panel []FirmMetrics
	for _, firmRows := range byFirm {
		panel = append(panel, b.buildFirm(firmRows)...)
	}

	if len(panel) == 0 {
		return nil, fmt.Errorf("no metrics derived from %d firms", len(byFirm))
	}

	b.winsorizeByYear(ctx, panel)

	sort.Slice(panel, func(i, j int) bool {
		if panel[i].FirmID != panel[j].FirmID {
			return panel[i].FirmID < panel[j].FirmID
		}
		return panel[i].Year < panel[j].Year
	})

	b.logger.InfoContext(ctx, "firm metrics built", slog.Int("metric_rows", len(panel)))
	return panel, nil
}

// groupByFirm groups panel rows by firm and sorts each group by year.
// Duplicate firm-years keep the last occurrence, matching the usual
// keep-latest convention for restated financials.
func groupByFirm(rows []dataset.FirmYear) map[string][]dataset.FirmYear {
	deduped := make(map[string]map[int]dataset.FirmYear)
	for _, r := range rows {
		if r.FirmID == "" || r.Year <= 0 {
			continue
		}
		if deduped[r.FirmID] == nil {
			deduped[r.FirmID] = make(map[int]dataset.FirmYear)
		}
		deduped[r.FirmID][r.Year] = r
	}

	out := make(map[string][]dataset.FirmYear, len(deduped))
	for firmID, byYear := range deduped {
		group := make([]dataset.FirmYear, 0, len(byYear))
		for _, r := range byYear {
			group = append(group, r)
		}
		sort.Slice(group, func(i, j int) bool { return group[i].Year < group[j].Year })
		out[firmID] = group
	}
	return out
}

// buildFirm derives metrics for one firm's year-sorted rows. Lag-based
// metrics require the immediately preceding calendar year; a gap in the
// year sequence leaves them NaN.
func (b *Builder) buildFirm(rows []dataset.FirmYear) []FirmMetrics {
	out := make([]FirmMetrics, 0, len(rows))

	for i, r := range rows {
		m := FirmMetrics{
			FirmID:          r.FirmID,
			Country:         r.Country,
			Year:            r.Year,
			Revenue:         r.Revenue,
			InvestedCapital: InvestedCapital(r),
			EBITDAMargin:    ratio(r.EBITDA, r.Revenue),
			ROIC:            math.NaN(),
			RevenueGrowth:   math.NaN(),
			AssetTurnover:   math.NaN(),
		}

		if i > 0 && rows[i-1].Year == r.Year-1 {
			prev := rows[i-1]
			m.ROIC = ratio(r.EBITDA, InvestedCapital(prev))
			m.RevenueGrowth = growth(r.Revenue, prev.Revenue)
			m.AssetTurnover = ratio(r.Revenue, prev.TotalAssets)
		}

		out = append(out, m)
	}
	return out
}

// InvestedCapital is total debt plus total equity, falling back to total
// assets minus current liabilities when the financing-side fields are
// missing.
func InvestedCapital(r dataset.FirmYear) float64 {
	if !math.IsNaN(r.TotalDebt) && !math.IsNaN(r.TotalEquity) {
		return r.TotalDebt + r.TotalEquity
	}
	if !math.IsNaN(r.TotalAssets) && !math.IsNaN(r.CurrentLiabilities) {
		return r.TotalAssets - r.CurrentLiabilities
	}
	return math.NaN()
}

// ratio computes num/den, NaN when either side is missing or den is zero.
func ratio(num, den float64) float64 {
	if math.IsNaN(num) || math.IsNaN(den) || den == 0 {
		return math.NaN()
	}
	return num / den
}

// growth computes the one-period growth rate (curr-prev)/prev.
func growth(curr, prev float64) float64 {
	if math.IsNaN(curr) || math.IsNaN(prev) || prev == 0 {
		return math.NaN()
	}
	return (curr - prev) / prev
}

// winsorizeByYear caps each metric at the configured percentile bounds,
// computed per calendar year across firms.
func (b *Builder) winsorizeByYear(ctx context.Context, panel []FirmMetrics) {
	byYear := make(map[int][]int)
	for i, m := range panel {
		byYear[m.Year] = append(byYear[m.Year], i)
	}

	for year, indices := range byYear {
		for _, name := range MetricNames {
			values := make([]float64, len(indices))
			for i, idx := range indices {
				values[i] = panel[idx].Value(name)
			}

			if stats.CountValid(values) < 2 {
				continue // nothing to cap against
			}

			capped, lower, upper := stats.Winsorize(values, b.bounds.Lower, b.bounds.Upper)
			for i, idx := range indices {
				panel[idx].SetValue(name, capped[i])
			}

			b.logger.DebugContext(ctx, "winsorized metric",
				slog.Int("year", year),
				slog.String("metric", name),
				slog.Float64("lower_bound", lower),
				slog.Float64("upper_bound", upper))
		}
	}
}
