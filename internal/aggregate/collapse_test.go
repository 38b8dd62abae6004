package aggregate

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmpulse/internal/dataset"
	"firmpulse/internal/metrics"
)

func metricRow(firm, country string, year int, roic, revenue float64) metrics.FirmMetrics {
	return metrics.FirmMetrics{
		FirmID:        firm,
		Country:       country,
		Year:          year,
		Revenue:       revenue,
		ROIC:          roic,
		EBITDAMargin:  math.NaN(),
		RevenueGrowth: math.NaN(),
		AssetTurnover: math.NaN(),
	}
}

func findCell(cells []Cell, country string, year int, metric string) *Cell {
	for i := range cells {
		if cells[i].Country == country && cells[i].Year == year && cells[i].Metric == metric {
			return &cells[i]
		}
	}
	return nil
}

func TestCollapse_MeanMedianWeighted(t *testing.T) {
	panel := []metrics.FirmMetrics{
		metricRow("A", "DEU", 2020, 0.10, 100),
		metricRow("B", "DEU", 2020, 0.20, 100),
		metricRow("C", "DEU", 2020, 0.60, 800),
	}

	cells, err := NewCollapser(1, nil).Collapse(context.Background(), panel)
	require.NoError(t, err)

	cell := findCell(cells, "DEU", 2020, "roic")
	require.NotNil(t, cell)

	assert.InDelta(t, 0.3, cell.Mean, 1e-9)
	assert.InDelta(t, 0.2, cell.Median, 1e-9)
	// (0.10*100 + 0.20*100 + 0.60*800) / 1000 = 0.51
	assert.InDelta(t, 0.51, cell.WeightedMean, 1e-9)
	assert.Equal(t, 3, cell.NFirms)
}

func TestCollapse_MinFirmsThresholdDropsCell(t *testing.T) {
	panel := []metrics.FirmMetrics{
		metricRow("A", "DEU", 2020, 0.10, 100),
		metricRow("B", "DEU", 2020, 0.20, 100),
		metricRow("C", "FRA", 2020, 0.30, 100), // lone firm
	}

	cells, err := NewCollapser(2, nil).Collapse(context.Background(), panel)
	require.NoError(t, err)

	assert.NotNil(t, findCell(cells, "DEU", 2020, "roic"))
	assert.Nil(t, findCell(cells, "FRA", 2020, "roic"))
}

func TestCollapse_NaNExcludedFromCount(t *testing.T) {
	panel := []metrics.FirmMetrics{
		metricRow("A", "DEU", 2020, math.NaN(), 100),
		metricRow("B", "DEU", 2020, 0.20, 100),
	}

	_, err := NewCollapser(2, nil).Collapse(context.Background(), panel)
	// Only one valid ROIC observation and all other metrics NaN: nothing survives
	require.Error(t, err)
}

func TestCollapse_SortedOutput(t *testing.T) {
	panel := []metrics.FirmMetrics{
		metricRow("A", "FRA", 2021, 0.1, 1),
		metricRow("B", "FRA", 2021, 0.2, 1),
		metricRow("C", "DEU", 2019, 0.3, 1),
		metricRow("D", "DEU", 2019, 0.4, 1),
	}

	cells, err := NewCollapser(1, nil).Collapse(context.Background(), panel)
	require.NoError(t, err)
	require.NotEmpty(t, cells)

	assert.Equal(t, "DEU", cells[0].Country)
	last := cells[len(cells)-1]
	assert.Equal(t, "FRA", last.Country)
}

func TestMergeAnalysis(t *testing.T) {
	cells := []Cell{
		{Country: "DEU", Year: 2019, Metric: "roic", Mean: 0.11},
		{Country: "DEU", Year: 2020, Metric: "roic", Mean: 0.12},
		{Country: "DEU", Year: 2020, Metric: "ebitda_margin", Mean: 0.18},
	}
	macro := []dataset.MacroObservation{
		{Country: "DEU", Year: 2020, Value: -4.6},
	}
	ineq := []dataset.Inequality{
		{Country: "DEU", Year: 2020, Gini: 32.1, GDPPerCapita: 45724},
	}

	rows, err := MergeAnalysis(context.Background(), nil, cells, macro, ineq)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// 2019: no macro/inequality match -> NaN covariates (left join)
	assert.Equal(t, 2019, rows[0].Year)
	assert.True(t, math.IsNaN(rows[0].MacroValue))
	assert.True(t, math.IsNaN(rows[0].Gini))
	assert.InDelta(t, 0.11, rows[0].Metrics["roic"].Mean, 1e-9)

	// 2020: fully matched
	assert.InDelta(t, -4.6, rows[1].MacroValue, 1e-9)
	assert.InDelta(t, 32.1, rows[1].Gini, 1e-9)
	assert.InDelta(t, 0.18, rows[1].Metrics["ebitda_margin"].Mean, 1e-9)
}

func TestMergeAnalysis_DuplicateMacroKeyFails(t *testing.T) {
	cells := []Cell{{Country: "DEU", Year: 2020, Metric: "roic", Mean: 0.1}}
	macro := []dataset.MacroObservation{
		{Country: "DEU", Year: 2020, Value: 1},
		{Country: "DEU", Year: 2020, Value: 2},
	}

	_, err := MergeAnalysis(context.Background(), nil, cells, macro, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestSeries(t *testing.T) {
	rows := []AnalysisRow{
		{Country: "DEU", Year: 2019, Metrics: map[string]Cell{"roic": {Mean: 0.11}}},
		{Country: "DEU", Year: 2020, Metrics: map[string]Cell{"roic": {Mean: 0.12}}},
		{Country: "FRA", Year: 2020, Metrics: map[string]Cell{"roic": {Mean: 0.09}}},
	}

	years, values := Series(rows, "DEU", "roic")
	assert.Equal(t, []int{2019, 2020}, years)
	require.Len(t, values, 2)
	assert.InDelta(t, 0.11, values[0], 1e-9)

	years, values = Series(rows, "DEU", "missing_metric")
	require.Len(t, values, 2)
	assert.True(t, math.IsNaN(values[0]))
	assert.Equal(t, 2, len(years))
}
