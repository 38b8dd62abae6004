package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firmpulse/internal/dataset"
)

func fixtureRow(firm, country string, year int, revenue, ebitda, assets, currLiab, debt, equity float64) dataset.FirmYear {
	return dataset.FirmYear{
		FirmID:             firm,
		Country:            country,
		Year:               year,
		Revenue:            revenue,
		EBITDA:             ebitda,
		TotalAssets:        assets,
		CurrentLiabilities: currLiab,
		TotalDebt:          debt,
		TotalEquity:        equity,
	}
}

func wideBoundsBuilder(t *testing.T) *Builder {
	t.Helper()
	// Bounds wide enough that winsorization never caps the small fixture
	b, err := NewBuilder(WinsorizationBounds{Lower: 0, Upper: 1}, nil)
	require.NoError(t, err)
	return b
}

func TestBuild_ROICMatchesHandComputedFixture(t *testing.T) {
	// ROIC_t = EBITDA_t / InvestedCapital_{t-1}
	// IC_2019 = 600 + 900 = 1500, so ROIC_2020 = 180 / 1500 = 0.12
	rows := []dataset.FirmYear{
		fixtureRow("F001", "DEU", 2019, 1000, 150, 2000, 400, 600, 900),
		fixtureRow("F001", "DEU", 2020, 1100, 180, 2100, 420, 580, 950),
	}

	panel, err := wideBoundsBuilder(t).Build(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, panel, 2)

	first, second := panel[0], panel[1]

	// First observed year has no lag
	assert.True(t, math.IsNaN(first.ROIC))
	assert.True(t, math.IsNaN(first.RevenueGrowth))
	assert.InDelta(t, 0.15, first.EBITDAMargin, 1e-9)
	assert.InDelta(t, 1500, first.InvestedCapital, 1e-9)

	assert.InDelta(t, 0.12, second.ROIC, 1e-9)
	assert.InDelta(t, 0.1, second.RevenueGrowth, 1e-9) // (1100-1000)/1000
	assert.InDelta(t, 1100.0/2000.0, second.AssetTurnover, 1e-9)
}

func TestBuild_YearGapInvalidatesLag(t *testing.T) {
	rows := []dataset.FirmYear{
		fixtureRow("F001", "DEU", 2017, 1000, 150, 2000, 400, 600, 900),
		fixtureRow("F001", "DEU", 2020, 1100, 180, 2100, 420, 580, 950),
	}

	panel, err := wideBoundsBuilder(t).Build(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, panel, 2)

	assert.True(t, math.IsNaN(panel[1].ROIC))
	assert.True(t, math.IsNaN(panel[1].RevenueGrowth))
}

func TestBuild_InvestedCapitalFallback(t *testing.T) {
	// Debt/equity missing: IC = assets - current liabilities
	row := fixtureRow("F002", "FRA", 2020, 500, 60, 1600, 300, math.NaN(), math.NaN())

	ic := InvestedCapital(row)
	assert.InDelta(t, 1300, ic, 1e-9)

	// All balance-sheet fields missing
	row.TotalAssets = math.NaN()
	assert.True(t, math.IsNaN(InvestedCapital(row)))
}

func TestBuild_DuplicateFirmYearKeepsLast(t *testing.T) {
	rows := []dataset.FirmYear{
		fixtureRow("F001", "DEU", 2020, 1000, 100, 2000, 400, 600, 900),
		fixtureRow("F001", "DEU", 2020, 1100, 180, 2100, 420, 580, 950), // restated
	}

	panel, err := wideBoundsBuilder(t).Build(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, panel, 1)
	assert.InDelta(t, 180.0/1100.0, panel[0].EBITDAMargin, 1e-9)
}

func TestBuild_WinsorizationCapsOutliers(t *testing.T) {
	// Ten firms in the same year; one extreme EBITDA margin should be
	// capped at the 25th/75th percentile bounds.
	var rows []dataset.FirmYear
	for i := 0; i < 9; i++ {
		rows = append(rows, fixtureRow(
			string(rune('A'+i)), "DEU", 2020,
			1000, 100+float64(i)*10, // margins 0.10 .. 0.18
			2000, 400, 600, 900))
	}
	rows = append(rows, fixtureRow("Z", "DEU", 2020, 1000, 5000, 2000, 400, 600, 900)) // margin 5.0

	builder, err := NewBuilder(WinsorizationBounds{Lower: 0.25, Upper: 0.75}, nil)
	require.NoError(t, err)

	panel, err := builder.Build(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, panel, 10)

	var zMargin, maxOther float64
	for _, m := range panel {
		if m.FirmID == "Z" {
			zMargin = m.EBITDAMargin
		} else if m.EBITDAMargin > maxOther {
			maxOther = m.EBITDAMargin
		}
	}

	// The outlier is pulled down to the upper winsorization bound,
	// which is within the range of the remaining margins.
	assert.Less(t, zMargin, 0.2)
	assert.GreaterOrEqual(t, zMargin, maxOther)
}

func TestBuild_WinsorizationIsPerYear(t *testing.T) {
	// The same value distribution in two different years must be capped
	// independently; a level shift between years stays intact.
	var rows []dataset.FirmYear
	for i := 0; i < 5; i++ {
		rows = append(rows, fixtureRow(string(rune('A'+i)), "DEU", 2019, 1000, 100+float64(i)*20, 2000, 400, 600, 900))
		rows = append(rows, fixtureRow(string(rune('A'+i)), "DEU", 2020, 1000, 500+float64(i)*20, 2000, 400, 600, 900))
	}

	builder, err := NewBuilder(WinsorizationBounds{Lower: 0.05, Upper: 0.95}, nil)
	require.NoError(t, err)

	panel, err := builder.Build(context.Background(), rows)
	require.NoError(t, err)

	var mean2019, mean2020 float64
	var n int
	for _, m := range panel {
		if m.Year == 2019 {
			mean2019 += m.EBITDAMargin
			n++
		} else {
			mean2020 += m.EBITDAMargin
		}
	}
	mean2019 /= float64(n)
	mean2020 /= float64(n)

	assert.Greater(t, mean2020, mean2019+0.3)
}

func TestBuild_EmptyInput(t *testing.T) {
	_, err := wideBoundsBuilder(t).Build(context.Background(), nil)
	require.Error(t, err)
}

func TestNewBuilder_InvalidBounds(t *testing.T) {
	_, err := NewBuilder(WinsorizationBounds{Lower: 0.9, Upper: 0.1}, nil)
	require.Error(t, err)
}
