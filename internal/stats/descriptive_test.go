package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMean(t *testing.T) {
	tests := []struct {
		name     string
		values   []float64
		expected float64
	}{
		{"simple", []float64{1, 2, 3, 4}, 2.5},
		{"ignores_nan", []float64{1, math.NaN(), 3}, 2},
		{"ignores_inf", []float64{2, math.Inf(1), 4}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Mean(tt.values), 1e-12)
		})
	}
}

func TestMean_AllMissing(t *testing.T) {
	assert.True(t, math.IsNaN(Mean([]float64{math.NaN(), math.NaN()})))
	assert.True(t, math.IsNaN(Mean(nil)))
}

func TestMedian(t *testing.T) {
	assert.InDelta(t, 3, Median([]float64{5, 1, 3}), 1e-12)
	assert.InDelta(t, 2.5, Median([]float64{4, 1, 2, 3}), 1e-12)
	assert.InDelta(t, 2, Median([]float64{1, math.NaN(), 3}), 1e-12)
}

func TestStdDev(t *testing.T) {
	// Sample std dev of {2,4,4,4,5,5,7,9} is ~2.138
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	assert.InDelta(t, 2.13809, StdDev(values), 1e-4)

	assert.True(t, math.IsNaN(StdDev([]float64{1})))
}

func TestWeightedMean(t *testing.T) {
	values := []float64{10, 20, 30}
	weights := []float64{1, 1, 2}
	assert.InDelta(t, 22.5, WeightedMean(values, weights), 1e-12)

	// NaN value pairs are skipped entirely
	values = []float64{10, math.NaN(), 30}
	weights = []float64{1, 100, 1}
	assert.InDelta(t, 20, WeightedMean(values, weights), 1e-12)

	// Non-positive weights skipped
	assert.InDelta(t, 10, WeightedMean([]float64{10, 99}, []float64{1, 0}), 1e-12)
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.InDelta(t, 1, Percentile(values, 0), 1e-12)
	assert.InDelta(t, 10, Percentile(values, 1), 1e-12)
	assert.InDelta(t, 5.5, Percentile(values, 0.5), 1e-12)
	assert.InDelta(t, 1.45, Percentile(values, 0.05), 1e-12)

	assert.True(t, math.IsNaN(Percentile(nil, 0.5)))
	assert.True(t, math.IsNaN(Percentile(values, 1.5)))
}

func TestWinsorize(t *testing.T) {
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i + 1) // 1..100
	}

	capped, lower, upper := Winsorize(values, 0.05, 0.95)
	require.Len(t, capped, 100)

	assert.InDelta(t, 5.95, lower, 1e-12)
	assert.InDelta(t, 95.05, upper, 1e-12)

	// Extremes are capped at the bounds
	assert.InDelta(t, lower, capped[0], 1e-12)
	assert.InDelta(t, upper, capped[99], 1e-12)
	// Interior values untouched
	assert.InDelta(t, 50, capped[49], 1e-12)
}

func TestWinsorize_PreservesNaN(t *testing.T) {
	values := []float64{1, math.NaN(), 3, 4, 100}
	capped, _, _ := Winsorize(values, 0.25, 0.75)

	assert.True(t, math.IsNaN(capped[1]))
	assert.Equal(t, 5, len(capped))
}

func TestCountValid(t *testing.T) {
	assert.Equal(t, 2, CountValid([]float64{1, math.NaN(), 2, math.Inf(-1)}))
	assert.Equal(t, 0, CountValid(nil))
}

func TestTrimNaN(t *testing.T) {
	nan := math.NaN()

	trimmed, contiguous := TrimNaN([]float64{nan, nan, 1, 2, 3, nan})
	assert.True(t, contiguous)
	assert.Equal(t, []float64{1, 2, 3}, trimmed)

	// An interior gap is reported, never compacted.
	trimmed, contiguous = TrimNaN([]float64{1, 2, nan, 4})
	assert.False(t, contiguous)
	assert.Equal(t, 4, len(trimmed))

	trimmed, contiguous = TrimNaN([]float64{nan, nan})
	assert.True(t, contiguous)
	assert.Empty(t, trimmed)

	_, contiguous = TrimNaN([]float64{1, math.Inf(1), 2})
	assert.False(t, contiguous)
}
