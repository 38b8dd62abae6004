package decompose

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "firmpulse/internal/errors"
)

func TestDecompose_LinearTrendRecovered(t *testing.T) {
	// Pure linear series: trend should reproduce it, irregular ~ 0.
	series := make([]float64, 20)
	for i := range series {
		series[i] = 5 + 2*float64(i)
	}

	res, err := Decompose(context.Background(), nil, series, Options{TrendDegree: 1, Period: 1})
	require.NoError(t, err)

	assert.InDelta(t, 1, res.RSquared, 1e-9)
	for i := range series {
		assert.InDelta(t, series[i], res.Trend[i], 1e-8, "t=%d", i)
		assert.InDelta(t, 0, res.Irregular[i], 1e-8)
		assert.InDelta(t, 0, res.Seasonal[i], 1e-12)
	}
}

func TestDecompose_SeasonalPatternRecovered(t *testing.T) {
	// Quarterly series: linear trend plus a fixed seasonal pattern that
	// sums to zero over each cycle.
	pattern := []float64{2, -1, 0.5, -1.5}
	n := 40
	series := make([]float64, n)
	for i := 0; i < n; i++ {
		series[i] = 10 + 0.5*float64(i) + pattern[i%4]
	}

	res, err := Decompose(context.Background(), nil, series, Options{TrendDegree: 1, Period: 4})
	require.NoError(t, err)

	assert.InDelta(t, 1, res.RSquared, 1e-9)
	for i := 0; i < n; i++ {
		assert.InDelta(t, pattern[i%4], res.Seasonal[i], 1e-7, "t=%d", i)
		assert.InDelta(t, 0, res.Irregular[i], 1e-7)
	}

	// Seasonal effects sum to zero over one cycle
	sum := res.Seasonal[0] + res.Seasonal[1] + res.Seasonal[2] + res.Seasonal[3]
	assert.InDelta(t, 0, sum, 1e-7)

	// Seasonally adjusted series equals trend plus irregular
	for i := 0; i < n; i++ {
		assert.InDelta(t, res.Trend[i]+res.Irregular[i], res.SeasonallyAdjust[i], 1e-7)
	}
}

func TestDecompose_QuadraticTrend(t *testing.T) {
	series := make([]float64, 30)
	for i := range series {
		x := float64(i)
		series[i] = 1 + 0.2*x + 0.05*x*x
	}

	res, err := Decompose(context.Background(), nil, series, Options{TrendDegree: 2, Period: 1})
	require.NoError(t, err)

	assert.InDelta(t, 1, res.RSquared, 1e-9)
	for i := range series {
		assert.InDelta(t, series[i], res.Trend[i], 1e-6)
	}
}

func TestDecompose_TrendCoefsUseCenteredBasis(t *testing.T) {
	n := 16
	series := make([]float64, n)
	for i := range series {
		series[i] = 3 + 0.7*float64(i)
	}

	res, err := Decompose(context.Background(), nil, series, Options{TrendDegree: 1, Period: 1})
	require.NoError(t, err)
	require.Len(t, res.TrendCoefs, 2)

	// Evaluating the coefficients on the documented (t-(n-1)/2)/n basis
	// reproduces the fitted trend.
	center := float64(n-1) / 2
	for i := 0; i < n; i++ {
		tc := (float64(i) - center) / float64(n)
		assert.InDelta(t, res.Trend[i], res.TrendCoefs[0]+res.TrendCoefs[1]*tc, 1e-8, "t=%d", i)
	}
}

func TestDecompose_NaNPositionsPreserved(t *testing.T) {
	series := []float64{1, 2, math.NaN(), 4, 5, 6, 7, 8, 9, 10}

	res, err := Decompose(context.Background(), nil, series, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, math.IsNaN(res.Trend[2]))
	assert.True(t, math.IsNaN(res.Irregular[2]))
	assert.False(t, math.IsNaN(res.Trend[3]))
	assert.Equal(t, 9, res.NObs)
}

func TestDecompose_TooShort(t *testing.T) {
	_, err := Decompose(context.Background(), nil, []float64{1, 2}, Options{TrendDegree: 1, Period: 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeModel))
}

func TestDecompose_InvalidOptions(t *testing.T) {
	_, err := Decompose(context.Background(), nil, []float64{1, 2, 3}, Options{TrendDegree: 5, Period: 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))

	_, err = Decompose(context.Background(), nil, []float64{1, 2, 3}, Options{TrendDegree: 1, Period: 0})
	require.Error(t, err)
}
