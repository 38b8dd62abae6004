// Package decompose implements classical additive time-series decomposition
// via OLS regression: a polynomial trend plus seasonal dummy variables,
// leaving the regression residual as the irregular component.
package decompose

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"firmpulse/internal/errors"
	"firmpulse/internal/jsonutil"
	"firmpulse/internal/stats"
)

// Options configures the decomposition regression.
type Options struct {
	// TrendDegree is the polynomial degree of the trend (0 = constant,
	// 1 = linear, up to 3).
	TrendDegree int
	// Period is the seasonal cycle length; 1 disables the seasonal
	// component (annual data).
	Period int
}

// DefaultOptions returns a linear trend with no seasonal component, the
// right default for annual country-year series.
func DefaultOptions() Options {
	return Options{TrendDegree: 1, Period: 1}
}

// Validate checks option ranges.
func (o Options) Validate() error {
	if o.TrendDegree < 0 || o.TrendDegree > 3 {
		return errors.NewValidationError(fmt.Sprintf("trend degree %d out of range [0,3]", o.TrendDegree))
	}
	if o.Period < 1 {
		return errors.NewValidationError(fmt.Sprintf("seasonal period %d must be at least 1", o.Period))
	}
	return nil
}

// Result holds the decomposition components, aligned with the input series.
// Positions where the input was NaN carry NaN in every component.
type Result struct {
	Trend            []float64 `json:"trend"`
	Seasonal         []float64 `json:"seasonal"`
	Irregular        []float64 `json:"irregular"`
	SeasonallyAdjust []float64 `json:"seasonally_adjusted"`
	RSquared float64 `json:"r_squared"`

	// TrendCoefs are the polynomial coefficients, intercept first, on the
	// centered time basis (t - (n-1)/2) / n used by the regression, not on
	// raw t.
	TrendCoefs []float64 `json:"trend_coefs"`
	NObs       int       `json:"n_obs"`
}

// MarshalJSON encodes NaN component positions as null for the API.
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Trend            []*float64 `json:"trend"`
		Seasonal         []*float64 `json:"seasonal"`
		Irregular        []*float64 `json:"irregular"`
		SeasonallyAdjust []*float64 `json:"seasonally_adjusted"`
		RSquared         float64    `json:"r_squared"`
		TrendCoefs       []float64  `json:"trend_coefs"`
		NObs             int        `json:"n_obs"`
	}{
		Trend:            jsonutil.Floats(r.Trend),
		Seasonal:         jsonutil.Floats(r.Seasonal),
		Irregular:        jsonutil.Floats(r.Irregular),
		SeasonallyAdjust: jsonutil.Floats(r.SeasonallyAdjust),
		RSquared:         r.RSquared,
		TrendCoefs:       r.TrendCoefs,
		NObs:             r.NObs,
	})
}

// Decompose fits series_t = trend(t) + seasonal(t mod period) + irregular_t
// by OLS. The seasonal effects are constrained to sum to zero by dummy
// coding against the last season, then re-centering.
func Decompose(ctx context.Context, logger *slog.Logger, series []float64, opts Options) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	n := len(series)
	nSeasonal := 0
	if opts.Period > 1 {
		nSeasonal = opts.Period - 1
	}
	nParams := opts.TrendDegree + 1 + nSeasonal
	if stats.CountValid(series) <= nParams {
		return nil, errors.NewModelError("series too short for decomposition", nil).
			WithContext("n_valid", stats.CountValid(series)).
			WithContext("n_params", nParams)
	}

	// Design matrix: 1, t, t^2, ..., then period-1 seasonal dummies.
	// Time is centered to keep the polynomial columns well conditioned.
	X := make([][]float64, n)
	center := float64(n-1) / 2
	for t := 0; t < n; t++ {
		row := make([]float64, nParams)
		tc := (float64(t) - center) / float64(n)
		pow := 1.0
		for d := 0; d <= opts.TrendDegree; d++ {
			row[d] = pow
			pow *= tc
		}
		if nSeasonal > 0 {
			season := t % opts.Period
			if season < nSeasonal {
				row[opts.TrendDegree+1+season] = 1
			}
		}
		X[t] = row
	}

	fit, err := stats.OLS(series, X)
	if err != nil {
		return nil, fmt.Errorf("decomposition regression: %w", err)
	}

	// Seasonal effects for each season; the reference season has effect 0
	// before re-centering.
	effects := make([]float64, opts.Period)
	for s := 0; s < nSeasonal; s++ {
		effects[s] = fit.Coefficients[opts.TrendDegree+1+s]
	}
	meanEffect := 0.0
	for _, e := range effects {
		meanEffect += e
	}
	meanEffect /= float64(opts.Period)

	res := &Result{
		Trend:            make([]float64, n),
		Seasonal:         make([]float64, n),
		Irregular:        make([]float64, n),
		SeasonallyAdjust: make([]float64, n),
		RSquared:         fit.RSquared,
		TrendCoefs:       fit.Coefficients[:opts.TrendDegree+1],
		NObs:             fit.NObs,
	}

	for t := 0; t < n; t++ {
		if math.IsNaN(series[t]) {
			res.Trend[t] = math.NaN()
			res.Seasonal[t] = math.NaN()
			res.Irregular[t] = math.NaN()
			res.SeasonallyAdjust[t] = math.NaN()
			continue
		}

		trend := 0.0
		for d := 0; d <= opts.TrendDegree; d++ {
			trend += fit.Coefficients[d] * X[t][d]
		}

		seasonal := 0.0
		if opts.Period > 1 {
			seasonal = effects[t%opts.Period] - meanEffect
			// Re-centering moves the seasonal mean into the trend level.
			trend += meanEffect
		}

		res.Trend[t] = trend
		res.Seasonal[t] = seasonal
		res.Irregular[t] = series[t] - trend - seasonal
		res.SeasonallyAdjust[t] = series[t] - seasonal
	}

	logger.DebugContext(ctx, "decomposition fitted",
		slog.Int("n_obs", fit.NObs),
		slog.Int("trend_degree", opts.TrendDegree),
		slog.Int("period", opts.Period),
		slog.Float64("r_squared", fit.RSquared))

	return res, nil
}
