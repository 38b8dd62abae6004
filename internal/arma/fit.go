package arma

import (
	"context"
	"log/slog"
	"math"

	"firmpulse/internal/errors"
	"firmpulse/internal/stats"
)

// minObsFactor requires at least this many observations per estimated
// parameter before a fit is attempted.
const minObsFactor = 3

// Fit estimates an ARMA(p,q) model on the series by Hannan-Rissanen
// two-stage least squares. Pure AR models reduce to a single OLS pass.
func Fit(ctx context.Context, logger *slog.Logger, series []float64, order Order) (*Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if order.P < 0 || order.Q < 0 {
		return nil, errors.NewValidationError("negative ARMA order")
	}
	if err := validateSeries(series); err != nil {
		return nil, err
	}

	n := len(series)
	if n < order.NParams()*minObsFactor {
		return nil, errors.NewModelError("series too short for requested order", nil).
			WithContext("n_obs", n).
			WithContext("order", order.String())
	}

	var residualProxy []float64
	if order.Q > 0 {
		proxy, err := longARResiduals(series, order)
		if err != nil {
			return nil, err
		}
		residualProxy = proxy
	}

	// Stage 2: regress y_t on intercept, p own lags, q residual lags.
	// Rows with unavailable lags carry NaN and are dropped by OLS.
	k := order.NParams()
	y := make([]float64, n)
	X := make([][]float64, n)
	for t := 0; t < n; t++ {
		y[t] = series[t]
		row := make([]float64, k)
		row[0] = 1
		for i := 1; i <= order.P; i++ {
			if t-i >= 0 {
				row[i] = series[t-i]
			} else {
				row[i] = math.NaN()
			}
		}
		for j := 1; j <= order.Q; j++ {
			if t-j >= 0 && !math.IsNaN(residualProxy[t-j]) {
				row[order.P+j] = residualProxy[t-j]
			} else {
				row[order.P+j] = math.NaN()
			}
		}
		X[t] = row
	}

	fit, err := stats.OLS(y, X)
	if err != nil {
		return nil, errors.NewModelError("ARMA stage-2 regression failed", err).
			WithContext("order", order.String())
	}

	model := &Model{
		Order:     order,
		Intercept: fit.Coefficients[0],
		AR:        append([]float64(nil), fit.Coefficients[1:1+order.P]...),
		MA:        append([]float64(nil), fit.Coefficients[1+order.P:]...),
		Sigma2:    fit.SigmaSquared,
		NObs:      fit.NObs,
		Residuals: fit.Residuals,
		series:    append([]float64(nil), series...),
	}

	// Information criteria on the conditional likelihood.
	nf := float64(fit.NObs)
	logSigma2 := math.Log(math.Max(model.Sigma2, 1e-300))
	model.AIC = nf*logSigma2 + 2*float64(k)
	model.BIC = nf*logSigma2 + float64(k)*math.Log(nf)

	// Residual whiteness diagnostic.
	resid := stats.Valid(fit.Residuals)
	lag := 10
	if lag > len(resid)/5 {
		lag = len(resid) / 5
	}
	if lag > order.P+order.Q {
		model.LjungBoxQ, model.LjungBoxP = stats.LjungBox(resid, lag, order.P+order.Q)
	} else {
		model.LjungBoxQ, model.LjungBoxP = math.NaN(), math.NaN()
	}

	logger.DebugContext(ctx, "fitted ARMA model",
		slog.String("order", order.String()),
		slog.Float64("sigma2", model.Sigma2),
		slog.Float64("aic", model.AIC),
		slog.Bool("stationary", model.Stationary()))

	return model, nil
}

// longARResiduals runs the Hannan-Rissanen stage 1: a long autoregression
// whose residuals proxy the unobserved innovations.
func longARResiduals(series []float64, order Order) ([]float64, error) {
	n := len(series)

	// Long AR order: max(p,q) plus a term growing with sample size.
	m := order.P
	if order.Q > m {
		m = order.Q
	}
	m += int(math.Ceil(math.Sqrt(float64(n)) / 2))
	if maxOrder := (n - 1) / minObsFactor; m > maxOrder {
		m = maxOrder
	}
	if m < 1 {
		return nil, errors.NewModelError("series too short for innovation proxy", nil)
	}

	y := make([]float64, n)
	X := make([][]float64, n)
	for t := 0; t < n; t++ {
		y[t] = series[t]
		row := make([]float64, m+1)
		row[0] = 1
		for i := 1; i <= m; i++ {
			if t-i >= 0 {
				row[i] = series[t-i]
			} else {
				row[i] = math.NaN()
			}
		}
		X[t] = row
	}

	fit, err := stats.OLS(y, X)
	if err != nil {
		return nil, errors.NewModelError("ARMA stage-1 long autoregression failed", err)
	}
	return fit.Residuals, nil
}
