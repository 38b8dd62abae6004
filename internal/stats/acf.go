package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// AutoCovariance computes the lag-h autocovariance of the series using the
// biased (1/n) estimator, the standard convention for ACF computation.
func AutoCovariance(series []float64, lag int) float64 {
	n := len(series)
	if lag < 0 || lag >= n {
		return math.NaN()
	}
	mean := Mean(series)
	if math.IsNaN(mean) {
		return math.NaN()
	}
	var sum float64
	for i := lag; i < n; i++ {
		sum += (series[i] - mean) * (series[i-lag] - mean)
	}
	return sum / float64(n)
}

// ACF computes autocorrelations for lags 0..maxLag.
func ACF(series []float64, maxLag int) []float64 {
	if maxLag >= len(series) {
		maxLag = len(series) - 1
	}
	if maxLag < 0 {
		return nil
	}
	out := make([]float64, maxLag+1)
	c0 := AutoCovariance(series, 0)
	if c0 == 0 || math.IsNaN(c0) {
		for i := range out {
			out[i] = math.NaN()
		}
		if len(out) > 0 {
			out[0] = 1
		}
		return out
	}
	out[0] = 1
	for h := 1; h <= maxLag; h++ {
		out[h] = AutoCovariance(series, h) / c0
	}
	return out
}

// PACF computes partial autocorrelations for lags 1..maxLag via the
// Durbin-Levinson recursion.
func PACF(series []float64, maxLag int) []float64 {
	acf := ACF(series, maxLag)
	if len(acf) < 2 {
		return nil
	}
	maxLag = len(acf) - 1

	pacf := make([]float64, maxLag+1)
	phi := make([][]float64, maxLag+1)
	for i := range phi {
		phi[i] = make([]float64, maxLag+1)
	}

	pacf[0] = 1
	phi[1][1] = acf[1]
	pacf[1] = acf[1]

	for k := 2; k <= maxLag; k++ {
		num := acf[k]
		den := 1.0
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-j]
			den -= phi[k-1][j] * acf[j]
		}
		if den == 0 {
			pacf[k] = math.NaN()
			continue
		}
		phi[k][k] = num / den
		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
		pacf[k] = phi[k][k]
	}

	return pacf[1:]
}

// LjungBox computes the Ljung-Box Q statistic over the first maxLag
// autocorrelations and its p-value under a chi-squared distribution with
// maxLag-fitted degrees of freedom. fitted is the number of estimated ARMA
// parameters; pass 0 when testing a raw series.
func LjungBox(series []float64, maxLag, fitted int) (q, pvalue float64) {
	n := len(series)
	if n <= maxLag || maxLag <= 0 {
		return math.NaN(), math.NaN()
	}
	acf := ACF(series, maxLag)

	q = 0
	for h := 1; h <= maxLag; h++ {
		r := acf[h]
		if math.IsNaN(r) {
			return math.NaN(), math.NaN()
		}
		q += r * r / float64(n-h)
	}
	q *= float64(n) * (float64(n) + 2)

	df := maxLag - fitted
	if df <= 0 {
		return q, math.NaN()
	}
	chi2 := distuv.ChiSquared{K: float64(df)}
	pvalue = 1 - chi2.CDF(q)
	return q, pvalue
}
