package arma

import (
	"math"

	"firmpulse/internal/errors"
)

// ForecastPoint is one step of an ARMA forecast.
type ForecastPoint struct {
	Step     int     `json:"step"`
	Value    float64 `json:"value"`
	StdError float64 `json:"std_error"`
	Lower95  float64 `json:"lower_95"`
	Upper95  float64 `json:"upper_95"`
}

// z95 is the two-sided 95% normal quantile.
const z95 = 1.959963984540054

// Forecast produces h-step-ahead forecasts from the fitted model. Future
// innovations are set to zero; in-sample residuals feed the MA terms of
// the first steps. Standard errors come from the psi-weight (MA-infinity)
// representation.
func (m *Model) Forecast(h int) ([]ForecastPoint, error) {
	if h < 1 {
		return nil, errors.NewValidationError("forecast horizon must be positive")
	}
	if len(m.series) == 0 {
		return nil, errors.NewModelError("model carries no sample to forecast from", nil)
	}

	n := len(m.series)

	// Extended series: observed values followed by forecasts.
	extended := append([]float64(nil), m.series...)
	// Innovations: estimated residuals in-sample (NaN treated as zero),
	// zero beyond the sample.
	innov := make([]float64, n+h)
	for i := 0; i < n && i < len(m.Residuals); i++ {
		if !math.IsNaN(m.Residuals[i]) {
			innov[i] = m.Residuals[i]
		}
	}

	psi := m.PsiWeights(h)

	out := make([]ForecastPoint, h)
	variance := 0.0
	for step := 1; step <= h; step++ {
		t := n + step - 1

		value := m.Intercept
		for i, phi := range m.AR {
			idx := t - i - 1
			if idx >= 0 {
				value += phi * extended[idx]
			}
		}
		for j, theta := range m.MA {
			idx := t - j - 1
			if idx >= 0 && idx < len(innov) {
				value += theta * innov[idx]
			}
		}
		extended = append(extended, value)

		variance += psi[step-1] * psi[step-1]
		se := math.Sqrt(m.Sigma2 * variance)

		out[step-1] = ForecastPoint{
			Step:     step,
			Value:    value,
			StdError: se,
			Lower95:  value - z95*se,
			Upper95:  value + z95*se,
		}
	}

	return out, nil
}

// PsiWeights computes the first h weights of the MA-infinity representation
// psi_0..psi_{h-1}, with psi_0 = 1.
func (m *Model) PsiWeights(h int) []float64 {
	psi := make([]float64, h)
	if h == 0 {
		return psi
	}
	psi[0] = 1
	for k := 1; k < h; k++ {
		w := 0.0
		if k <= len(m.MA) {
			w = m.MA[k-1]
		}
		for i, phi := range m.AR {
			if k-i-1 >= 0 {
				w += phi * psi[k-i-1]
			}
		}
		psi[k] = w
	}
	return psi
}
