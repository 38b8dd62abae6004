// Package arma estimates ARMA(p,q) models on univariate series using the
// Hannan-Rissanen two-stage least squares procedure, selects orders by
// information criterion, and produces multi-step forecasts with psi-weight
// confidence bands.
package arma

import (
	"encoding/json"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"firmpulse/internal/errors"
	"firmpulse/internal/jsonutil"
)

// Order is an ARMA model order.
type Order struct {
	P int `json:"p"` // autoregressive order
	Q int `json:"q"` // moving-average order
}

// String renders the order in the conventional ARMA(p,q) form.
func (o Order) String() string {
	return fmt.Sprintf("ARMA(%d,%d)", o.P, o.Q)
}

// NParams counts estimated parameters including the intercept.
func (o Order) NParams() int {
	return o.P + o.Q + 1
}

// Model is a fitted ARMA model.
type Model struct {
	Order     Order     `json:"order"`
	Intercept float64   `json:"intercept"`
	AR        []float64 `json:"ar"` // phi_1..phi_p
	MA        []float64 `json:"ma"` // theta_1..theta_q

	Sigma2 float64 `json:"sigma2"` // innovation variance
	AIC    float64 `json:"aic"`
	BIC    float64 `json:"bic"`
	NObs   int     `json:"n_obs"` // observations used in the stage-2 regression

	// LjungBoxQ and LjungBoxP test residual whiteness at lag
	// min(10, n/5) adjusting for the fitted parameter count.
	LjungBoxQ float64 `json:"ljung_box_q"`
	LjungBoxP float64 `json:"ljung_box_p"`

	// Residuals aligned with the input series; entries before the first
	// usable observation are NaN.
	Residuals []float64 `json:"-"`

	series []float64
}

// MarshalJSON encodes the Ljung-Box statistics as null when the sample
// was too short to compute them; encoding/json rejects NaN.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Order     Order     `json:"order"`
		Intercept float64   `json:"intercept"`
		AR        []float64 `json:"ar"`
		MA        []float64 `json:"ma"`
		Sigma2    float64   `json:"sigma2"`
		AIC       float64   `json:"aic"`
		BIC       float64   `json:"bic"`
		NObs      int       `json:"n_obs"`
		LjungBoxQ *float64  `json:"ljung_box_q"`
		LjungBoxP *float64  `json:"ljung_box_p"`
	}{
		Order:     m.Order,
		Intercept: m.Intercept,
		AR:        m.AR,
		MA:        m.MA,
		Sigma2:    m.Sigma2,
		AIC:       m.AIC,
		BIC:       m.BIC,
		NObs:      m.NObs,
		LjungBoxQ: jsonutil.Float(m.LjungBoxQ),
		LjungBoxP: jsonutil.Float(m.LjungBoxP),
	})
}

// Stationary reports whether all roots of the AR polynomial lie outside
// the unit circle, checked via the companion matrix eigenvalues.
func (m *Model) Stationary() bool {
	return polyRootsInsideUnit(m.AR)
}

// Invertible reports whether all roots of the MA polynomial lie outside
// the unit circle. The MA polynomial 1 + theta_1 z + ... is rewritten in
// the 1 - c_1 z - ... form expected by the root check.
func (m *Model) Invertible() bool {
	neg := make([]float64, len(m.MA))
	for i, theta := range m.MA {
		neg[i] = -theta
	}
	return polyRootsInsideUnit(neg)
}

// polyRootsInsideUnit checks that the companion matrix of the lag
// polynomial 1 - c_1 z - ... - c_k z^k has all eigenvalues with modulus
// below one, the stationarity/invertibility condition.
func polyRootsInsideUnit(coefs []float64) bool {
	// Trim trailing zeros; a zero-order polynomial is trivially fine.
	k := len(coefs)
	for k > 0 && coefs[k-1] == 0 {
		k--
	}
	if k == 0 {
		return true
	}

	companion := mat.NewDense(k, k, nil)
	for j := 0; j < k; j++ {
		companion.Set(0, j, coefs[j])
	}
	for i := 1; i < k; i++ {
		companion.Set(i, i-1, 1)
	}

	var eig mat.Eigen
	if ok := eig.Factorize(companion, mat.EigenNone); !ok {
		return false
	}
	for _, ev := range eig.Values(nil) {
		if cmplx.Abs(ev) >= 1 {
			return false
		}
	}
	return true
}

// validateSeries rejects series with missing interior values; ARMA
// estimation needs a contiguous sample.
func validateSeries(series []float64) error {
	if len(series) == 0 {
		return errors.NewModelError("empty series", nil)
	}
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.NewModelError("series contains missing values", nil).
				WithContext("position", i)
		}
	}
	return nil
}
