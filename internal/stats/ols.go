package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"firmpulse/internal/errors"
)

// OLSResult holds the output of an ordinary least squares fit.
type OLSResult struct {
	Coefficients []float64 // one per design matrix column
	StdErrors    []float64 // coefficient standard errors
	Fitted       []float64
	Residuals    []float64
	RSquared     float64
	SigmaSquared float64 // residual variance (SSR / (n-k))
	NObs         int
	NParams      int
}

// OLS fits y = X*beta + e by QR decomposition. X is row-major with one row
// per observation. Rows containing NaN in y or X are excluded before fitting.
func OLS(y []float64, X [][]float64) (*OLSResult, error) {
	if len(y) == 0 || len(X) != len(y) {
		return nil, errors.NewModelError("design matrix and response length mismatch", nil)
	}
	k := len(X[0])
	if k == 0 {
		return nil, errors.NewModelError("empty design matrix", nil)
	}

	// Drop rows with missing entries; remember positions so fitted values
	// and residuals line up with the input.
	rows := make([]int, 0, len(y))
	for i := range y {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			continue
		}
		ok := true
		for _, x := range X[i] {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				ok = false
				break
			}
		}
		if ok {
			rows = append(rows, i)
		}
	}

	n := len(rows)
	if n <= k {
		return nil, errors.NewModelError("insufficient observations for regression", nil).
			WithContext("n_obs", n).
			WithContext("n_params", k)
	}

	xm := mat.NewDense(n, k, nil)
	yv := mat.NewVecDense(n, nil)
	for r, idx := range rows {
		yv.SetVec(r, y[idx])
		for c := 0; c < k; c++ {
			xm.Set(r, c, X[idx][c])
		}
	}

	var qr mat.QR
	qr.Factorize(xm)

	beta := mat.NewVecDense(k, nil)
	if err := qr.SolveVecTo(beta, false, yv); err != nil {
		return nil, errors.NewModelError("singular design matrix", err)
	}

	// Fitted values and residuals on the full input, NaN where excluded.
	fitted := make([]float64, len(y))
	residuals := make([]float64, len(y))
	for i := range fitted {
		fitted[i] = math.NaN()
		residuals[i] = math.NaN()
	}

	var ssr, tss float64
	ymean := 0.0
	for _, idx := range rows {
		ymean += y[idx]
	}
	ymean /= float64(n)

	for _, idx := range rows {
		pred := 0.0
		for c := 0; c < k; c++ {
			pred += beta.AtVec(c) * X[idx][c]
		}
		fitted[idx] = pred
		residuals[idx] = y[idx] - pred
		ssr += residuals[idx] * residuals[idx]
		tss += (y[idx] - ymean) * (y[idx] - ymean)
	}

	sigma2 := ssr / float64(n-k)

	// Standard errors from sigma^2 * (X'X)^-1 diagonal.
	var xtx mat.SymDense
	xtx.SymOuterK(1, xm.T())
	stderrs := make([]float64, k)
	for c := range stderrs {
		stderrs[c] = math.NaN()
	}
	var chol mat.Cholesky
	if chol.Factorize(&xtx) {
		var xtxInv mat.SymDense
		if err := chol.InverseTo(&xtxInv); err == nil {
			for c := 0; c < k; c++ {
				stderrs[c] = math.Sqrt(sigma2 * xtxInv.At(c, c))
			}
		}
	}

	r2 := 0.0
	if tss > 0 {
		r2 = 1 - ssr/tss
	}

	coefs := make([]float64, k)
	for c := 0; c < k; c++ {
		coefs[c] = beta.AtVec(c)
	}

	return &OLSResult{
		Coefficients: coefs,
		StdErrors:    stderrs,
		Fitted:       fitted,
		Residuals:    residuals,
		RSquared:     r2,
		SigmaSquared: sigma2,
		NObs:         n,
		NParams:      k,
	}, nil
}
