package arma

import (
	"context"
	"log/slog"
	"strings"

	"firmpulse/internal/errors"
)

// Criterion selects which information criterion drives order selection.
type Criterion string

const (
	CriterionAIC Criterion = "aic"
	CriterionBIC Criterion = "bic"
)

// ParseCriterion maps a config string to a Criterion, defaulting to AIC.
func ParseCriterion(s string) Criterion {
	if strings.EqualFold(s, string(CriterionBIC)) {
		return CriterionBIC
	}
	return CriterionAIC
}

// SelectionResult reports the winning model and the full grid scores.
type SelectionResult struct {
	Best   *Model             `json:"best"`
	Scores map[string]float64 `json:"scores"` // order string -> criterion value
	Failed map[string]string  `json:"failed"` // order string -> failure reason
}

// Select fits every order on the (0..maxP, 0..maxQ) grid and returns the
// model minimizing the criterion. Non-stationary or non-invertible fits
// are excluded; individual fit failures are recorded, not fatal. Ties
// prefer the more parsimonious order.
func Select(ctx context.Context, logger *slog.Logger, series []float64, maxP, maxQ int, criterion Criterion) (*SelectionResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maxP < 0 || maxQ < 0 {
		return nil, errors.NewValidationError("negative order bounds")
	}

	result := &SelectionResult{
		Scores: make(map[string]float64),
		Failed: make(map[string]string),
	}

	var bestScore float64
	var bestOrder Order

	for p := 0; p <= maxP; p++ {
		for q := 0; q <= maxQ; q++ {
			order := Order{P: p, Q: q}
			model, err := Fit(ctx, logger, series, order)
			if err != nil {
				result.Failed[order.String()] = err.Error()
				continue
			}
			if !model.Stationary() {
				result.Failed[order.String()] = "non-stationary AR roots"
				continue
			}
			if !model.Invertible() {
				result.Failed[order.String()] = "non-invertible MA roots"
				continue
			}

			score := model.AIC
			if criterion == CriterionBIC {
				score = model.BIC
			}
			result.Scores[order.String()] = score

			better := result.Best == nil || score < bestScore ||
				(score == bestScore && order.NParams() < bestOrder.NParams())
			if better {
				result.Best = model
				bestScore = score
				bestOrder = order
			}
		}
	}

	if result.Best == nil {
		return nil, errors.NewModelError("no ARMA order could be fitted", nil).
			WithContext("grid", Order{P: maxP, Q: maxQ}.String()).
			WithContext("n_obs", len(series))
	}

	logger.InfoContext(ctx, "selected ARMA order",
		slog.String("order", result.Best.Order.String()),
		slog.String("criterion", string(criterion)),
		slog.Float64("score", bestScore),
		slog.Int("candidates", len(result.Scores)),
		slog.Int("failed", len(result.Failed)))

	return result, nil
}
