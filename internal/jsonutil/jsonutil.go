// Package jsonutil adapts the pipeline's NaN missing-value convention to
// JSON, which has no NaN literal: missing values encode as null.
package jsonutil

import "math"

// Float returns nil for NaN and infinite values so they encode as null.
func Float(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Floats maps a series to pointers with NaN and infinite entries nil,
// preserving positions.
func Floats(fs []float64) []*float64 {
	if fs == nil {
		return nil
	}
	out := make([]*float64, len(fs))
	for i, f := range fs {
		out[i] = Float(f)
	}
	return out
}
