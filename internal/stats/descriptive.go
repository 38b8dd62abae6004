// Package stats provides the shared statistical primitives used by the
// metric, decomposition, and ARMA packages: NaN-aware descriptive statistics,
// percentiles, OLS regression, and autocorrelation functions.
package stats

import (
	"math"
	"sort"
)

// Valid filters out NaN and Inf entries, returning a fresh slice.
func Valid(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// TrimNaN strips leading and trailing NaN/Inf entries and reports whether
// the remaining interior is free of them. Unlike Valid it never joins
// values across a gap, so lag positions stay meaningful.
func TrimNaN(values []float64) (trimmed []float64, contiguous bool) {
	start, end := 0, len(values)
	for start < end && !isValid(values[start]) {
		start++
	}
	for end > start && !isValid(values[end-1]) {
		end--
	}
	trimmed = values[start:end]
	for _, v := range trimmed {
		if !isValid(v) {
			return trimmed, false
		}
	}
	return trimmed, true
}

func isValid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Mean computes the arithmetic mean, ignoring NaN/Inf entries.
// Returns NaN when no valid values remain.
func Mean(values []float64) float64 {
	valid := Valid(values)
	if len(valid) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range valid {
		sum += v
	}
	return sum / float64(len(valid))
}

// Median computes the median, ignoring NaN/Inf entries.
func Median(values []float64) float64 {
	valid := Valid(values)
	if len(valid) == 0 {
		return math.NaN()
	}
	sort.Float64s(valid)
	n := len(valid)
	if n%2 == 1 {
		return valid[n/2]
	}
	return (valid[n/2-1] + valid[n/2]) / 2
}

// StdDev computes the sample standard deviation, ignoring NaN/Inf entries.
func StdDev(values []float64) float64 {
	valid := Valid(values)
	if len(valid) < 2 {
		return math.NaN()
	}
	mean := Mean(valid)
	sumSq := 0.0
	for _, v := range valid {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(valid)-1))
}

// WeightedMean computes a weighted mean over paired values/weights,
// skipping pairs where either entry is NaN/Inf or the weight is non-positive.
func WeightedMean(values, weights []float64) float64 {
	if len(values) != len(weights) {
		return math.NaN()
	}
	var sum, wsum float64
	for i, v := range values {
		w := weights[i]
		if math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			continue
		}
		sum += v * w
		wsum += w
	}
	if wsum == 0 {
		return math.NaN()
	}
	return sum / wsum
}

// Percentile returns the p-th percentile (p in [0,1]) of the valid values
// using linear interpolation between order statistics.
func Percentile(values []float64, p float64) float64 {
	valid := Valid(values)
	if len(valid) == 0 || p < 0 || p > 1 {
		return math.NaN()
	}
	sort.Float64s(valid)
	if len(valid) == 1 {
		return valid[0]
	}

	pos := p * float64(len(valid)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return valid[lower]
	}
	frac := pos - float64(lower)
	return valid[lower]*(1-frac) + valid[upper]*frac
}

// Winsorize caps values below the kLower percentile and above the kUpper
// percentile of the valid entries. NaN entries are preserved as NaN and
// excluded from bound computation. Returns the capped slice plus the bounds
// applied; with no valid entries both bounds are NaN.
func Winsorize(values []float64, kLower, kUpper float64) ([]float64, float64, float64) {
	lowerBound := Percentile(values, kLower)
	upperBound := Percentile(values, kUpper)

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			out[i] = math.NaN()
		case !math.IsNaN(lowerBound) && v < lowerBound:
			out[i] = lowerBound
		case !math.IsNaN(upperBound) && v > upperBound:
			out[i] = upperBound
		default:
			out[i] = v
		}
	}
	return out, lowerBound, upperBound
}

// CountValid returns the number of entries that are neither NaN nor Inf.
func CountValid(values []float64) int {
	n := 0
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			n++
		}
	}
	return n
}
