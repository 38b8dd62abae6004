package exporter

import (
	"fmt"
	"math"
	"strings"
)

// formatFloat2 formats a float with exactly 2 decimal places for report
// tables. This ensures values like 13.4 appear as 13.40.
func formatFloat2(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "-"
	}
	return fmt.Sprintf("%.2f", f)
}

// formatFloat4 formats a float with 4 decimal places, the precision used
// for metric ratios in report tables.
func formatFloat4(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "-"
	}
	return fmt.Sprintf("%.4f", f)
}

// sanitizeName turns a country name into a file-name-safe token.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
