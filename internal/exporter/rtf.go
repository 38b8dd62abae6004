package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/arma"
	"firmpulse/internal/config"
	"firmpulse/internal/metrics"
)

// CountrySummary collects the per-country model results for the report.
type CountrySummary struct {
	Country        string
	Metric         string
	NYears         int
	TrendRSquared  float64
	Model          *arma.Model
	ForecastPoints []arma.ForecastPoint
	LastYear       int
}

// RTFWriter renders the analysis summary as an RTF document readable by
// word processors without extra tooling.
type RTFWriter struct {
	paths config.PathsConfig
}

// NewRTFWriter creates a new RTF report writer.
func NewRTFWriter(paths config.PathsConfig) *RTFWriter {
	return &RTFWriter{paths: paths}
}

// WriteSummary writes summary.rtf: a country-year aggregate table followed
// by one model section per country.
func (w *RTFWriter) WriteSummary(rows []aggregate.AnalysisRow, summaries []CountrySummary) (string, error) {
	fullPath := filepath.Join(w.paths.ReportsDir, "summary.rtf")
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString(`{\rtf1\ansi\deff0{\fonttbl{\f0 Helvetica;}}\fs20` + "\n")

	writeHeading(&b, "Firm Performance Analysis Summary")

	writeHeading(&b, "Country-Year Aggregates")
	headers := []string{"Country", "Year"}
	for _, name := range metrics.MetricNames {
		headers = append(headers, name+" (mean)", name+" (n)")
	}
	headers = append(headers, "Macro", "Gini")

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := []string{escapeRTF(r.Country), fmt.Sprintf("%d", r.Year)}
		for _, name := range metrics.MetricNames {
			if cell, ok := r.Metrics[name]; ok {
				rec = append(rec, formatFloat4(cell.Mean), fmt.Sprintf("%d", cell.NFirms))
			} else {
				rec = append(rec, "-", "-")
			}
		}
		rec = append(rec, formatFloat2(r.MacroValue), formatFloat2(r.Gini))
		table = append(table, rec)
	}
	writeTable(&b, headers, table)

	for _, s := range summaries {
		writeHeading(&b, fmt.Sprintf("%s: %s", escapeRTF(s.Country), escapeRTF(s.Metric)))
		writeParagraph(&b, fmt.Sprintf("Observations: %d years through %d. Trend R-squared: %s.",
			s.NYears, s.LastYear, formatFloat4(s.TrendRSquared)))

		if s.Model != nil {
			m := s.Model
			writeParagraph(&b, fmt.Sprintf("Selected model: %s, sigma2 = %s, AIC = %s, BIC = %s.",
				m.Order.String(), formatFloat4(m.Sigma2), formatFloat2(m.AIC), formatFloat2(m.BIC)))
			writeParagraph(&b, fmt.Sprintf("Ljung-Box Q = %s (p = %s).",
				formatFloat2(m.LjungBoxQ), formatFloat4(m.LjungBoxP)))
		} else {
			writeParagraph(&b, "No ARMA model could be fitted for this series.")
		}

		if len(s.ForecastPoints) > 0 {
			fcHeaders := []string{"Year", "Forecast", "Lower 95%", "Upper 95%"}
			fcTable := make([][]string, 0, len(s.ForecastPoints))
			for _, p := range s.ForecastPoints {
				fcTable = append(fcTable, []string{
					fmt.Sprintf("%d", s.LastYear+p.Step),
					formatFloat4(p.Value),
					formatFloat4(p.Lower95),
					formatFloat4(p.Upper95),
				})
			}
			writeTable(&b, fcHeaders, fcTable)
		}
	}

	b.WriteString("}\n")

	if err := os.WriteFile(fullPath, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write RTF report: %w", err)
	}
	return fullPath, nil
}

func writeHeading(b *strings.Builder, text string) {
	fmt.Fprintf(b, `{\pard\b\fs28 %s\par}`+"\n", text)
}

func writeParagraph(b *strings.Builder, text string) {
	fmt.Fprintf(b, `{\pard %s\par}`+"\n", text)
}

// writeTable emits an RTF table. Column widths are uniform; RTF cell
// boundaries are cumulative twip offsets.
func writeTable(b *strings.Builder, headers []string, rows [][]string) {
	const cellWidth = 1400 // twips

	rowPrefix := func() {
		b.WriteString(`\trowd\trgaph80`)
		for i := range headers {
			fmt.Fprintf(b, `\clbrdrt\brdrs\clbrdrb\brdrs\clbrdrl\brdrs\clbrdrr\brdrs\cellx%d`, (i+1)*cellWidth)
		}
		b.WriteString("\n")
	}

	rowPrefix()
	for _, h := range headers {
		fmt.Fprintf(b, `\intbl\b %s\b0\cell `, escapeRTF(h))
	}
	b.WriteString(`\row` + "\n")

	for _, row := range rows {
		rowPrefix()
		for _, cell := range row {
			fmt.Fprintf(b, `\intbl %s\cell `, cell)
		}
		b.WriteString(`\row` + "\n")
	}
	b.WriteString(`\pard` + "\n")
}

// escapeRTF escapes RTF control characters and non-ASCII runes. The \uN
// control word takes a signed 16-bit argument, so runes above the Basic
// Multilingual Plane are written as a UTF-16 surrogate pair.
func escapeRTF(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%d?\u%d?`, rtfCodeUnit(hi), rtfCodeUnit(lo))
		case r > 127:
			fmt.Fprintf(&b, `\u%d?`, rtfCodeUnit(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// rtfCodeUnit folds a UTF-16 code unit into the signed 16-bit range.
func rtfCodeUnit(r rune) int {
	v := int(r)
	if v > 32767 {
		v -= 65536
	}
	return v
}
