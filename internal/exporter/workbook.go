package exporter

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/config"
	"firmpulse/internal/metrics"
)

// WorkbookWriter renders the analysis summary as an Excel workbook with
// one sheet for the country-year panel and one per fitted model.
type WorkbookWriter struct {
	paths config.PathsConfig
}

// NewWorkbookWriter creates a new workbook writer.
func NewWorkbookWriter(paths config.PathsConfig) *WorkbookWriter {
	return &WorkbookWriter{paths: paths}
}

// WriteSummary writes summary.xlsx.
func (w *WorkbookWriter) WriteSummary(rows []aggregate.AnalysisRow, summaries []CountrySummary) (string, error) {
	fullPath := filepath.Join(w.paths.ReportsDir, "summary.xlsx")
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := w.writePanelSheet(f, rows); err != nil {
		return "", err
	}
	if err := w.writeModelSheet(f, summaries); err != nil {
		return "", err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to drop default sheet: %w", err)
	}

	if err := f.SaveAs(fullPath); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return fullPath, nil
}

func (w *WorkbookWriter) writePanelSheet(f *excelize.File, rows []aggregate.AnalysisRow) error {
	const sheet = "CountryYear"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []string{"Country", "Year"}
	for _, name := range metrics.MetricNames {
		headers = append(headers, name+"_mean", name+"_median", name+"_wmean", name+"_sd", name+"_n")
	}
	headers = append(headers, "macro_value", "gini", "gdp_per_capita")

	if err := writeRow(f, sheet, 1, toAny(headers)); err != nil {
		return err
	}

	for i, r := range rows {
		cells := []any{r.Country, r.Year}
		for _, name := range metrics.MetricNames {
			if cell, ok := r.Metrics[name]; ok {
				cells = append(cells,
					cellValue(cell.Mean), cellValue(cell.Median),
					cellValue(cell.WeightedMean), cellValue(cell.StdDev), cell.NFirms)
			} else {
				cells = append(cells, nil, nil, nil, nil, nil)
			}
		}
		cells = append(cells, cellValue(r.MacroValue), cellValue(r.Gini), cellValue(r.GDPPerCapita))
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkbookWriter) writeModelSheet(f *excelize.File, summaries []CountrySummary) error {
	const sheet = "Models"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headers := []any{"Country", "Metric", "Years", "LastYear", "TrendR2",
		"Order", "Sigma2", "AIC", "BIC", "LjungBoxQ", "LjungBoxP"}
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}

	for i, s := range summaries {
		cells := []any{s.Country, s.Metric, s.NYears, s.LastYear, cellValue(s.TrendRSquared)}
		if s.Model != nil {
			m := s.Model
			cells = append(cells, m.Order.String(), cellValue(m.Sigma2),
				cellValue(m.AIC), cellValue(m.BIC),
				cellValue(m.LjungBoxQ), cellValue(m.LjungBoxP))
		} else {
			cells = append(cells, "none", nil, nil, nil, nil, nil)
		}
		if err := writeRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []any) error {
	for col, v := range cells {
		if v == nil {
			continue
		}
		name, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := f.SetCellValue(sheet, name, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", name, err)
		}
	}
	return nil
}

// cellValue maps NaN to nil so Excel shows an empty cell.
func cellValue(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
