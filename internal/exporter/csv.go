package exporter

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/arma"
	"firmpulse/internal/config"
	"firmpulse/internal/decompose"
	"firmpulse/internal/metrics"
)

// CSVWriter provides CSV export functionality for analysis outputs.
type CSVWriter struct {
	paths config.PathsConfig
}

// NewCSVWriter creates a new CSV writer instance.
func NewCSVWriter(paths config.PathsConfig) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	fullPath := w.resolvePath(filePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	// BOM helps Excel recognize UTF-8
	if options.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return fmt.Errorf("failed to write headers: %w", err)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	return writer.Error()
}

// WriteFirmMetrics writes the firm-year metric panel to metrics_firm.csv.
func (w *CSVWriter) WriteFirmMetrics(rows []metrics.FirmMetrics) (string, error) {
	headers := []string{"firm_id", "country", "year", "revenue", "invested_capital"}
	headers = append(headers, metrics.MetricNames...)

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := []string{
			r.FirmID,
			r.Country,
			strconv.Itoa(r.Year),
			formatValue(r.Revenue),
			formatValue(r.InvestedCapital),
		}
		for _, name := range metrics.MetricNames {
			rec = append(rec, formatValue(r.Value(name)))
		}
		records = append(records, rec)
	}

	path := "metrics_firm.csv"
	if err := w.WriteCSV(path, WriteOptions{Headers: headers, Records: records, BOMPrefix: true}); err != nil {
		return "", err
	}
	return w.resolvePath(path), nil
}

// WriteAnalysisRows writes the merged country-year panel to
// analysis_country_year.csv. Per-metric aggregate columns come first,
// followed by the macro and inequality joins.
func (w *CSVWriter) WriteAnalysisRows(rows []aggregate.AnalysisRow) (string, error) {
	headers := []string{"country", "year"}
	for _, name := range metrics.MetricNames {
		headers = append(headers,
			name+"_mean", name+"_median", name+"_wmean", name+"_sd", name+"_n")
	}
	headers = append(headers, "macro_value", "gini", "gdp_per_capita")

	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := []string{r.Country, strconv.Itoa(r.Year)}
		for _, name := range metrics.MetricNames {
			cell, ok := r.Metrics[name]
			if !ok {
				rec = append(rec, "", "", "", "", "")
				continue
			}
			rec = append(rec,
				formatValue(cell.Mean),
				formatValue(cell.Median),
				formatValue(cell.WeightedMean),
				formatValue(cell.StdDev),
				strconv.Itoa(cell.NFirms))
		}
		rec = append(rec,
			formatValue(r.MacroValue),
			formatValue(r.Gini),
			formatValue(r.GDPPerCapita))
		records = append(records, rec)
	}

	path := "analysis_country_year.csv"
	if err := w.WriteCSV(path, WriteOptions{Headers: headers, Records: records, BOMPrefix: true}); err != nil {
		return "", err
	}
	return w.resolvePath(path), nil
}

// WriteDecomposition writes the component series of one country's
// decomposition to decomposition_<country>.csv.
func (w *CSVWriter) WriteDecomposition(country string, years []int, observed []float64, result *decompose.Result) (string, error) {
	headers := []string{"year", "observed", "trend", "seasonal", "irregular", "seasonally_adjusted"}

	records := make([][]string, 0, len(years))
	for i, year := range years {
		records = append(records, []string{
			strconv.Itoa(year),
			formatValue(observed[i]),
			formatValue(result.Trend[i]),
			formatValue(result.Seasonal[i]),
			formatValue(result.Irregular[i]),
			formatValue(result.SeasonallyAdjust[i]),
		})
	}

	path := fmt.Sprintf("decomposition_%s.csv", sanitizeName(country))
	if err := w.WriteCSV(path, WriteOptions{Headers: headers, Records: records, BOMPrefix: true}); err != nil {
		return "", err
	}
	return w.resolvePath(path), nil
}

// WriteForecast writes one country's ARMA forecast with confidence bands
// to forecast_<country>.csv. lastYear is the final observed year; step k
// is labeled lastYear+k.
func (w *CSVWriter) WriteForecast(country string, lastYear int, points []arma.ForecastPoint) (string, error) {
	headers := []string{"year", "step", "forecast", "std_error", "lower_95", "upper_95"}

	records := make([][]string, 0, len(points))
	for _, p := range points {
		records = append(records, []string{
			strconv.Itoa(lastYear + p.Step),
			strconv.Itoa(p.Step),
			formatValue(p.Value),
			formatValue(p.StdError),
			formatValue(p.Lower95),
			formatValue(p.Upper95),
		})
	}

	path := fmt.Sprintf("forecast_%s.csv", sanitizeName(country))
	if err := w.WriteCSV(path, WriteOptions{Headers: headers, Records: records, BOMPrefix: true}); err != nil {
		return "", err
	}
	return w.resolvePath(path), nil
}

// formatValue renders a float for CSV output. Missing values become
// empty cells rather than "NaN" so spreadsheet tools treat them as blank.
func formatValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// resolvePath resolves a report file name against the reports directory.
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) {
		return filePath
	}
	return filepath.Join(w.paths.ReportsDir, filePath)
}
