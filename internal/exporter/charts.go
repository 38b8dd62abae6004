package exporter

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"firmpulse/internal/arma"
	"firmpulse/internal/config"
	"firmpulse/internal/decompose"
)

// ChartWriter renders analysis series as PNG charts using gonum/plot.
type ChartWriter struct {
	paths config.PathsConfig
}

// NewChartWriter creates a new chart writer.
func NewChartWriter(paths config.PathsConfig) *ChartWriter {
	return &ChartWriter{paths: paths}
}

var (
	colorObserved = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	colorTrend    = color.RGBA{R: 0, G: 100, B: 0, A: 255}
	colorAdjusted = color.RGBA{R: 34, G: 139, B: 34, A: 255}
	colorForecast = color.RGBA{R: 178, G: 34, B: 34, A: 255}
	colorBand     = color.RGBA{R: 178, G: 34, B: 34, A: 60}
)

const (
	chartWidth  = 8 * vg.Inch
	chartHeight = 5 * vg.Inch
)

// WriteSeriesChart plots a country's observed metric series over years.
func (w *ChartWriter) WriteSeriesChart(country, metric string, years []int, values []float64) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s by year", country, metric)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = metric

	line, err := plotter.NewLine(seriesXYs(years, values))
	if err != nil {
		return "", fmt.Errorf("failed to build series line: %w", err)
	}
	line.Color = colorObserved
	p.Add(line)
	p.Legend.Add("observed", line)

	return w.save(p, fmt.Sprintf("series_%s_%s.png", sanitizeName(country), sanitizeName(metric)))
}

// WriteDecompositionChart plots observed values against the fitted trend
// and the seasonally adjusted series.
func (w *ChartWriter) WriteDecompositionChart(country, metric string, years []int, observed []float64, result *decompose.Result) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s decomposition", country, metric)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = metric

	obs, err := plotter.NewLine(seriesXYs(years, observed))
	if err != nil {
		return "", fmt.Errorf("failed to build observed line: %w", err)
	}
	obs.Color = colorObserved

	trend, err := plotter.NewLine(seriesXYs(years, result.Trend))
	if err != nil {
		return "", fmt.Errorf("failed to build trend line: %w", err)
	}
	trend.Color = colorTrend
	trend.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	adjusted, err := plotter.NewLine(seriesXYs(years, result.SeasonallyAdjust))
	if err != nil {
		return "", fmt.Errorf("failed to build adjusted line: %w", err)
	}
	adjusted.Color = colorAdjusted

	p.Add(obs, trend, adjusted)
	p.Legend.Add("observed", obs)
	p.Legend.Add("trend", trend)
	p.Legend.Add("seasonally adjusted", adjusted)
	p.Legend.Top = true

	return w.save(p, fmt.Sprintf("decomposition_%s_%s.png", sanitizeName(country), sanitizeName(metric)))
}

// WriteForecastChart plots the observed series, the forecast path, and the
// shaded 95% band.
func (w *ChartWriter) WriteForecastChart(country, metric string, years []int, observed []float64, lastYear int, points []arma.ForecastPoint) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: %s forecast", country, metric)
	p.X.Label.Text = "Year"
	p.Y.Label.Text = metric

	obs, err := plotter.NewLine(seriesXYs(years, observed))
	if err != nil {
		return "", fmt.Errorf("failed to build observed line: %w", err)
	}
	obs.Color = colorObserved

	fc := make(plotter.XYs, len(points))
	band := make(plotter.XYs, 0, 2*len(points))
	for i, pt := range points {
		fc[i].X = float64(lastYear + pt.Step)
		fc[i].Y = pt.Value
		band = append(band, plotter.XY{X: float64(lastYear + pt.Step), Y: pt.Upper95})
	}
	for i := len(points) - 1; i >= 0; i-- {
		band = append(band, plotter.XY{X: float64(lastYear + points[i].Step), Y: points[i].Lower95})
	}

	poly, err := plotter.NewPolygon(band)
	if err != nil {
		return "", fmt.Errorf("failed to build forecast band: %w", err)
	}
	poly.Color = colorBand
	poly.LineStyle.Width = 0

	fcLine, err := plotter.NewLine(fc)
	if err != nil {
		return "", fmt.Errorf("failed to build forecast line: %w", err)
	}
	fcLine.Color = colorForecast
	fcLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(poly, obs, fcLine)
	p.Legend.Add("observed", obs)
	p.Legend.Add("forecast", fcLine)
	p.Legend.Top = true

	return w.save(p, fmt.Sprintf("forecast_%s_%s.png", sanitizeName(country), sanitizeName(metric)))
}

func (w *ChartWriter) save(p *plot.Plot, name string) (string, error) {
	fullPath := filepath.Join(w.paths.ChartsDir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create charts directory: %w", err)
	}
	if err := p.Save(chartWidth, chartHeight, fullPath); err != nil {
		return "", fmt.Errorf("failed to save chart: %w", err)
	}
	return fullPath, nil
}

// seriesXYs converts a year-indexed series to plotter points, skipping
// missing values so lines do not collapse to zero.
func seriesXYs(years []int, values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(years[i]), Y: v})
	}
	return pts
}
