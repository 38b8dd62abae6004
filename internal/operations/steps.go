package operations

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/arma"
	"firmpulse/internal/config"
	"firmpulse/internal/dataset"
	"firmpulse/internal/decompose"
	"firmpulse/internal/exporter"
	"firmpulse/internal/fetch"
	"firmpulse/internal/metrics"
	"firmpulse/internal/stats"
)

// Step IDs in pipeline order.
const (
	StepIDFetch     = "fetch"
	StepIDLoad      = "load"
	StepIDMetrics   = "metrics"
	StepIDAggregate = "aggregate"
	StepIDModel     = "model"
	StepIDReport    = "report"
)

const (
	sourceFirms      = "firm_financials"
	sourceMacro      = "weo_macro"
	sourceInequality = "inequality"
)

// DefaultSteps builds the full pipeline in execution order.
func DefaultSteps(cfg *config.Config, logger *slog.Logger) []Step {
	return []Step{
		NewFetchStep(cfg, logger),
		NewLoadStep(cfg, logger),
		NewMetricsStep(cfg, logger),
		NewAggregateStep(cfg, logger),
		NewModelStep(cfg, logger),
		NewReportStep(cfg, logger),
	}
}

// FetchStep resolves the three input sources into the cache directory.
type FetchStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewFetchStep(cfg *config.Config, logger *slog.Logger) *FetchStep {
	return &FetchStep{cfg: cfg, logger: logger}
}

func (s *FetchStep) ID() string   { return StepIDFetch }
func (s *FetchStep) Name() string { return "Fetch input datasets" }

func (s *FetchStep) Run(ctx context.Context, state *RunState) error {
	src := s.cfg.Sources
	fetcher := fetch.NewFetcher(s.cfg.Paths.CacheDir, src.FetchTimeout, src.MaxFetchRPS, src.CacheMaxAge, s.logger)

	paths, err := fetcher.FetchAll(ctx, []fetch.Source{
		{Name: sourceFirms, Location: src.FirmFinancials},
		{Name: sourceMacro, Location: src.WEOMacro},
		{Name: sourceInequality, Location: src.Inequality},
	})
	if err != nil {
		return err
	}

	state.Artifacts.InputFiles = paths
	return nil
}

// LoadStep parses the fetched CSV files into typed datasets.
type LoadStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewLoadStep(cfg *config.Config, logger *slog.Logger) *LoadStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoadStep{cfg: cfg, logger: logger}
}

func (s *LoadStep) ID() string   { return StepIDLoad }
func (s *LoadStep) Name() string { return "Parse input datasets" }

func (s *LoadStep) Run(ctx context.Context, state *RunState) error {
	art := state.Artifacts

	firms, err := parseFile(art.InputFiles[sourceFirms], dataset.ParseFirmFinancials)
	if err != nil {
		return fmt.Errorf("parse firm financials: %w", err)
	}
	macro, err := parseFile(art.InputFiles[sourceMacro], func(r io.Reader) ([]dataset.MacroObservation, error) {
		return dataset.ParseWEO(r, s.cfg.Sources.WEOSubject)
	})
	if err != nil {
		return fmt.Errorf("parse WEO macro: %w", err)
	}
	ineq, err := parseFile(art.InputFiles[sourceInequality], dataset.ParseInequality)
	if err != nil {
		return fmt.Errorf("parse inequality: %w", err)
	}

	art.Firms = firms
	art.Macro = macro
	art.Inequality = ineq

	s.logger.InfoContext(ctx, "parsed input datasets",
		slog.Int("firm_rows", len(firms)),
		slog.Int("macro_rows", len(macro)),
		slog.Int("inequality_rows", len(ineq)))
	return nil
}

func parseFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return parse(f)
}

// MetricsStep builds the winsorized firm-year metric panel.
type MetricsStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewMetricsStep(cfg *config.Config, logger *slog.Logger) *MetricsStep {
	return &MetricsStep{cfg: cfg, logger: logger}
}

func (s *MetricsStep) ID() string   { return StepIDMetrics }
func (s *MetricsStep) Name() string { return "Construct firm metrics" }

func (s *MetricsStep) Run(ctx context.Context, state *RunState) error {
	bounds := metrics.WinsorizationBounds{
		Lower: s.cfg.Analysis.WinsorLower,
		Upper: s.cfg.Analysis.WinsorUpper,
	}
	builder, err := metrics.NewBuilder(bounds, s.logger)
	if err != nil {
		return err
	}

	panel, err := builder.Build(ctx, state.Artifacts.Firms)
	if err != nil {
		return err
	}
	state.Artifacts.Panel = panel
	return nil
}

// AggregateStep collapses the panel to country-year cells and merges the
// macro and inequality covariates.
type AggregateStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewAggregateStep(cfg *config.Config, logger *slog.Logger) *AggregateStep {
	return &AggregateStep{cfg: cfg, logger: logger}
}

func (s *AggregateStep) ID() string   { return StepIDAggregate }
func (s *AggregateStep) Name() string { return "Aggregate and merge" }

func (s *AggregateStep) Run(ctx context.Context, state *RunState) error {
	art := state.Artifacts

	cells, err := aggregate.NewCollapser(s.cfg.Analysis.MinFirmsPerCell, s.logger).Collapse(ctx, art.Panel)
	if err != nil {
		return err
	}

	rows, err := aggregate.MergeAnalysis(ctx, s.logger, cells, art.Macro, art.Inequality)
	if err != nil {
		return err
	}

	art.Cells = cells
	art.AnalysisRows = rows
	return nil
}

// ModelStep decomposes each country's metric series and fits ARMA models
// with forecasts. Series too short to model are skipped, not fatal.
type ModelStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewModelStep(cfg *config.Config, logger *slog.Logger) *ModelStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelStep{cfg: cfg, logger: logger}
}

func (s *ModelStep) ID() string   { return StepIDModel }
func (s *ModelStep) Name() string { return "Decompose and model series" }

func (s *ModelStep) Run(ctx context.Context, state *RunState) error {
	art := state.Artifacts
	analysis := s.cfg.Analysis

	countries := countryList(art.AnalysisRows)
	if len(countries) == 0 {
		return fmt.Errorf("no countries in analysis dataset")
	}

	results := make([]CountryResult, 0, len(countries))
	modeled := 0
	for _, country := range countries {
		years, values := aggregate.Series(art.AnalysisRows, country, analysis.ModelMetric)
		result := CountryResult{
			Country: country,
			Metric:  analysis.ModelMetric,
			Years:   years,
			Values:  values,
		}
		if len(years) > 0 {
			result.LastYear = years[len(years)-1]
		}

		dec, err := decompose.Decompose(ctx, s.logger, values, decompose.Options{
			TrendDegree: analysis.TrendDegree,
			Period:      analysis.SeasonalPeriod,
		})
		if err != nil {
			result.SkipReason = err.Error()
			results = append(results, result)
			s.logger.WarnContext(ctx, "decomposition skipped",
				slog.String("country", country),
				slog.String("reason", err.Error()))
			continue
		}
		result.Decomposition = dec

		// ARMA needs a contiguous sample: leading and trailing gaps are
		// trimmed, an interior gap skips the country. Compacting the gap
		// would turn non-adjacent years into adjacent lags.
		series, contiguous := stats.TrimNaN(dec.SeasonallyAdjust)
		if !contiguous {
			result.SkipReason = "interior gaps in country series"
			results = append(results, result)
			s.logger.WarnContext(ctx, "ARMA modeling skipped",
				slog.String("country", country),
				slog.String("reason", result.SkipReason))
			continue
		}

		// Trailing gaps move the forecast origin back to the last
		// observed year.
		last := len(dec.SeasonallyAdjust) - 1
		for last >= 0 && math.IsNaN(dec.SeasonallyAdjust[last]) {
			last--
		}
		if last >= 0 {
			result.LastYear = years[last]
		}

		sel, err := arma.Select(ctx, s.logger, series, analysis.MaxAR, analysis.MaxMA,
			arma.ParseCriterion(analysis.Criterion))
		if err != nil {
			result.SkipReason = err.Error()
			results = append(results, result)
			s.logger.WarnContext(ctx, "ARMA modeling skipped",
				slog.String("country", country),
				slog.String("reason", err.Error()))
			continue
		}
		result.Selection = sel

		fc, err := sel.Best.Forecast(analysis.Horizon)
		if err != nil {
			return fmt.Errorf("forecast %s: %w", country, err)
		}
		result.Forecast = fc

		modeled++
		results = append(results, result)
	}

	if modeled == 0 {
		return fmt.Errorf("no country series could be modeled")
	}

	art.CountryResults = results
	s.logger.InfoContext(ctx, "modeled country series",
		slog.Int("countries", len(countries)),
		slog.Int("modeled", modeled))
	return nil
}

func countryList(rows []aggregate.AnalysisRow) []string {
	var countries []string
	seen := make(map[string]bool)
	for _, r := range rows {
		if !seen[r.Country] {
			seen[r.Country] = true
			countries = append(countries, r.Country)
		}
	}
	return countries
}

// ReportStep writes every output: CSV panels, per-country decomposition
// and forecast files, the RTF and workbook summaries, and the charts.
type ReportStep struct {
	cfg    *config.Config
	logger *slog.Logger
}

func NewReportStep(cfg *config.Config, logger *slog.Logger) *ReportStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportStep{cfg: cfg, logger: logger}
}

func (s *ReportStep) ID() string   { return StepIDReport }
func (s *ReportStep) Name() string { return "Write reports" }

func (s *ReportStep) Run(ctx context.Context, state *RunState) error {
	art := state.Artifacts
	paths := s.cfg.Paths

	csvWriter := exporter.NewCSVWriter(paths)
	chartWriter := exporter.NewChartWriter(paths)

	var written []string
	record := func(path string, err error) error {
		if err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := record(csvWriter.WriteFirmMetrics(art.Panel)); err != nil {
		return err
	}
	if err := record(csvWriter.WriteAnalysisRows(art.AnalysisRows)); err != nil {
		return err
	}

	summaries := make([]exporter.CountrySummary, 0, len(art.CountryResults))
	for _, r := range art.CountryResults {
		summary := exporter.CountrySummary{
			Country:  r.Country,
			Metric:   r.Metric,
			NYears:   len(r.Years),
			LastYear: r.LastYear,
		}

		if r.Decomposition != nil {
			summary.TrendRSquared = r.Decomposition.RSquared
			if err := record(csvWriter.WriteDecomposition(r.Country, r.Years, r.Values, r.Decomposition)); err != nil {
				return err
			}
			if err := record(chartWriter.WriteDecompositionChart(r.Country, r.Metric, r.Years, r.Values, r.Decomposition)); err != nil {
				return err
			}
		} else {
			if err := record(chartWriter.WriteSeriesChart(r.Country, r.Metric, r.Years, r.Values)); err != nil {
				return err
			}
		}

		if r.Selection != nil {
			summary.Model = r.Selection.Best
			summary.ForecastPoints = r.Forecast
			if err := record(csvWriter.WriteForecast(r.Country, r.LastYear, r.Forecast)); err != nil {
				return err
			}
			if err := record(chartWriter.WriteForecastChart(r.Country, r.Metric, r.Years, r.Values, r.LastYear, r.Forecast)); err != nil {
				return err
			}
		}

		summaries = append(summaries, summary)
	}

	if err := record(exporter.NewRTFWriter(paths).WriteSummary(art.AnalysisRows, summaries)); err != nil {
		return err
	}
	if err := record(exporter.NewWorkbookWriter(paths).WriteSummary(art.AnalysisRows, summaries)); err != nil {
		return err
	}

	art.ReportFiles = written
	s.logger.InfoContext(ctx, "reports written",
		slog.Int("files", len(written)),
		slog.String("reports_dir", paths.ReportsDir))
	return nil
}
