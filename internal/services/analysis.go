// Package services exposes the pipeline results to the transport layer:
// starting runs, querying run status, and reading the latest completed
// analysis artifacts.
package services

import (
	"context"
	"log/slog"
	"sync"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/errors"
	"firmpulse/internal/operations"
)

// AnalysisService serves analysis results from the most recent completed
// pipeline run and lets callers trigger new runs.
type AnalysisService struct {
	mu      sync.RWMutex
	manager *operations.Manager
	latest  *operations.RunState
	logger  *slog.Logger
}

// NewAnalysisService creates the service around a pipeline manager.
func NewAnalysisService(manager *operations.Manager, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		manager: manager,
		logger:  logger.With(slog.String("component", "analysis_service")),
	}
}

// StartRun launches a pipeline run in the background and returns its ID.
// A successful run becomes the latest result set.
func (s *AnalysisService) StartRun(ctx context.Context) (string, error) {
	runID, err := s.manager.Start(context.WithoutCancel(ctx), func(state *operations.RunState, err error) {
		if err == nil {
			s.SetLatest(state)
		}
	})
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "pipeline run triggered", slog.String("run_id", runID))
	return runID, nil
}

// Run returns the state of a run by ID.
func (s *AnalysisService) Run(ctx context.Context, runID string) (*operations.RunState, error) {
	state, ok := s.manager.GetRun(runID)
	if !ok {
		return nil, errors.NewNotFoundError("run " + runID)
	}
	return state, nil
}

// Runs lists all known run IDs.
func (s *AnalysisService) Runs(ctx context.Context) []string {
	return s.manager.Runs()
}

// SetLatest records a completed run as the source of analysis results.
// The pipeline command and the run poller call this after completion.
func (s *AnalysisService) SetLatest(state *operations.RunState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = state
}

func (s *AnalysisService) artifacts() (*operations.Artifacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil || s.latest.Artifacts == nil {
		return nil, errors.NewNotFoundError("completed analysis run")
	}
	return s.latest.Artifacts, nil
}

// Countries lists the countries present in the latest analysis dataset.
func (s *AnalysisService) Countries(ctx context.Context) ([]string, error) {
	art, err := s.artifacts()
	if err != nil {
		return nil, err
	}

	var countries []string
	seen := make(map[string]bool)
	for _, row := range art.AnalysisRows {
		if !seen[row.Country] {
			seen[row.Country] = true
			countries = append(countries, row.Country)
		}
	}
	return countries, nil
}

// CountryRows returns the country-year analysis rows for one country.
func (s *AnalysisService) CountryRows(ctx context.Context, country string) ([]aggregate.AnalysisRow, error) {
	art, err := s.artifacts()
	if err != nil {
		return nil, err
	}

	var rows []aggregate.AnalysisRow
	for _, row := range art.AnalysisRows {
		if row.Country == country {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, errors.NewNotFoundError("country " + country)
	}
	return rows, nil
}

// CountryResult returns the decomposition and model results for one country.
func (s *AnalysisService) CountryResult(ctx context.Context, country string) (*operations.CountryResult, error) {
	art, err := s.artifacts()
	if err != nil {
		return nil, err
	}

	for i := range art.CountryResults {
		if art.CountryResults[i].Country == country {
			return &art.CountryResults[i], nil
		}
	}
	return nil, errors.NewNotFoundError("model results for country " + country)
}

// ReportFiles lists the report files the latest run wrote.
func (s *AnalysisService) ReportFiles(ctx context.Context) ([]string, error) {
	art, err := s.artifacts()
	if err != nil {
		return nil, err
	}
	return art.ReportFiles, nil
}
