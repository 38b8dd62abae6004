package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "firmpulse/internal/errors"
	"firmpulse/internal/aggregate"
	"firmpulse/internal/operations"
)

type stubStep struct {
	err error
}

func (s *stubStep) ID() string   { return "stub" }
func (s *stubStep) Name() string { return "Stub" }
func (s *stubStep) Run(ctx context.Context, state *operations.RunState) error {
	if s.err != nil {
		return s.err
	}
	state.Artifacts.AnalysisRows = []aggregate.AnalysisRow{
		{Country: "DEU", Year: 2020, Metrics: map[string]aggregate.Cell{"roic": {Mean: 0.1}}},
	}
	state.Artifacts.CountryResults = []operations.CountryResult{
		{Country: "DEU", Metric: "roic"},
	}
	return nil
}

func newTestService(step operations.Step) *AnalysisService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := operations.NewManager([]operations.Step{step}, nil, logger)
	return NewAnalysisService(manager, logger)
}

func TestAnalysisService_NoLatestRun(t *testing.T) {
	svc := newTestService(&stubStep{})

	_, err := svc.Countries(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))
}

func TestAnalysisService_StartRunPromotesLatest(t *testing.T) {
	svc := newTestService(&stubStep{})

	runID, err := svc.StartRun(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		countries, err := svc.Countries(context.Background())
		return err == nil && len(countries) == 1
	}, 2*time.Second, 10*time.Millisecond)

	state, err := svc.Run(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, operations.RunStatusCompleted, state.CurrentStatus())
}

func TestAnalysisService_CountryLookups(t *testing.T) {
	svc := newTestService(&stubStep{})

	state := operations.NewRunState("r1")
	require.NoError(t, (&stubStep{}).Run(context.Background(), state))
	state.Complete()
	svc.SetLatest(state)

	rows, err := svc.CountryRows(context.Background(), "DEU")
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = svc.CountryRows(context.Background(), "FRA")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotFound))

	result, err := svc.CountryResult(context.Background(), "DEU")
	require.NoError(t, err)
	assert.Equal(t, "roic", result.Metric)
}

func TestAnalysisService_FailedRunNotPromoted(t *testing.T) {
	svc := newTestService(&stubStep{err: assert.AnError})

	runID, err := svc.StartRun(context.Background())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		state, err := svc.Run(context.Background(), runID)
		return err == nil && state.CurrentStatus() == operations.RunStatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	_, err = svc.Countries(context.Background())
	assert.Error(t, err)
}
