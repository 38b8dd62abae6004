package operations

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"firmpulse/internal/infrastructure"
)

// Manager executes the analysis pipeline steps in order and tracks run
// state. Runs execute one at a time per manager.
type Manager struct {
	mu          sync.RWMutex
	steps       []Step
	runs        map[string]*RunState
	broadcaster Broadcaster
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewManager creates a pipeline manager. A nil broadcaster disables event
// publication.
func NewManager(steps []Step, broadcaster Broadcaster, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		steps:       steps,
		runs:        make(map[string]*RunState),
		broadcaster: broadcaster,
		logger:      logger,
		tracer:      otel.Tracer("firmpulse/operations"),
	}
}

// Run executes every step sequentially. The first step failure fails the
// run; remaining steps are skipped. The returned state is also retrievable
// by ID afterwards.
func (m *Manager) Run(ctx context.Context) (*RunState, error) {
	state, err := m.prepare()
	if err != nil {
		return nil, err
	}
	return state, m.execute(ctx, state)
}

// Start launches a run in the background and returns its ID immediately.
// Progress flows through the broadcaster; the final state is retrievable
// with GetRun. onDone, if non-nil, is invoked when the run finishes.
func (m *Manager) Start(ctx context.Context, onDone func(*RunState, error)) (string, error) {
	state, err := m.prepare()
	if err != nil {
		return "", err
	}
	go func() {
		err := m.execute(ctx, state)
		if onDone != nil {
			onDone(state, err)
		}
	}()
	return state.ID, nil
}

func (m *Manager) prepare() (*RunState, error) {
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("no pipeline steps configured")
	}

	state := NewRunState(uuid.New().String())
	for _, step := range m.steps {
		state.AddStep(NewStepState(step.ID(), step.Name()))
	}

	m.mu.Lock()
	m.runs[state.ID] = state
	m.mu.Unlock()

	return state, nil
}

func (m *Manager) execute(ctx context.Context, state *RunState) error {
	runID := state.ID
	ctx = infrastructure.WithTraceID(ctx, runID)
	logger := m.logger.With(slog.String("run_id", runID))

	ctx, span := m.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	state.Start()
	m.publish(state, "")
	logger.InfoContext(ctx, "pipeline run started", slog.Int("steps", len(m.steps)))

	var runErr error
	for _, step := range m.steps {
		stepState := state.GetStep(step.ID())

		if runErr != nil {
			stepState.Skip("previous step failed")
			m.publish(state, step.ID())
			continue
		}
		if err := ctx.Err(); err != nil {
			stepState.Skip("run cancelled")
			m.publish(state, step.ID())
			runErr = err
			continue
		}

		runErr = m.runStep(ctx, logger, step, stepState, state)
	}

	if runErr != nil {
		if ctx.Err() != nil {
			state.Cancel()
		} else {
			state.Fail(runErr)
		}
		span.SetStatus(codes.Error, runErr.Error())
		m.publish(state, "")
		logger.ErrorContext(ctx, "pipeline run failed",
			slog.String("error", runErr.Error()),
			slog.Duration("duration", state.Duration()))
		return runErr
	}

	state.Complete()
	m.publish(state, "")
	logger.InfoContext(ctx, "pipeline run completed",
		slog.Duration("duration", state.Duration()))
	return nil
}

func (m *Manager) runStep(ctx context.Context, logger *slog.Logger, step Step, stepState *StepState, state *RunState) error {
	ctx, span := m.tracer.Start(ctx, "pipeline.step",
		trace.WithAttributes(attribute.String("step.id", step.ID())))
	defer span.End()

	stepState.Start()
	m.publish(state, step.ID())
	logger.InfoContext(ctx, "step started", slog.String("step", step.ID()))

	if err := step.Run(ctx, state); err != nil {
		stepState.Fail(err)
		m.publish(state, step.ID())
		span.SetStatus(codes.Error, err.Error())
		logger.ErrorContext(ctx, "step failed",
			slog.String("step", step.ID()),
			slog.String("error", err.Error()),
			slog.Duration("duration", stepState.Duration()))
		return fmt.Errorf("step %s: %w", step.ID(), err)
	}

	stepState.Complete("")
	m.publish(state, step.ID())
	logger.InfoContext(ctx, "step completed",
		slog.String("step", step.ID()),
		slog.Duration("duration", stepState.Duration()))
	return nil
}

// GetRun returns the state of a run by ID.
func (m *Manager) GetRun(runID string) (*RunState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.runs[runID]
	return state, ok
}

// Runs returns the IDs of all known runs.
func (m *Manager) Runs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.runs))
	for id := range m.runs {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) publish(state *RunState, currentStep string) {
	if m.broadcaster == nil {
		return
	}
	m.broadcaster.BroadcastRunEvent(snapshotEvent(state, currentStep))
}
