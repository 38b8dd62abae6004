package operations

import (
	"encoding/json"
	"sync"
	"time"

	"firmpulse/internal/aggregate"
	"firmpulse/internal/arma"
	"firmpulse/internal/dataset"
	"firmpulse/internal/decompose"
	"firmpulse/internal/jsonutil"
	"firmpulse/internal/metrics"
)

// RunStatus represents the overall pipeline run status.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// CountryResult bundles the per-country time-series modeling outputs.
type CountryResult struct {
	Country  string                `json:"country"`
	Metric   string                `json:"metric"`
	Years    []int                 `json:"years"`
	Values   []float64             `json:"values"`
	LastYear int                   `json:"last_year"`

	Decomposition *decompose.Result     `json:"decomposition,omitempty"`
	Selection     *arma.SelectionResult `json:"selection,omitempty"`
	Forecast      []arma.ForecastPoint  `json:"forecast,omitempty"`

	// SkipReason is set when the series was too short or no model fitted.
	SkipReason string `json:"skip_reason,omitempty"`
}

// MarshalJSON encodes missing observations in Values as null; the series
// carries NaN for country-years whose metric cell was dropped.
func (r CountryResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Country       string                `json:"country"`
		Metric        string                `json:"metric"`
		Years         []int                 `json:"years"`
		Values        []*float64            `json:"values"`
		LastYear      int                   `json:"last_year"`
		Decomposition *decompose.Result     `json:"decomposition,omitempty"`
		Selection     *arma.SelectionResult `json:"selection,omitempty"`
		Forecast      []arma.ForecastPoint  `json:"forecast,omitempty"`
		SkipReason    string                `json:"skip_reason,omitempty"`
	}{
		Country:       r.Country,
		Metric:        r.Metric,
		Years:         r.Years,
		Values:        jsonutil.Floats(r.Values),
		LastYear:      r.LastYear,
		Decomposition: r.Decomposition,
		Selection:     r.Selection,
		Forecast:      r.Forecast,
		SkipReason:    r.SkipReason,
	})
}

// Artifacts carries the data products passed between pipeline steps.
type Artifacts struct {
	// Fetched input file paths keyed by source name.
	InputFiles map[string]string

	Firms      []dataset.FirmYear
	Macro      []dataset.MacroObservation
	Inequality []dataset.Inequality

	Panel        []metrics.FirmMetrics
	Cells        []aggregate.Cell
	AnalysisRows []aggregate.AnalysisRow

	CountryResults []CountryResult

	// ReportFiles lists every file the report step wrote.
	ReportFiles []string
}

// RunState represents the complete state of one pipeline run.
type RunState struct {
	mu sync.RWMutex

	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Error     string     `json:"error,omitempty"`

	Steps     map[string]*StepState `json:"steps"`
	stepOrder []string

	Artifacts *Artifacts `json:"-"`
}

// NewRunState creates a new run state.
func NewRunState(id string) *RunState {
	return &RunState{
		ID:        id,
		Status:    RunStatusPending,
		StartTime: time.Now(),
		Steps:     make(map[string]*StepState),
		Artifacts: &Artifacts{InputFiles: make(map[string]string)},
	}
}

// Start marks the run as running.
func (r *RunState) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunStatusRunning
	r.StartTime = time.Now()
}

// Complete marks the run as completed.
func (r *RunState) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCompleted
}

// Fail marks the run as failed.
func (r *RunState) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// Cancel marks the run as cancelled.
func (r *RunState) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.EndTime = &now
	r.Status = RunStatusCancelled
}

// CurrentStatus returns the run status under the read lock.
func (r *RunState) CurrentStatus() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Status
}

// ErrorMessage returns the run error under the read lock.
func (r *RunState) ErrorMessage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Error
}

// AddStep registers a step state, preserving registration order.
func (r *RunState) AddStep(state *StepState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.Steps[state.ID]; !exists {
		r.stepOrder = append(r.stepOrder, state.ID)
	}
	r.Steps[state.ID] = state
}

// GetStep returns the state of a specific step.
func (r *RunState) GetStep(stepID string) *StepState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.Steps[stepID]
}

// StepSnapshots returns immutable step states in registration order.
func (r *RunState) StepSnapshots() []StepSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]StepSnapshot, 0, len(r.stepOrder))
	for _, id := range r.stepOrder {
		out = append(out, r.Steps[id].snapshot())
	}
	return out
}

// Duration returns the duration of the run.
func (r *RunState) Duration() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.EndTime != nil {
		return r.EndTime.Sub(r.StartTime)
	}
	return time.Since(r.StartTime)
}

// HasFailures returns true if any step has failed.
func (r *RunState) HasFailures() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, step := range r.Steps {
		if step.CurrentStatus() == StepStatusFailed {
			return true
		}
	}
	return false
}
