package operations

import (
	"time"
)

// RunEvent is a snapshot of a pipeline run sent to subscribers after every
// step transition. This is the only structure published to the frontend.
type RunEvent struct {
	RunID       string         `json:"run_id"`
	Status      RunStatus      `json:"status"`
	CurrentStep string         `json:"current_step,omitempty"`
	Steps       []StepSnapshot `json:"steps"`
	StartedAt   time.Time      `json:"started_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Error       string         `json:"error,omitempty"`
}

// Broadcaster publishes run events to interested listeners. The websocket
// hub implements this; a nil broadcaster disables publication.
type Broadcaster interface {
	BroadcastRunEvent(event RunEvent)
}

// snapshotEvent builds a RunEvent from the current run state.
func snapshotEvent(state *RunState, currentStep string) RunEvent {
	state.mu.RLock()
	defer state.mu.RUnlock()

	steps := make([]StepSnapshot, 0, len(state.stepOrder))
	for _, id := range state.stepOrder {
		steps = append(steps, state.Steps[id].snapshot())
	}

	return RunEvent{
		RunID:       state.ID,
		Status:      state.Status,
		CurrentStep: currentStep,
		Steps:       steps,
		StartedAt:   state.StartTime,
		UpdatedAt:   time.Now(),
		Error:       state.Error,
	}
}
