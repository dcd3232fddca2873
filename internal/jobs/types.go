// Package jobs tracks the lifecycle and step progress of asynchronous report
// retrieval jobs. A job executes a fixed, ordered sequence of steps on a
// worker; polling clients observe its live state through snapshots.
package jobs

import (
	"github.com/google/uuid"

	"github.com/jonathan/report-retriever/internal/steps"
)

// StepState is the state of a single step within one job.
type StepState string

const (
	StepPending StepState = "pending"
	StepActive  StepState = "active"
	StepDone    StepState = "done"
	StepError   StepState = "error"
)

// StepStatus is a per-job copy of a catalog step annotated with its state.
type StepStatus struct {
	ID    int       `json:"id"`
	Label string    `json:"label"`
	State StepState `json:"state"`
}

// Result references the artifact produced by a successful job.
type Result struct {
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}

// Record is the full state of one job. At most one step is active at any
// instant; Percent is derived from step state and never set by callers.
// Once Done is true the record is terminal.
type Record struct {
	ID            uuid.UUID    `json:"job_id"`
	Steps         []StepStatus `json:"steps"`
	CurrentStepID int          `json:"current_step_id"`
	Percent       int          `json:"percent"`
	Done          bool         `json:"done"`
	ResultReady   bool         `json:"result_ready"`
	Error         string       `json:"error,omitempty"`
	Result        *Result      `json:"result,omitempty"`
}

// newRecord builds a fresh record for the given step catalog: all steps
// pending, percent zero.
func newRecord(id uuid.UUID, catalog []steps.Definition) *Record {
	statuses := make([]StepStatus, len(catalog))
	for i, def := range catalog {
		statuses[i] = StepStatus{ID: def.ID, Label: def.Label, State: StepPending}
	}
	return &Record{
		ID:            id,
		Steps:         statuses,
		CurrentStepID: 1,
		Percent:       0,
	}
}

// clone returns a deep, independent copy of the record. Mutating the copy
// never affects stored state.
func (r *Record) clone() Record {
	out := *r
	out.Steps = make([]StepStatus, len(r.Steps))
	copy(out.Steps, r.Steps)
	if r.Result != nil {
		result := *r.Result
		out.Result = &result
	}
	return out
}

// StepReporter is the callback through which an executing task announces
// step transitions. Implementations must be safe to call from the task's
// worker goroutine.
type StepReporter func(stepID int, state StepState)
