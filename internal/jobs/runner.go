package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// failurePrefix wraps task errors into the user-visible record error.
const failurePrefix = "Report retrieval failed: "

// Task executes one report retrieval end to end. It must invoke the reporter
// for each step transition in increasing step order, and either return the
// produced artifact or an error describing the failure. Input payloads are
// captured in the closure; the runner never inspects them.
type Task func(ctx context.Context, report StepReporter) (*Result, error)

// Runner orchestrates job execution: it creates records, submits tasks to
// the worker pool and finalizes records exactly once on success or failure.
type Runner struct {
	store *Store
	pool  *Pool
}

// NewRunner creates a runner backed by the given store and pool.
func NewRunner(store *Store, pool *Pool) *Runner {
	return &Runner{store: store, pool: pool}
}

// Start creates a job record for the task, schedules its execution and
// returns the new job id without waiting. Validation of the task's inputs is
// the caller's responsibility; Start itself never fails.
func (r *Runner) Start(task Task) uuid.UUID {
	return r.StartObserved(task, nil)
}

// StartObserved is Start with an extra observer that is invoked after every
// step transition has been applied to the record. Used for live streaming.
func (r *Runner) StartObserved(task Task, observer StepReporter) uuid.UUID {
	id := r.store.Create()
	r.pool.Submit(func() {
		r.execute(id, task, observer)
	})
	return id
}

// execute runs on a pool worker. Any failure, including a panicking task, is
// captured into the job record; nothing propagates past this boundary.
func (r *Runner) execute(id uuid.UUID, task Task, observer StepReporter) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("job %s: task panicked: %v", id, rec)
			r.finalizeFailure(id, fmt.Errorf("%v", rec))
		}
	}()

	report := func(stepID int, state StepState) {
		if stepID < 1 || stepID > r.store.StepCount() {
			log.Printf("job %s: ignoring transition for unknown step %d", id, stepID)
			return
		}
		r.store.Mutate(id, func(rec *Record) {
			if rec.Done {
				return
			}
			ApplyTransition(rec, stepID, state)
		})
		if observer != nil {
			observer(stepID, state)
		}
	}

	result, err := task(context.Background(), report)
	if err != nil {
		log.Printf("job %s: %v", id, err)
		r.finalizeFailure(id, err)
		return
	}
	r.finalizeSuccess(id, result)
}

// finalizeSuccess marks the job complete with its artifact. All steps are
// closed and percent is forced to exactly 100.
func (r *Runner) finalizeSuccess(id uuid.UUID, result *Result) {
	r.store.Mutate(id, func(rec *Record) {
		if rec.Done {
			return
		}
		for i := range rec.Steps {
			rec.Steps[i].State = StepDone
		}
		rec.Done = true
		rec.ResultReady = true
		rec.Percent = 100
		rec.CurrentStepID = len(rec.Steps)
		rec.Result = result
	})
}

// finalizeFailure marks the job failed, attributing the failure to the step
// that was active. If no step was active (the task failed before activating
// one) the step at CurrentStepID-1 is marked instead; that fallback is a
// best-effort guess, not an exact attribution.
func (r *Runner) finalizeFailure(id uuid.UUID, taskErr error) {
	message := taskErr.Error()
	if message == "" {
		message = "Unexpected automation error."
	}

	r.store.Mutate(id, func(rec *Record) {
		if rec.Done {
			return
		}

		marked := false
		for i := range rec.Steps {
			if rec.Steps[i].State == StepActive {
				rec.Steps[i].State = StepError
				marked = true
				break
			}
		}
		if !marked && len(rec.Steps) > 0 {
			idx := max(rec.CurrentStepID-1, 0)
			idx = min(idx, len(rec.Steps)-1)
			rec.Steps[idx].State = StepError
		}

		rec.Done = true
		rec.Error = failurePrefix + message
	})
}
