package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/report-retriever/internal/steps"
)

func newTestRunner() (*Runner, *Store) {
	store := NewStore(steps.Catalog())
	return NewRunner(store, NewPool(2)), store
}

func TestRunner_SuccessfulJob(t *testing.T) {
	runner, store := newTestRunner()

	task := func(ctx context.Context, report StepReporter) (*Result, error) {
		for id := 1; id <= steps.Count(); id++ {
			report(id, StepActive)
			report(id, StepDone)
		}
		return &Result{FileName: "report.xls", FilePath: "/tmp/report.xls"}, nil
	}

	id := runner.Start(task)

	require.Eventually(t, func() bool {
		rec, ok := store.Get(id)
		return ok && rec.Done
	}, time.Second, 5*time.Millisecond)

	rec, ok := store.Get(id)
	require.True(t, ok)
	assert.True(t, rec.ResultReady)
	assert.Empty(t, rec.Error)
	assert.Equal(t, 100, rec.Percent)
	assert.Equal(t, steps.Count(), rec.CurrentStepID)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "report.xls", rec.Result.FileName)
	for _, step := range rec.Steps {
		assert.Equal(t, StepDone, step.State)
	}
}

func TestRunner_FailureAttributedToActiveStep(t *testing.T) {
	runner, store := newTestRunner()

	task := func(ctx context.Context, report StepReporter) (*Result, error) {
		for id := 1; id <= 4; id++ {
			report(id, StepActive)
			report(id, StepDone)
		}
		report(5, StepActive)
		return nil, errors.New("network error")
	}

	id := runner.Start(task)

	require.Eventually(t, func() bool {
		rec, ok := store.Get(id)
		return ok && rec.Done
	}, time.Second, 5*time.Millisecond)

	rec, _ := store.Get(id)
	assert.False(t, rec.ResultReady)
	assert.Equal(t, "Report retrieval failed: network error", rec.Error)
	assert.Nil(t, rec.Result)

	for _, step := range rec.Steps {
		switch {
		case step.ID < 5:
			assert.Equal(t, StepDone, step.State)
		case step.ID == 5:
			assert.Equal(t, StepError, step.State)
		default:
			assert.Equal(t, StepPending, step.State)
		}
	}
}

func TestRunner_FailureBeforeAnyStepActivates(t *testing.T) {
	runner, store := newTestRunner()

	task := func(ctx context.Context, report StepReporter) (*Result, error) {
		return nil, errors.New("browser missing")
	}

	id := runner.Start(task)

	require.Eventually(t, func() bool {
		rec, ok := store.Get(id)
		return ok && rec.Done
	}, time.Second, 5*time.Millisecond)

	rec, _ := store.Get(id)
	// CurrentStepID starts at 1, so the fallback marks the first step.
	assert.Equal(t, StepError, rec.Steps[0].State)
	assert.Equal(t, "Report retrieval failed: browser missing", rec.Error)
}

func TestRunner_PanickingTaskIsCaptured(t *testing.T) {
	runner, store := newTestRunner()

	task := func(ctx context.Context, report StepReporter) (*Result, error) {
		report(1, StepActive)
		panic("selector vanished")
	}

	id := runner.Start(task)

	require.Eventually(t, func() bool {
		rec, ok := store.Get(id)
		return ok && rec.Done
	}, time.Second, 5*time.Millisecond)

	rec, _ := store.Get(id)
	assert.False(t, rec.ResultReady)
	assert.Equal(t, "Report retrieval failed: selector vanished", rec.Error)
	assert.Equal(t, StepError, rec.Steps[0].State)
}

func TestRunner_IgnoresOutOfRangeStepIDs(t *testing.T) {
	runner, store := newTestRunner()

	task := func(ctx context.Context, report StepReporter) (*Result, error) {
		report(0, StepActive)
		report(steps.Count()+10, StepActive)
		report(1, StepDone)
		return &Result{FileName: "r.xls", FilePath: "/tmp/r.xls"}, nil
	}

	id := runner.Start(task)

	require.Eventually(t, func() bool {
		rec, ok := store.Get(id)
		return ok && rec.Done
	}, time.Second, 5*time.Millisecond)

	rec, _ := store.Get(id)
	assert.True(t, rec.ResultReady)
}

func TestRunner_ObserverSeesEveryTransition(t *testing.T) {
	runner, store := newTestRunner()

	var mu sync.Mutex
	var seen []int

	task := func(ctx context.Context, report StepReporter) (*Result, error) {
		report(1, StepActive)
		report(1, StepDone)
		report(2, StepActive)
		return nil, errors.New("stopped")
	}

	id := runner.StartObserved(task, func(stepID int, state StepState) {
		mu.Lock()
		seen = append(seen, stepID)
		mu.Unlock()
	})

	require.Eventually(t, func() bool {
		rec, ok := store.Get(id)
		return ok && rec.Done
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 1, 2}, seen)
}

func TestRunner_StartReturnsImmediately(t *testing.T) {
	runner, _ := newTestRunner()

	release := make(chan struct{})
	task := func(ctx context.Context, report StepReporter) (*Result, error) {
		<-release
		return &Result{}, nil
	}

	start := time.Now()
	runner.Start(task)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	close(release)
}
