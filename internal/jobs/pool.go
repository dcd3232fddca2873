package jobs

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultPoolSize caps concurrent report retrievals; each holds a browser
// open for the duration of the run.
const DefaultPoolSize = 3

// Pool bounds the number of concurrently executing jobs. Submissions beyond
// the pool size queue in FIFO order on the semaphore instead of blocking the
// submitter. The pool lives for the whole process; there is no shutdown.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool with the given number of execution slots. Sizes
// below one fall back to DefaultPoolSize.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultPoolSize
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Submit schedules fn to run on a free slot and returns immediately.
func (p *Pool) Submit(fn func()) {
	go func() {
		// Background context: queued work is never abandoned.
		if err := p.sem.Acquire(context.Background(), 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		fn()
	}()
}
