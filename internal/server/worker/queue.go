// Package worker runs background transcription jobs. A bounded queue feeds
// a single consumer goroutine; job failures are logged, never retried
// automatically, and never crash the process.
package worker

import (
	"context"
	"sync"

	"github.com/openplaud/plaudsync/internal/logging"
)

const defaultQueueSize = 64

// Job identifies one pending transcription.
type Job struct {
	UserID      string
	RecordingID string
}

// JobFunc performs the work for one job.
type JobFunc func(ctx context.Context, job Job) error

// Queue is a bounded FIFO of transcription jobs with one consumer.
type Queue struct {
	jobs   chan Job
	run    JobFunc
	logger logging.Logger

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
	closed  bool
}

func NewQueue(run JobFunc, logger logging.Logger) *Queue {
	return &Queue{
		jobs:   make(chan Job, defaultQueueSize),
		run:    run,
		logger: logger,
	}
}

// Start launches the consumer. The consumer drains remaining jobs after
// Close and exits when the channel is empty or ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-q.jobs:
				if !ok {
					return
				}
				if err := q.run(ctx, job); err != nil {
					q.logger.Error(ctx, "background job failed",
						"user_id", job.UserID, "recording_id", job.RecordingID, "error", err)
				}
			}
		}
	}()
}

// Enqueue adds a job without blocking. It reports false when the queue is
// full or closed; the caller treats that as a skipped enqueue, not an
// error.
func (q *Queue) Enqueue(job Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.jobs <- job:
		return true
	default:
		return false
	}
}

// Close stops accepting jobs and waits for the consumer to finish the
// backlog.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	q.wg.Wait()
}
