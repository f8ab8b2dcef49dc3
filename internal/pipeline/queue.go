// Package pipeline carries parse jobs from the mail producer to the single
// sequential consumer. The queue is in-memory and unbounded; durability
// comes from the alerts table, not from the queue itself.
package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Job identifies one alert waiting for parsing.
type Job struct {
	AlertID           uuid.UUID
	ExternalMessageID string
}

// Queue is an unbounded FIFO of parse jobs. Enqueue never blocks.
type Queue struct {
	mu     sync.Mutex
	jobs   []Job
	signal chan struct{}
	closed bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a job. Enqueue on a closed queue is a silent drop.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue blocks until a job is available, the context is done, or the
// queue is closed and drained. ok is false only when no job was returned.
func (q *Queue) Dequeue(ctx context.Context) (Job, bool) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, true
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return Job{}, false
		}

		select {
		case <-ctx.Done():
			return Job{}, false
		case <-q.signal:
		}
	}
}

// Len reports the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close stops accepting jobs and wakes the consumer so it can drain and
// exit. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}
