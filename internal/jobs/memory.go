package jobs

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is the test broker. Delayed jobs are promoted on Dequeue
// once their due time passes.
type MemoryQueue struct {
	mu      sync.Mutex
	ready   []Job
	delayed []delayedJob
	wake    chan struct{}
}

type delayedJob struct {
	job Job
	due time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{wake: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	q.ready = append(q.ready, job)
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *MemoryQueue) EnqueueIn(_ context.Context, job Job, delay time.Duration) error {
	q.mu.Lock()
	q.delayed = append(q.delayed, delayedJob{job: job, due: time.Now().Add(delay)})
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	for {
		if job, ok := q.pop(); ok {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return Job{}, ctx.Err()
		case <-q.wake:
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Len reports pending jobs (ready plus delayed), for assertions.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ready) + len(q.delayed)
}

func (q *MemoryQueue) pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	kept := q.delayed[:0]
	for _, d := range q.delayed {
		if !d.due.After(now) {
			q.ready = append(q.ready, d.job)
		} else {
			kept = append(kept, d)
		}
	}
	q.delayed = kept
	if len(q.ready) == 0 {
		return Job{}, false
	}
	job := q.ready[0]
	q.ready = q.ready[1:]
	return job, true
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

var _ Queue = (*MemoryQueue)(nil)
