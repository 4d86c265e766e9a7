package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by a Log or Queue after Close.
var ErrClosed = errors.New("queue closed")

// Log is the durable, ordered storage behind a Queue.
//
// Push appends a job.  Pop blocks until the oldest pending job of jobType
// is available and moves it to an in-flight set; it returns ctx.Err() when
// ctx ends.  Ack removes an in-flight job for good.  A job that is popped
// but never acked must be delivered again after a restart.
type Log interface {
	Push(ctx context.Context, job Job) error
	Pop(ctx context.Context, jobType string) (Job, error)
	Ack(ctx context.Context, job Job) error
	Close() error
}

// MemoryLog keeps jobs in process memory.  It is ordered but not durable.
type MemoryLog struct {
	mu       sync.Mutex
	pending  map[string][]Job
	inflight map[string]Job
	wake     chan struct{}
	closed   bool
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		pending:  make(map[string][]Job),
		inflight: make(map[string]Job),
		wake:     make(chan struct{}),
	}
}

func (l *MemoryLog) Push(ctx context.Context, job Job) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}
	l.pending[job.Type] = append(l.pending[job.Type], job)
	close(l.wake)
	l.wake = make(chan struct{})
	return nil
}

func (l *MemoryLog) Pop(ctx context.Context, jobType string) (Job, error) {
	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return Job{}, ErrClosed
		}
		if jobs := l.pending[jobType]; len(jobs) > 0 {
			job := jobs[0]
			l.pending[jobType] = jobs[1:]
			l.inflight[job.ID] = job
			l.mu.Unlock()
			return job, nil
		}
		wake := l.wake
		l.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return Job{}, ctx.Err()
		}
	}
}

func (l *MemoryLog) Ack(ctx context.Context, job Job) error {
	l.mu.Lock()
	delete(l.inflight, job.ID)
	l.mu.Unlock()
	return nil
}

// Len returns the number of pending and in-flight jobs of jobType.
func (l *MemoryLog) Len(jobType string) (pending, inflight int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, j := range l.inflight {
		if j.Type == jobType {
			inflight++
		}
	}
	return len(l.pending[jobType]), inflight
}

func (l *MemoryLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.wake)
	}
	return nil
}
