// Package queue is a small durable job queue with exactly one consumer per
// job type.  Jobs are appended to a Log (Redis list, RabbitMQ queue or
// memory), delivered in FIFO order, and stay in the log's in-flight set
// until the consumer acknowledges them.  Callers observe the outcome of a
// job through the Handle returned by Enqueue.
package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// State is the lifecycle of a job as seen by its Handle.
type State string

const (
	StateQueued    State = "queued"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Job is the unit stored in the log.  Data is opaque to the queue.
type Job struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt time.Time       `json:"created_at"`

	// raw is the exact payload a Log read, kept so Ack can match it.
	raw string
}

// Handler processes one job.  A non-nil error marks the job failed.
type Handler func(ctx context.Context, job Job) error

// Handle is the caller's view of an enqueued job.  It is settled exactly
// once, after which Done is closed and Err reports the handler's error.
type Handle struct {
	id      string
	jobType string

	mu    sync.Mutex
	state State
	err   error
	done  chan struct{}
}

func newHandle(id, jobType string) *Handle {
	return &Handle{id: id, jobType: jobType, state: StateQueued, done: make(chan struct{})}
}

func (h *Handle) ID() string   { return h.id }
func (h *Handle) Type() string { return h.jobType }

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once the job has completed or failed.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the failure reason of a failed job, nil otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Wait blocks until the job settles or ctx ends.  It returns the job's
// failure, or ctx.Err() if the caller gave up first.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return h.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) activate() {
	h.mu.Lock()
	if h.state == StateQueued {
		h.state = StateActive
	}
	h.mu.Unlock()
}

func (h *Handle) settle(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateCompleted || h.state == StateFailed {
		return
	}
	h.err = err
	if err != nil {
		h.state = StateFailed
	} else {
		h.state = StateCompleted
	}
	close(h.done)
}
