package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEnqueueFailed wraps a Log that refused a new job.
	ErrEnqueueFailed = errors.New("enqueue failed")
	// ErrProcessorRegistered is returned when a job type already has a consumer.
	ErrProcessorRegistered = errors.New("processor already registered")
	// ErrHandlerPanic fails a job whose handler panicked.
	ErrHandlerPanic = errors.New("job handler panicked")
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

// Queue hands jobs from a Log to one consumer goroutine per job type.
// Because each type has a single consumer that runs its handler to
// completion before popping again, handlers for one type never overlap.
type Queue struct {
	log    Log
	logger *slog.Logger
	now    func() time.Time

	mu         sync.Mutex
	handles    map[string]*Handle
	processors map[string]struct{}
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option { return func(q *Queue) { q.logger = l } }

// New returns a Queue reading from and writing to l.
func New(l Log, opts ...Option) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		log:        l,
		logger:     slog.Default(),
		now:        time.Now,
		handles:    make(map[string]*Handle),
		processors: make(map[string]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue durably records a new job of jobType and returns its handle.
// The handle is tracked before the push so a fast consumer always finds it.
func (q *Queue) Enqueue(ctx context.Context, jobType string) (*Handle, error) {
	job := Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		CreatedAt: q.now().UTC(),
	}
	h := newHandle(job.ID, jobType)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrEnqueueFailed, ErrClosed)
	}
	q.handles[job.ID] = h
	q.mu.Unlock()

	if err := q.log.Push(ctx, job); err != nil {
		q.forget(job.ID)
		return nil, fmt.Errorf("%w: %w", ErrEnqueueFailed, err)
	}
	return h, nil
}

// Process installs handler as the only consumer of jobType and starts it.
// A second call for the same type returns ErrProcessorRegistered and leaves
// the running consumer untouched.
func (q *Queue) Process(jobType string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if _, ok := q.processors[jobType]; ok {
		return fmt.Errorf("%w: %s", ErrProcessorRegistered, jobType)
	}
	q.processors[jobType] = struct{}{}
	q.wg.Add(1)
	go q.consume(jobType, handler)
	return nil
}

// Processing reports whether jobType has a consumer.
func (q *Queue) Processing(jobType string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.processors[jobType]
	return ok
}

// Close stops the consumers, waits for in-flight handlers to return and
// closes the log.  Jobs still pending stay in the log.
func (q *Queue) Close() error {
	return q.Shutdown(context.Background())
}

// Shutdown is Close with a deadline on the wait for in-flight handlers.
// When ctx ends first the log is closed anyway and ctx.Err() is returned;
// the unacked job stays in the log's in-flight set and is redelivered by a
// durable log after restart.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.cancel()
	idle := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(idle)
	}()

	var waitErr error
	select {
	case <-idle:
	case <-ctx.Done():
		waitErr = ctx.Err()
		q.logger.Warn("queue: shutdown deadline reached with a job in flight", "error", waitErr)
	}
	if err := q.log.Close(); err != nil {
		return err
	}
	return waitErr
}

func (q *Queue) consume(jobType string, handler Handler) {
	defer q.wg.Done()
	backoff := minBackoff
	for {
		job, err := q.log.Pop(q.ctx, jobType)
		if err != nil {
			if q.ctx.Err() != nil || errors.Is(err, ErrClosed) {
				return
			}
			q.logger.Error("queue: pop failed", "type", jobType, "error", err, "retry_in", backoff)
			select {
			case <-time.After(backoff):
			case <-q.ctx.Done():
				return
			}
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = minBackoff
		q.run(job, handler)
	}
}

// run executes one job.  Jobs are not cancelled once delivered, so the
// handler gets a context that outlives Close.
func (q *Queue) run(job Job, handler Handler) {
	h := q.lookup(job)
	h.activate()

	ctx := context.WithoutCancel(q.ctx)
	err := invoke(ctx, job, handler)

	if ackErr := q.log.Ack(ctx, job); ackErr != nil {
		q.logger.Error("queue: ack failed", "type", job.Type, "job", job.ID, "error", ackErr)
	}
	if err != nil {
		q.logger.Warn("queue: job failed", "type", job.Type, "job", job.ID, "error", err)
	} else {
		q.logger.Info("queue: job completed", "type", job.Type, "job", job.ID)
	}
	h.settle(err)
	q.forget(job.ID)
}

// invoke turns a handler panic into a job failure so the consumer keeps
// running.
func invoke(ctx context.Context, job Job, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return handler(ctx, job)
}

// lookup returns the handle created by Enqueue, or a detached one for jobs
// left in the log by an earlier process.
func (q *Queue) lookup(job Job) *Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	if h, ok := q.handles[job.ID]; ok {
		return h
	}
	h := newHandle(job.ID, job.Type)
	q.handles[job.ID] = h
	return h
}

func (q *Queue) forget(id string) {
	q.mu.Lock()
	delete(q.handles, id)
	q.mu.Unlock()
}
