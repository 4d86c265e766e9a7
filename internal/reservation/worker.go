// Package reservation applies queued seat reservations to the shared
// counter.
//
// The worker reads the count, decrements it and writes it back without a
// lock or a store-side compare-and-swap.  That is only safe because there
// is exactly one writer: Worker.Start registers the handler through
// queue.Queue.Process, which runs a single consumer goroutine per job type
// and rejects a second registration.  Anything else that wants to change
// the count while the worker runs must go through the queue.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/iliyamo/seat-reservation-queue/internal/metrics"
	"github.com/iliyamo/seat-reservation-queue/internal/queue"
	"github.com/iliyamo/seat-reservation-queue/internal/seats"
)

// JobType tags reservation jobs in the queue.
const JobType = "reserve_seat"

// ErrInsufficientSeats fails a job that would take the count below zero.
var ErrInsufficientSeats = errors.New("insufficient seats")

// Worker is the sole consumer of reservation jobs.
type Worker struct {
	store  seats.Store
	gate   *Gate
	queue  *queue.Queue
	logger *slog.Logger

	once     sync.Once
	startErr error
}

func NewWorker(store seats.Store, gate *Gate, q *queue.Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, gate: gate, queue: q, logger: logger}
}

// Start registers Handle as the consumer of JobType.  It is safe to call
// any number of times; only the first call registers anything, and every
// call returns the outcome of that first registration.
func (w *Worker) Start() error {
	w.once.Do(func() {
		w.startErr = w.queue.Process(JobType, w.Handle)
		if w.startErr == nil {
			w.logger.Info("reservation: worker started", "type", JobType)
		}
	})
	return w.startErr
}

// Handle takes one seat from the pool.  When the pool is already empty
// the job fails with ErrInsufficientSeats and the count is not written.
// Taking the last seat closes the gate.
func (w *Worker) Handle(ctx context.Context, job queue.Job) error {
	current, err := w.store.Seats(ctx)
	if errors.Is(err, seats.ErrNotFound) {
		current, err = 0, nil
	}
	if err != nil {
		metrics.TrackJob(metrics.JobError)
		return fmt.Errorf("read seats: %w", err)
	}

	// Checked before subtracting so a corrupt negative count cannot wrap.
	if current <= 0 {
		metrics.TrackJob(metrics.JobInsufficient)
		w.logger.Warn("reservation: seat reservation job failed", "job", job.ID, "reason", ErrInsufficientSeats)
		return ErrInsufficientSeats
	}
	next := current - 1

	if err := w.store.SetSeats(ctx, next); err != nil {
		metrics.TrackJob(metrics.JobError)
		return fmt.Errorf("write seats: %w", err)
	}
	metrics.SetAvailableSeats(next)
	metrics.TrackJob(metrics.JobCompleted)

	if next == 0 && w.gate.Close() {
		metrics.SetGateClosed(true)
		w.logger.Info("reservation: pool exhausted, intake closed", "job", job.ID)
	}
	w.logger.Info("reservation: seat reservation job completed", "job", job.ID, "available", next)
	return nil
}
