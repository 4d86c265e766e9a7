package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/seat-reservation-queue/internal/metrics"
	"github.com/iliyamo/seat-reservation-queue/internal/queue"
	"github.com/iliyamo/seat-reservation-queue/internal/seats"
)

// ErrReservationsBlocked is returned by Reserve once the gate is closed.
var ErrReservationsBlocked = errors.New("reservations are blocked")

// Service is what the HTTP layer talks to.  It owns the gate and the
// worker so that neither is reachable as package state.
type Service struct {
	store    seats.Store
	queue    *queue.Queue
	gate     *Gate
	worker   *Worker
	capacity int
}

// NewService wires a worker around store and q.  capacity is written to
// the store by Init.
func NewService(store seats.Store, q *queue.Queue, capacity int) *Service {
	gate := NewGate()
	return &Service{
		store:    store,
		queue:    q,
		gate:     gate,
		worker:   NewWorker(store, gate, q, nil),
		capacity: capacity,
	}
}

func (s *Service) Gate() *Gate { return s.gate }

// Init sets the pool to the configured capacity.  It runs before the
// worker is started, so the worker remains the only writer afterwards.
func (s *Service) Init(ctx context.Context) error {
	if err := s.store.SetSeats(ctx, s.capacity); err != nil {
		return fmt.Errorf("init seats: %w", err)
	}
	metrics.SetAvailableSeats(s.capacity)
	metrics.SetGateClosed(false)
	return nil
}

// Available returns the current count.  A key that was never written
// reads as zero; an unreachable store is an error.
func (s *Service) Available(ctx context.Context) (int, error) {
	n, err := s.store.Seats(ctx)
	if errors.Is(err, seats.ErrNotFound) {
		return 0, nil
	}
	return n, err
}

// Reserve queues one reservation attempt.  The returned handle settles
// with nil or ErrInsufficientSeats once the worker has processed it.
func (s *Service) Reserve(ctx context.Context) (*queue.Handle, error) {
	if !s.gate.IsOpen() {
		metrics.TrackRequest(metrics.RequestBlocked)
		return nil, ErrReservationsBlocked
	}
	h, err := s.queue.Enqueue(ctx, JobType)
	if err != nil {
		metrics.TrackRequest(metrics.RequestFailed)
		return nil, err
	}
	metrics.TrackRequest(metrics.RequestQueued)
	return h, nil
}

// StartProcessing makes sure the worker is consuming.  Repeated calls are
// no-ops.
func (s *Service) StartProcessing() error {
	return s.worker.Start()
}
