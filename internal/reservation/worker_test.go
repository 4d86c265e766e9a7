package reservation

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation-queue/internal/queue"
	"github.com/iliyamo/seat-reservation-queue/internal/seats"
)

func newTestService(t *testing.T, capacity int) (*Service, *seats.MemoryStore) {
	t.Helper()
	store := seats.NewMemoryStore()
	q := queue.New(queue.NewMemoryLog())
	t.Cleanup(func() { _ = q.Close() })
	svc := NewService(store, q, capacity)
	require.NoError(t, svc.Init(context.Background()))
	return svc, store
}

func testCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestWorker_Handle(t *testing.T) {
	ctx := context.Background()
	store := seats.NewMemoryStore()
	gate := NewGate()
	w := NewWorker(store, gate, nil, nil)

	require.NoError(t, store.SetSeats(ctx, 2))
	require.NoError(t, w.Handle(ctx, queue.Job{ID: "a"}))
	n, _ := store.Seats(ctx)
	assert.Equal(t, 1, n)
	assert.True(t, gate.IsOpen())

	require.NoError(t, w.Handle(ctx, queue.Job{ID: "b"}))
	n, _ = store.Seats(ctx)
	assert.Equal(t, 0, n)
	assert.False(t, gate.IsOpen())

	err := w.Handle(ctx, queue.Job{ID: "c"})
	assert.ErrorIs(t, err, ErrInsufficientSeats)
	n, _ = store.Seats(ctx)
	assert.Equal(t, 0, n)
}

func TestWorker_HandleNegativeCountIsNotWritten(t *testing.T) {
	ctx := context.Background()
	for _, seeded := range []int{-1, math.MinInt} {
		store := seats.NewMemoryStore()
		gate := NewGate()
		w := NewWorker(store, gate, nil, nil)
		require.NoError(t, store.SetSeats(ctx, seeded))

		err := w.Handle(ctx, queue.Job{ID: "a"})
		assert.ErrorIs(t, err, ErrInsufficientSeats, "seeded %d", seeded)
		n, err := store.Seats(ctx)
		require.NoError(t, err)
		assert.Equal(t, seeded, n)
		assert.True(t, gate.IsOpen())
	}
}

func TestWorker_HandleMissingKeyIsEmptyPool(t *testing.T) {
	w := NewWorker(seats.NewMemoryStore(), NewGate(), nil, nil)
	assert.ErrorIs(t, w.Handle(context.Background(), queue.Job{ID: "a"}), ErrInsufficientSeats)
}

func TestWorker_HandleStoreUnavailable(t *testing.T) {
	store := seats.NewMemoryStore()
	store.Fail(seats.ErrStoreUnavailable)
	gate := NewGate()
	w := NewWorker(store, gate, nil, nil)

	err := w.Handle(context.Background(), queue.Job{ID: "a"})
	assert.ErrorIs(t, err, seats.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInsufficientSeats)
	assert.True(t, gate.IsOpen())
}

func TestGate_ClosesOnce(t *testing.T) {
	g := NewGate()
	assert.True(t, g.IsOpen())
	assert.True(t, g.Close())
	assert.False(t, g.Close())
	assert.False(t, g.IsOpen())
}

func TestService_SequentialReservations(t *testing.T) {
	for _, tc := range []struct{ capacity, jobs int }{{5, 0}, {5, 3}, {10, 9}} {
		svc, _ := newTestService(t, tc.capacity)
		ctx := testCtx(t)
		require.NoError(t, svc.StartProcessing())

		for i := 0; i < tc.jobs; i++ {
			h, err := svc.Reserve(ctx)
			require.NoError(t, err)
			require.NoError(t, h.Wait(ctx))
		}
		n, err := svc.Available(ctx)
		require.NoError(t, err)
		assert.Equal(t, tc.capacity-tc.jobs, n)
		assert.True(t, svc.Gate().IsOpen())
	}
}

func TestService_FiftySeatsThenBlocked(t *testing.T) {
	svc, _ := newTestService(t, 50)
	ctx := testCtx(t)
	require.NoError(t, svc.StartProcessing())

	for i := 0; i < 50; i++ {
		h, err := svc.Reserve(ctx)
		require.NoError(t, err)
		require.NoError(t, h.Wait(ctx))
		assert.Equal(t, i < 49, svc.Gate().IsOpen(), "gate after job %d", i+1)
	}

	n, err := svc.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h, err := svc.Reserve(ctx)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrReservationsBlocked)
}

func TestService_LastSeatUnderConcurrency(t *testing.T) {
	svc, store := newTestService(t, 1)
	ctx := testCtx(t)

	// both jobs pass the gate before any processing happens
	handles := make([]*queue.Handle, 2)
	var wg sync.WaitGroup
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := svc.Reserve(ctx)
			if assert.NoError(t, err) {
				handles[i] = h
			}
		}(i)
	}
	wg.Wait()
	require.NoError(t, svc.StartProcessing())

	var completed, insufficient int
	for _, h := range handles {
		require.NotNil(t, h)
		err := h.Wait(ctx)
		switch {
		case err == nil:
			completed++
		case errors.Is(err, ErrInsufficientSeats):
			insufficient++
			assert.Equal(t, queue.StateFailed, h.State())
		default:
			t.Fatalf("unexpected job error: %v", err)
		}
	}
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, insufficient)

	n, err := store.Seats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, svc.Gate().IsOpen())
}

func TestService_StartProcessingIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t, 3)
	for i := 0; i < 5; i++ {
		require.NoError(t, svc.StartProcessing())
	}
	// a direct second registration is refused by the queue
	err := svc.queue.Process(JobType, func(context.Context, queue.Job) error { return nil })
	assert.ErrorIs(t, err, queue.ErrProcessorRegistered)
}

func TestService_AvailableIsStableWithoutJobs(t *testing.T) {
	svc, _ := newTestService(t, 7)
	ctx := testCtx(t)
	first, err := svc.Available(ctx)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		n, err := svc.Available(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, n)
	}
}

func TestService_AvailableStoreUnavailable(t *testing.T) {
	svc, store := newTestService(t, 7)
	store.Fail(seats.ErrStoreUnavailable)
	_, err := svc.Available(context.Background())
	assert.ErrorIs(t, err, seats.ErrStoreUnavailable)
}

func TestService_ReserveEnqueueFailure(t *testing.T) {
	store := seats.NewMemoryStore()
	q := queue.New(queue.NewMemoryLog())
	require.NoError(t, q.Close())
	svc := NewService(store, q, 3)

	_, err := svc.Reserve(context.Background())
	assert.ErrorIs(t, err, queue.ErrEnqueueFailed)
}
