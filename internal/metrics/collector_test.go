package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-reservation-queue/internal/seats"
)

type fakeGate bool

func (g fakeGate) IsOpen() bool { return bool(g) }

func TestCollector_Refresh(t *testing.T) {
	ctx := context.Background()
	store := seats.NewMemoryStore()

	c := NewCollector(store, fakeGate(true))
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 0.0, testutil.ToFloat64(availableSeats))
	assert.Equal(t, 0.0, testutil.ToFloat64(gateClosed))

	require.NoError(t, store.SetSeats(ctx, 12))
	c = NewCollector(store, fakeGate(false))
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 12.0, testutil.ToFloat64(availableSeats))
	assert.Equal(t, 1.0, testutil.ToFloat64(gateClosed))

	store.Fail(seats.ErrStoreUnavailable)
	assert.ErrorIs(t, c.Refresh(ctx), seats.ErrStoreUnavailable)
	assert.Equal(t, 12.0, testutil.ToFloat64(availableSeats), "gauge keeps last good value")
}

func TestCollector_StartStop(t *testing.T) {
	store := seats.NewMemoryStore()
	require.NoError(t, store.SetSeats(context.Background(), 7))

	c := NewCollector(store, fakeGate(true))
	require.NoError(t, c.Start(10*time.Millisecond))
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(availableSeats) == 7
	}, time.Second, 5*time.Millisecond)
	assert.NoError(t, c.Stop())
}

func TestTrackCounters(t *testing.T) {
	before := testutil.ToFloat64(reservationJobs.WithLabelValues(JobInsufficient))
	TrackJob(JobInsufficient)
	assert.Equal(t, before+1, testutil.ToFloat64(reservationJobs.WithLabelValues(JobInsufficient)))

	before = testutil.ToFloat64(reservationRequests.WithLabelValues(RequestBlocked))
	TrackRequest(RequestBlocked)
	assert.Equal(t, before+1, testutil.ToFloat64(reservationRequests.WithLabelValues(RequestBlocked)))
}
