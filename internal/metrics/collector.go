package metrics

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/seat-reservation-queue/internal/seats"
)

// GateState is the read side of the intake gate.
type GateState interface {
	IsOpen() bool
}

// Collector periodically copies the counter store and gate into gauges so
// that the series stay right even when the count is changed outside the
// worker, for example when an operator resets the key.
type Collector struct {
	store     seats.Store
	gate      GateState
	scheduler gocron.Scheduler
}

func NewCollector(store seats.Store, gate GateState) *Collector {
	return &Collector{store: store, gate: gate}
}

// Refresh reads the store once.  A missing key reads as zero.
func (c *Collector) Refresh(ctx context.Context) error {
	SetGateClosed(!c.gate.IsOpen())
	n, err := c.store.Seats(ctx)
	if errors.Is(err, seats.ErrNotFound) {
		n, err = 0, nil
	}
	if err != nil {
		return err
	}
	SetAvailableSeats(n)
	return nil
}

// Start schedules Refresh every interval.
func (c *Collector) Start(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			defer cancel()
			if err := c.Refresh(ctx); err != nil {
				slog.Warn("metrics: refresh failed", "error", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return err
	}
	c.scheduler = s
	s.Start()
	return nil
}

func (c *Collector) Stop() error {
	if c.scheduler == nil {
		return nil
	}
	return c.scheduler.Shutdown()
}
