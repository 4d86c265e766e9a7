// Package seats holds the shared seat counter: one integer under one key.
// The store does no bounds checking; the reservation worker is the only
// writer after startup and enforces that the count never goes negative.
package seats

import (
	"context"
	"errors"
)

// ErrNotFound is returned when the counter key has never been written.
// Callers treat it as zero seats.
var ErrNotFound = errors.New("seat counter not initialised")

// ErrStoreUnavailable wraps any failure to reach the backing store.  It
// must stay distinguishable from a legitimate count of zero.
var ErrStoreUnavailable = errors.New("seat store unavailable")

// Store reads and overwrites the available seat count.
type Store interface {
	Seats(ctx context.Context) (int, error)
	SetSeats(ctx context.Context, n int) error
}
