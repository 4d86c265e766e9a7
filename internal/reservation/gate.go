package reservation

import "sync/atomic"

// Gate stops reservation intake once the pool is exhausted.  It starts
// open and closes at most once; nothing in this package reopens it.
type Gate struct {
	closed atomic.Bool
}

func NewGate() *Gate { return &Gate{} }

func (g *Gate) IsOpen() bool { return !g.closed.Load() }

// Close shuts the gate and reports whether this call did it.
func (g *Gate) Close() bool { return g.closed.CompareAndSwap(false, true) }
