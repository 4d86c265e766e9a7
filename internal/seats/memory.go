package seats

import (
	"context"
	"sync"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu  sync.Mutex
	n   int
	set bool
	err error
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Seats(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if !m.set {
		return 0, ErrNotFound
	}
	return m.n, nil
}

func (m *MemoryStore) SetSeats(ctx context.Context, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.n, m.set = n, true
	return nil
}

// Fail makes every subsequent call return err; nil restores normal operation.
func (m *MemoryStore) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}
