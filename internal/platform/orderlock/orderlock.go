// Package orderlock serialises mutations of a single order. Every order
// service write path acquires the order's lock first, so state transitions
// and totals updates never interleave for the same order.
package orderlock

import (
	"context"
	"sync"
)

// Locker grants exclusive access to one order at a time. Release must be
// called exactly once per successful Acquire.
type Locker interface {
	Acquire(ctx context.Context, orderID string) (release func(), err error)
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Mutex is an in-process Locker backed by per-order mutexes. It is the
// default for single-instance deployments and for tests.
type Mutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewMutex constructs an in-process order locker.
func NewMutex() *Mutex {
	return &Mutex{entries: make(map[string]*lockEntry)}
}

// Acquire blocks until the order's lock is held or ctx is done.
func (m *Mutex) Acquire(ctx context.Context, orderID string) (func(), error) {
	m.mu.Lock()
	entry, ok := m.entries[orderID]
	if !ok {
		entry = &lockEntry{}
		m.entries[orderID] = entry
	}
	entry.refs++
	m.mu.Unlock()

	acquired := make(chan struct{})
	go func() {
		entry.mu.Lock()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-ctx.Done():
		// The goroutine still holds or will hold the mutex; release it
		// as soon as it lands so waiters are not blocked forever.
		go func() {
			<-acquired
			m.release(orderID, entry)
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { m.release(orderID, entry) })
	}, nil
}

func (m *Mutex) release(orderID string, entry *lockEntry) {
	entry.mu.Unlock()
	m.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, orderID)
	}
	m.mu.Unlock()
}
