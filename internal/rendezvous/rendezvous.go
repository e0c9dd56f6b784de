// Package rendezvous lets a blocked caller wait for a single answer that is
// delivered later, from a different goroutine, under a caller-chosen id.
//
// Each id owns one buffered slot. An answer that arrives after Open but before
// Wait is kept in the slot, so a waiter can never miss it. Answers for ids that
// are not open are dropped.
package rendezvous

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrExists is returned by Open when the id already has an entry.
	ErrExists = errors.New("rendezvous: id already open")

	// ErrNotOpen is returned by Wait when the id has no entry.
	ErrNotOpen = errors.New("rendezvous: id not open")

	// ErrBusy is returned by Wait when another caller is already waiting on
	// the id.
	ErrBusy = errors.New("rendezvous: id already has a waiter")

	// ErrTimeout is returned by Wait when no answer arrived in time.
	ErrTimeout = errors.New("rendezvous: timed out waiting for answer")
)

type entry[T any] struct {
	slot    chan T
	waiting bool
	created time.Time
}

// Channel is a keyed set of single-answer slots.
type Channel[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	now     func() time.Time
}

// New creates an empty Channel.
func New[T any]() *Channel[T] {
	return &Channel[T]{
		entries: make(map[string]*entry[T]),
		now:     time.Now,
	}
}

// Open registers id so that answers for it are kept.
func (c *Channel[T]) Open(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[id]; ok {
		return ErrExists
	}
	c.entries[id] = &entry[T]{
		slot:    make(chan T, 1),
		created: c.now(),
	}
	return nil
}

// Answer delivers payload to id. It reports whether the payload was accepted;
// answers for unknown ids, or for ids that already hold an answer, are
// dropped.
func (c *Channel[T]) Answer(id string, payload T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		return false
	}
	select {
	case e.slot <- payload:
		return true
	default:
		return false
	}
}

// Wait blocks until an answer for id arrives, the timeout elapses, or ctx is
// done. A non-positive timeout waits for ctx only.
func (c *Channel[T]) Wait(ctx context.Context, id string, timeout time.Duration) (T, error) {
	var zero T

	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return zero, ErrNotOpen
	}
	if e.waiting {
		c.mu.Unlock()
		return zero, ErrBusy
	}
	e.waiting = true
	slot := e.slot
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if cur, ok := c.entries[id]; ok && cur == e {
			cur.waiting = false
		}
		c.mu.Unlock()
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case payload := <-slot:
		return payload, nil
	case <-expired:
		return zero, ErrTimeout
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close removes the entry for id. Closing an unknown id is a no-op.
func (c *Channel[T]) Close(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}

// Pending returns the number of open ids.
func (c *Channel[T]) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Age reports how long id has been open.
func (c *Channel[T]) Age(id string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return 0, false
	}
	return c.now().Sub(e.created), true
}

// Exchange opens id, runs emit, waits for the answer and always closes id
// before returning. emit runs after the entry exists, so an answer triggered
// by it cannot be lost.
func (c *Channel[T]) Exchange(ctx context.Context, id string, timeout time.Duration, emit func() error) (T, error) {
	var zero T
	if err := c.Open(id); err != nil {
		return zero, err
	}
	defer c.Close(id)

	if emit != nil {
		if err := emit(); err != nil {
			return zero, err
		}
	}
	return c.Wait(ctx, id, timeout)
}
