// Package mailbox provides the unbounded FIFO between an agent's dispatch
// goroutine and the code that polls it.
package mailbox

import (
	"sync"

	"github.com/gammazero/deque"
)

// Mailbox is an unbounded, goroutine-safe FIFO queue. Push never blocks and
// TryPop never waits for an item.
type Mailbox[T any] struct {
	mu    sync.Mutex
	items deque.Deque[T]
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{}
}

// Push appends an item to the back of the queue.
func (m *Mailbox[T]) Push(item T) {
	m.mu.Lock()
	m.items.PushBack(item)
	m.mu.Unlock()
}

// TryPop removes the oldest item. The boolean is false when the queue is empty.
func (m *Mailbox[T]) TryPop() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items.Len() == 0 {
		var zero T
		return zero, false
	}
	return m.items.PopFront(), true
}

// Len returns the number of queued items.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items.Len()
}

// Drain removes and returns every queued item in order.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]T, 0, m.items.Len())
	for m.items.Len() > 0 {
		out = append(out, m.items.PopFront())
	}
	return out
}
