package transport

import "sync"

// Stream is an event channel that broker callbacks can emit into from any
// goroutine, and that can be closed while emitters are still running.
type Stream struct {
	mu        sync.RWMutex
	ch        chan Event
	done      chan struct{}
	closed    bool
	closeOnce sync.Once
}

// NewStream creates a stream with the given buffer size.
func NewStream(size int) *Stream {
	return &Stream{
		ch:   make(chan Event, size),
		done: make(chan struct{}),
	}
}

// Emit delivers the event, blocking while the buffer is full. It returns false
// once the stream is closed.
func (s *Stream) Emit(ev Event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Events returns the receiving end of the stream.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Close releases blocked emitters and closes the channel.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
}
