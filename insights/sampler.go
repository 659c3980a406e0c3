package insights

import (
	"time"

	"github.com/gammazero/deque"
)

// WindowSize is the number of samples a Sampler keeps.
const WindowSize = 64

// Sampler records a cumulative counter at a fixed interval so that activity
// over time can be graphed.
type Sampler struct {
	interval time.Duration
	last     time.Time
	window   deque.Deque[uint64]
	now      func() time.Time
}

// NewSampler creates a sampler that accepts at most one sample per interval.
func NewSampler(interval time.Duration) *Sampler {
	return newSampler(interval, time.Now)
}

func newSampler(interval time.Duration, now func() time.Time) *Sampler {
	return &Sampler{interval: interval, last: now(), now: now}
}

// Add records total when more than an interval passed since the last sample.
// It reports whether the sample was taken.
func (s *Sampler) Add(total uint64) bool {
	now := s.now()
	if now.Sub(s.last) <= s.interval {
		return false
	}
	s.last = now
	s.window.PushBack(total)
	if s.window.Len() > WindowSize {
		s.window.PopFront()
	}
	return true
}

func (s *Sampler) Interval() time.Duration {
	return s.interval
}

// Samples returns the recorded totals, oldest first.
func (s *Sampler) Samples() []uint64 {
	out := make([]uint64, s.window.Len())
	for i := range out {
		out[i] = s.window.At(i)
	}
	return out
}

// Deltas returns the increase between consecutive samples. The first delta is
// relative to zero.
func (s *Sampler) Deltas() []uint64 {
	out := make([]uint64, s.window.Len())
	var previous uint64
	for i := range out {
		current := s.window.At(i)
		out[i] = current - previous
		previous = current
	}
	return out
}
