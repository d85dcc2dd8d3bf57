// Package clock supplies the trusted time source used to stamp capsules and
// evaluate unlock gates.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current Unix time in seconds.
type Clock interface {
	Now() int64
}

// System is the wall clock, clamped so it never moves backwards within a process.
type System struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewSystem returns a monotonic wall clock.
func NewSystem() *System {
	return &System{now: time.Now}
}

// Now implements Clock.
func (s *System) Now() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.now().Unix()
	if t < s.last {
		t = s.last
	}
	s.last = t
	return t
}

// Fixed always returns the same instant. Useful in tests and for evaluating
// a capsule "as of" a given time.
type Fixed int64

// Now implements Clock.
func (f Fixed) Now() int64 {
	return int64(f)
}

// Func adapts a plain function to Clock.
type Func func() int64

// Now implements Clock.
func (f Func) Now() int64 {
	return f()
}
