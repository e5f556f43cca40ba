package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper records requested waits instead of sleeping.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

// NewFakeSleeper creates a sleeper with no recorded waits.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{}
}

// Sleep records d and returns immediately. A done context is reported the
// way a real sleep would report it.
func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

// Waits returns the recorded durations in call order.
func (s *FakeSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]time.Duration, len(s.waits))
	copy(out, s.waits)
	return out
}

// Total returns the sum of all recorded waits.
func (s *FakeSleeper) Total() time.Duration {
	var total time.Duration
	for _, d := range s.Waits() {
		total += d
	}
	return total
}

// Reset forgets every recorded wait.
func (s *FakeSleeper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = nil
}
