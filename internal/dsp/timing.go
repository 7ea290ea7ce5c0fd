package dsp

import (
	"sync"
	"time"
)

// SmoothedTiming tracks a stage duration: the first observation is taken as
// is, later ones are averaged half and half with the running value. Safe for
// concurrent use.
type SmoothedTiming struct {
	mu    sync.Mutex
	value time.Duration
	count uint64
}

// Observe folds d into the running value and returns it.
func (s *SmoothedTiming) Observe(d time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		s.value = d
	} else {
		s.value = (s.value + d) / 2
	}
	s.count++
	return s.value
}

// Value returns the smoothed duration.
func (s *SmoothedTiming) Value() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Count returns the number of observations.
func (s *SmoothedTiming) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
