package dice

import "sync"

// Scripted is a Source that replays fixed draws, for tests that need exact
// control over every roll. When a queue runs dry the fallback is returned:
// IntFallback (clamped to n-1) for Intn and FloatFallback for Float64.
type Scripted struct {
	mu            sync.Mutex
	ints          []int
	floats        []float64
	IntFallback   int
	FloatFallback float64
}

// NewScripted returns a Scripted source replaying ints and floats in order.
func NewScripted(ints []int, floats []float64) *Scripted {
	return &Scripted{ints: ints, floats: floats}
}

// PushInts appends values to the Intn queue.
func (s *Scripted) PushInts(v ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ints = append(s.ints, v...)
}

// PushFloats appends values to the Float64 queue.
func (s *Scripted) PushFloats(v ...float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.floats = append(s.floats, v...)
}

// Intn returns the next scripted int, clamped to [0, n).
func (s *Scripted) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.IntFallback
	if len(s.ints) > 0 {
		v = s.ints[0]
		s.ints = s.ints[1:]
	}
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// Float64 returns the next scripted float.
func (s *Scripted) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.floats) == 0 {
		return s.FloatFallback
	}
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}
