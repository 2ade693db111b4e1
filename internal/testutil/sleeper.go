package testutil

import (
	"sync"
	"time"
)

// SleepRecorder records requested delays without ever sleeping.
//
// Injected as Policy.Sleep so verifier tests can assert on the exact number
// and size of inter-attempt waits while running instantly.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type SleepRecorder struct {
	mu    sync.Mutex
	slept []time.Duration
}

// Sleep records the requested duration and returns immediately.
func (r *SleepRecorder) Sleep(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slept = append(r.slept, d)
}

// Count returns how many sleeps were requested.
func (r *SleepRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slept)
}

// Total returns the sum of all requested delays.
func (r *SleepRecorder) Total() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total time.Duration
	for _, d := range r.slept {
		total += d
	}
	return total
}

// Durations returns a copy of the recorded delays in request order.
func (r *SleepRecorder) Durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, len(r.slept))
	copy(out, r.slept)
	return out
}
