package monitor

import "sync"

// FailureTracker keeps track of consecutive failed probes per target.
// It is safe for concurrent use.
type FailureTracker struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewFailureTracker creates a new tracker.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{
		counts: make(map[string]int),
	}
}

// Update increments or resets the failure count for a target.
// It returns the updated consecutive failure count.
func (t *FailureTracker) Update(target string, ok bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ok {
		t.counts[target] = 0
		return 0
	}

	t.counts[target]++
	return t.counts[target]
}

// Count returns the current consecutive failure count for a target.
func (t *FailureTracker) Count(target string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[target]
}

// Reset clears the failure count for a target.
func (t *FailureTracker) Reset(target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counts, target)
}
