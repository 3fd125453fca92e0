package monitor

import "sync"

// FailureTracker keeps track of consecutive down samples per target URL.
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
// It returns the updated consecutive failure count and the count before the update.
func (t *FailureTracker) Update(target string, up bool) (now, before int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	before = t.counts[target]
	if up {
		t.counts[target] = 0
		return 0, before
	}

	t.counts[target]++
	return t.counts[target], before
}

// Failures returns the current consecutive failure count for a target.
func (t *FailureTracker) Failures(target string) int {
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
