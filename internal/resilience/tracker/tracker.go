package tracker

import (
	"sync"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// DefaultCapacity bounds the in-memory attempt log.
const DefaultCapacity = 256

// Tracker is an append-only log of recovery attempts. It holds at most
// capacity entries; when full, the oldest entries are evicted first. Attempts
// are never mutated after being recorded.
type Tracker struct {
	mu       sync.RWMutex
	attempts []domain.RecoveryAttempt
	capacity int
	now      func() time.Time
}

// New creates a tracker with the given capacity (0 means DefaultCapacity).
func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		attempts: make([]domain.RecoveryAttempt, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Record appends one attempt for the given error.
func (t *Tracker) Record(
	errorID string,
	strategy domain.RecoveryStrategy,
	succeeded bool,
	userInitiated bool,
) domain.RecoveryAttempt {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempt := domain.RecoveryAttempt{
		ErrorID:       errorID,
		Strategy:      strategy,
		Succeeded:     succeeded,
		UserInitiated: userInitiated,
		Timestamp:     t.now(),
	}

	t.attempts = append(t.attempts, attempt)
	if len(t.attempts) > t.capacity {
		// Evict oldest first
		t.attempts = t.attempts[len(t.attempts)-t.capacity:]
	}

	return attempt
}

// Recent returns the attempts for errorID whose timestamp falls within the
// given window ending now, in recording order.
func (t *Tracker) Recent(errorID string, window time.Duration) []domain.RecoveryAttempt {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := t.now().Add(-window)
	var out []domain.RecoveryAttempt
	for _, a := range t.attempts {
		if a.ErrorID == errorID && !a.Timestamp.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out
}

// Count returns the total number of recorded attempts for errorID.
func (t *Tracker) Count(errorID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, a := range t.attempts {
		if a.ErrorID == errorID {
			count++
		}
	}
	return count
}

// Len returns the total number of attempts currently retained.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.attempts)
}
