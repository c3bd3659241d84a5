package boundary

import (
	"errors"
	"time"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[domain.BoundaryStatus][]domain.BoundaryStatus{
	domain.BoundaryHealthy: {domain.BoundaryErrored},
	domain.BoundaryErrored: {
		domain.BoundaryRecovering,
		domain.BoundaryExhausted,
		domain.BoundaryHealthy, // full reset
	},
	domain.BoundaryRecovering: {
		domain.BoundaryHealthy,
		domain.BoundaryErrored,
	},
	domain.BoundaryExhausted: {domain.BoundaryHealthy}, // full reset only
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to domain.BoundaryStatus) bool {
	validTargets, ok := ValidTransitions[from]
	if !ok {
		return false
	}

	for _, target := range validTargets {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	BoundaryID string
	From       domain.BoundaryStatus
	To         domain.BoundaryStatus
	Reason     string
	Timestamp  time.Time
}

// IsValid returns true if this transition is allowed by the state machine.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s domain.BoundaryStatus) string {
	switch s {
	case domain.BoundaryHealthy:
		return "no active fault"
	case domain.BoundaryErrored:
		return "fault captured, awaiting recovery"
	case domain.BoundaryRecovering:
		return "recovery strategy in progress"
	case domain.BoundaryExhausted:
		return "recovery budgets spent, external reset required"
	default:
		return "unknown"
	}
}
