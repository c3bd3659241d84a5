package boundary

import (
	"testing"

	"github.com/vietddude/sentinel/internal/core/domain"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from  domain.BoundaryStatus
		to    domain.BoundaryStatus
		valid bool
	}{
		{domain.BoundaryHealthy, domain.BoundaryErrored, true},
		{domain.BoundaryHealthy, domain.BoundaryRecovering, false},
		{domain.BoundaryHealthy, domain.BoundaryExhausted, false},
		{domain.BoundaryErrored, domain.BoundaryRecovering, true},
		{domain.BoundaryErrored, domain.BoundaryExhausted, true},
		{domain.BoundaryErrored, domain.BoundaryHealthy, true},
		{domain.BoundaryRecovering, domain.BoundaryHealthy, true},
		{domain.BoundaryRecovering, domain.BoundaryErrored, true},
		{domain.BoundaryRecovering, domain.BoundaryExhausted, false},
		{domain.BoundaryExhausted, domain.BoundaryHealthy, true},
		{domain.BoundaryExhausted, domain.BoundaryErrored, false},
		{domain.BoundaryExhausted, domain.BoundaryRecovering, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.valid {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
		}
	}
}

func TestCanTransition_UnknownState(t *testing.T) {
	if CanTransition(domain.BoundaryStatus("bogus"), domain.BoundaryHealthy) {
		t.Error("unknown source state must not transition anywhere")
	}
}

func TestStateDescription(t *testing.T) {
	for _, s := range []domain.BoundaryStatus{
		domain.BoundaryHealthy,
		domain.BoundaryErrored,
		domain.BoundaryRecovering,
		domain.BoundaryExhausted,
	} {
		if StateDescription(s) == "unknown" {
			t.Errorf("missing description for %s", s)
		}
	}
}
