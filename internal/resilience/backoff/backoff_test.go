package backoff

import (
	"errors"
	"testing"
	"time"
)

func TestPolicy_Delay(t *testing.T) {
	policy := &Policy{
		InitialDelay: 1 * time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}

	// Attempt 0: 1*2^0 = 1s
	if d := policy.Delay(0); d != 1*time.Second {
		t.Errorf("expected 1s, got %v", d)
	}

	// Attempt 1: 1*2^1 = 2s
	if d := policy.Delay(1); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}

	// Attempt 3: 1*2^3 = 8s
	if d := policy.Delay(3); d != 8*time.Second {
		t.Errorf("expected 8s, got %v", d)
	}

	// Attempt 10: capped at MaxDelay
	if d := policy.Delay(10); d != 10*time.Second {
		t.Errorf("expected cap of 10s, got %v", d)
	}

	// Negative attempts are clamped
	if d := policy.Delay(-1); d != 1*time.Second {
		t.Errorf("expected 1s for negative attempt, got %v", d)
	}
}

func TestPolicy_Monotonic(t *testing.T) {
	policy := Default()

	prev := policy.Delay(0)
	for n := 1; n < 20; n++ {
		cur := policy.Delay(n)
		if cur < prev {
			t.Errorf("delay(%d)=%v < delay(%d)=%v", n, cur, n-1, prev)
		}
		prev = cur
	}

	// Constant at the cap
	if policy.Delay(30) != policy.MaxDelay {
		t.Errorf("expected constant MaxDelay past the cap")
	}
}

func TestPolicy_JitterBounds(t *testing.T) {
	policy := &Policy{
		InitialDelay:   1 * time.Second,
		MaxDelay:       60 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.9, // clamped to 0.5
	}

	base := 4 * time.Second // attempt 2
	for i := 0; i < 200; i++ {
		d := policy.Delay(2)
		if d < base/2 || d > base+base/2 {
			t.Fatalf("jittered delay %v outside +/-50%% of %v", d, base)
		}
	}
}

func TestDefaultClassifier(t *testing.T) {
	classify := DefaultClassifier()

	if classify(errors.New("connection refused")) != CategoryTransient {
		t.Error("network error should be transient")
	}
	if classify(errors.New("401 Unauthorized")) != CategoryPermanent {
		t.Error("auth error should be permanent")
	}
	if classify(errors.New("record not found")) != CategoryPermanent {
		t.Error("not found should be permanent")
	}
	if classify(nil) != CategoryTransient {
		t.Error("nil error defaults to transient")
	}
}
