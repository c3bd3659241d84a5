package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy computes retry delays: InitialDelay * Multiplier^attempt, capped at
// MaxDelay. Pure and total for attempt >= 0; callers cap the attempt count.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFraction, when non-zero, spreads each delay by up to +/- the given
	// fraction of the computed value. Clamped to 0.5 so delays never deviate
	// more than 50% from the deterministic curve.
	JitterFraction float64
}

// Default returns the standard policy: 2s, 4s, 8s, 16s, 32s, capped at 60s.
func Default() *Policy {
	return &Policy{
		InitialDelay: 2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

// Delay calculates the delay for the given attempt (0-indexed).
func (p *Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.JitterFraction > 0 {
		frac := p.JitterFraction
		if frac > 0.5 {
			frac = 0.5
		}
		// Uniform in [-frac, +frac]
		delay += delay * frac * (2*rand.Float64() - 1)
	}

	return time.Duration(delay)
}
