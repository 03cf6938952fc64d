package procmgr

import (
	"math"
	"math/rand/v2"
	"time"
)

// Jitter spreads duration by up to ±jitterFraction so that many nodes
// polling at once do not hit their targets in lockstep.
// jitterFraction is clamped to [0, 1].
func Jitter(duration time.Duration, jitterFraction float64) time.Duration {
	if jitterFraction <= 0 {
		return duration
	}
	if jitterFraction > 1.0 {
		jitterFraction = 1.0
	}

	// multiplier in [1-f, 1+f]
	multiplier := 1.0 + (rand.Float64()*2.0-1.0)*jitterFraction
	return time.Duration(float64(duration) * multiplier)
}

// ExponentialBackoff returns baseDelay * 2^attempt capped at maxDelay, with
// ±25% jitter. attempt is 0-indexed; negative values count as 0.
func ExponentialBackoff(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)))
	if delay > maxDelay || delay <= 0 {
		delay = maxDelay
	}

	return Jitter(delay, 0.25)
}
