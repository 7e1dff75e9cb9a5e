package connection

import (
	"math"
	"time"
)

// ReconnectPolicy decides how long to wait before the next connection attempt.
// failures is the number of consecutive failed sessions so far (>= 1).
// Returning false stops reconnecting.
type ReconnectPolicy interface {
	Next(failures int) (time.Duration, bool)
}

// FixedDelay waits the same delay after every failure.
type FixedDelay struct {
	Delay time.Duration

	// MaxAttempts is the total number of attempts, including the first.
	// 1 means never retry; 0 means unlimited.
	MaxAttempts int
}

// Next implements ReconnectPolicy.
func (p FixedDelay) Next(failures int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && failures >= p.MaxAttempts {
		return 0, false
	}
	return p.Delay, true
}

// ExponentialBackoff doubles the delay after every failure up to Max.
// A zero Max caps the delay at MaxBackoff.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration

	// MaxAttempts is the total number of attempts, including the first.
	// 1 means never retry; 0 means unlimited.
	MaxAttempts int
}

// MaxBackoff bounds ExponentialBackoff when Max is not set.
const MaxBackoff = time.Duration(math.MaxInt64 / 2)

// Next implements ReconnectPolicy.
func (p ExponentialBackoff) Next(failures int) (time.Duration, bool) {
	if p.MaxAttempts > 0 && failures >= p.MaxAttempts {
		return 0, false
	}

	limit := p.Max
	if limit <= 0 || limit > MaxBackoff {
		limit = MaxBackoff
	}

	wait := p.Base
	for i := 1; i < failures && wait > 0 && wait < limit; i++ {
		wait *= 2
	}
	if wait > limit {
		wait = limit
	}
	if wait < p.Base {
		wait = p.Base
	}
	return wait, true
}
