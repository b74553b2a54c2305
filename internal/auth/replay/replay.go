// Package replay implements the stateless anti-replay checks applied to
// signed requests: a nonce range check and a timestamp freshness window.
package replay

import "time"

// NonceInRange reports whether 0 <= nonce < ceiling.
func NonceInRange(nonce, ceiling int64) bool {
	return nonce >= 0 && nonce < ceiling
}

// TimestampFresh reports whether ts, in epoch milliseconds, is no older than
// window relative to now and no further than skew in the future. Timestamps
// at or before the epoch are never fresh.
func TimestampFresh(ts int64, now time.Time, window, skew time.Duration) bool {
	if ts <= 0 {
		return false
	}
	nowMs := now.UnixMilli()
	return ts >= nowMs-window.Milliseconds() && ts <= nowMs+skew.Milliseconds()
}

// Guard bundles the configured replay limits and a clock.
type Guard struct {
	nonceCeiling int64
	window       time.Duration
	skew         time.Duration
	now          func() time.Time
}

// Option configures a Guard.
type Option func(*Guard)

// WithClock overrides the clock used for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		g.now = now
	}
}

// NewGuard creates a Guard.
func NewGuard(nonceCeiling int64, window, skew time.Duration, opts ...Option) *Guard {
	g := &Guard{
		nonceCeiling: nonceCeiling,
		window:       window,
		skew:         skew,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckNonce reports whether nonce is within the configured ceiling.
func (g *Guard) CheckNonce(nonce int64) bool {
	return NonceInRange(nonce, g.nonceCeiling)
}

// CheckTimestamp reports whether ts is fresh according to the guard's clock.
func (g *Guard) CheckTimestamp(ts int64) bool {
	return TimestampFresh(ts, g.now(), g.window, g.skew)
}

// Now returns the guard's current time.
func (g *Guard) Now() time.Time {
	return g.now()
}
