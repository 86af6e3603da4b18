// Package backoff computes retry delays for failed records and holds the
// global rate-limit gate.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultBaseDelay = 30 * time.Second
	DefaultMaxDelay  = 24 * time.Hour
	DefaultJitter    = 0.2
)

// Policy is a jittered exponential backoff.
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    float64 // fraction of the raw delay, applied as U(-Jitter, Jitter)

	rand func() float64
	now  func() time.Time
}

// NewPolicy returns a policy with the given settings; zero values take defaults.
func NewPolicy(base, maxDelay time.Duration, jitter float64) *Policy {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Policy{
		BaseDelay: base,
		MaxDelay:  maxDelay,
		Jitter:    jitter,
		rand:      rand.Float64,
		now:       time.Now,
	}
}

// DefaultPolicy returns 30s doubling up to 24h with ±20% jitter.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultBaseDelay, DefaultMaxDelay, DefaultJitter)
}

// WithRand replaces the uniform [0,1) source.
func (p *Policy) WithRand(fn func() float64) *Policy {
	p.rand = fn
	return p
}

// WithClock replaces the time source.
func (p *Policy) WithClock(fn func() time.Time) *Policy {
	p.now = fn
	return p
}

// Now returns the policy clock.
func (p *Policy) Now() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// RawDelay is the unjittered delay for attempt (1-indexed): Base * 2^(attempt-1), capped.
func (p *Policy) RawDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if raw > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(raw)
}

// ComputeDelay returns the wait before the next attempt. A server hint is
// used as-is, clamped to [0, MaxDelay].
func (p *Policy) ComputeDelay(attempt int, hint *time.Duration) time.Duration {
	if hint != nil {
		d := *hint
		if d < 0 {
			d = 0
		}
		if d > p.MaxDelay {
			d = p.MaxDelay
		}
		return d
	}

	raw := float64(p.RawDelay(attempt))
	u := 0.5
	if p.rand != nil {
		u = p.rand()
	}
	factor := 1 + (u*2-1)*p.Jitter
	delay := raw * factor
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// NextRetryAt returns now + ComputeDelay.
func (p *Policy) NextRetryAt(now time.Time, attempt int, hint *time.Duration) time.Time {
	return now.Add(p.ComputeDelay(attempt, hint))
}
