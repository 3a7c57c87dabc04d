package retry

import (
	"context"
	"math"
	"time"
)

// ExponentialPolicy doubles (or multiplies by base) the interval after every retry, up to a maximum.
type ExponentialPolicy struct {
	counter
	base        float64
	minInterval time.Duration
	maxInterval time.Duration
}

var _ Policy = (*ExponentialPolicy)(nil)

func Exponential(attempts int, minInterval, maxInterval time.Duration) *ExponentialPolicy {
	c := newCounter(attempts)
	if minInterval <= 0 {
		panic("minInterval can't be <= 0")
	}
	if minInterval >= maxInterval {
		panic("minInterval can't be >= maxInterval")
	}
	return &ExponentialPolicy{
		counter:     c,
		base:        2,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}
}

func (p *ExponentialPolicy) WithBase(base float64) *ExponentialPolicy {
	if base <= 1 {
		panic("base can't be <= 1")
	}
	p.base = base
	return p
}

func (p *ExponentialPolicy) WithJitter(jitter float64) *ExponentialPolicy {
	p.setJitter(jitter)
	return p
}

func (p *ExponentialPolicy) Attempt(ctx context.Context) bool {
	return p.next(ctx, p.interval)
}

func (p *ExponentialPolicy) interval(retry int) time.Duration {
	f := float64(p.minInterval) * math.Pow(p.base, float64(retry-1))
	if f >= float64(p.maxInterval) {
		return p.maxInterval
	}
	return time.Duration(f)
}

func (p *ExponentialPolicy) Derive() Policy {
	return Exponential(p.attempts, p.minInterval, p.maxInterval).
		WithBase(p.base).
		WithJitter(p.jitter)
}
