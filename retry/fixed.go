package retry

import (
	"context"
	"time"
)

// FixedPolicy waits the same interval before every retry. A zero interval retries immediately.
type FixedPolicy struct {
	counter
	interval time.Duration
}

var _ Policy = (*FixedPolicy)(nil)

func Fixed(attempts int, interval time.Duration) *FixedPolicy {
	c := newCounter(attempts)
	if interval < 0 {
		panic("interval can't be < 0")
	}
	return &FixedPolicy{counter: c, interval: interval}
}

func (p *FixedPolicy) WithJitter(jitter float64) *FixedPolicy {
	p.setJitter(jitter)
	return p
}

func (p *FixedPolicy) Attempt(ctx context.Context) bool {
	return p.next(ctx, func(int) time.Duration { return p.interval })
}

func (p *FixedPolicy) Derive() Policy {
	return Fixed(p.attempts, p.interval).WithJitter(p.jitter)
}
