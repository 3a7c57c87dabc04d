package retry

import (
	"context"
	"time"
)

// LinearPolicy grows the interval by a fixed step after every retry, up to a maximum.
type LinearPolicy struct {
	counter
	step        time.Duration
	minInterval time.Duration
	maxInterval time.Duration
}

var _ Policy = (*LinearPolicy)(nil)

// Linear spreads the intervals evenly between minInterval and maxInterval over the given attempts.
// With unlimited attempts the step equals minInterval.
func Linear(attempts int, minInterval, maxInterval time.Duration) *LinearPolicy {
	c := newCounter(attempts)
	if minInterval <= 0 {
		panic("minInterval can't be <= 0")
	}
	if minInterval >= maxInterval {
		panic("minInterval can't be >= maxInterval")
	}

	var step time.Duration
	switch {
	case attempts == 0:
		step = minInterval
	case attempts > 2:
		step = (maxInterval - minInterval) / time.Duration(attempts-2)
	}

	return &LinearPolicy{
		counter:     c,
		step:        step,
		minInterval: minInterval,
		maxInterval: maxInterval,
	}
}

func (p *LinearPolicy) WithStep(step time.Duration) *LinearPolicy {
	if step <= 0 {
		panic("step can't be <= 0")
	}
	p.step = step
	return p
}

func (p *LinearPolicy) WithJitter(jitter float64) *LinearPolicy {
	p.setJitter(jitter)
	return p
}

func (p *LinearPolicy) Attempt(ctx context.Context) bool {
	return p.next(ctx, p.interval)
}

func (p *LinearPolicy) interval(retry int) time.Duration {
	return min(p.minInterval+p.step*time.Duration(retry-1), p.maxInterval)
}

func (p *LinearPolicy) Derive() Policy {
	d := Linear(p.attempts, p.minInterval, p.maxInterval).WithJitter(p.jitter)
	if p.step > 0 {
		d.step = p.step
	}
	return d
}
