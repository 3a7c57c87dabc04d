package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// counter tracks attempts made under a policy. Zero attempts means no limit.
type counter struct {
	attempted int
	attempts  int
	jitter    float64
}

func newCounter(attempts int) counter {
	if attempts < 0 {
		panic("attempts can't be < 0")
	}
	return counter{attempts: attempts, jitter: 0.1}
}

func (c *counter) setJitter(jitter float64) {
	if jitter < 0 {
		panic("jitter can't be < 0")
	}
	if jitter >= 1 {
		panic("jitter can't be >= 1")
	}
	c.jitter = jitter
}

// next waits for the interval of the following retry. The first attempt never waits.
func (c *counter) next(ctx context.Context, interval func(retry int) time.Duration) bool {
	switch {
	case ctx.Err() != nil:
		return false
	case c.attempted == 0:
	case c.attempts > 0 && c.attempted >= c.attempts:
		return false
	case !wait(ctx, interval(c.attempted), c.jitter):
		return false
	}
	c.attempted += 1
	return true
}

func wait(ctx context.Context, interval time.Duration, jitter float64) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if interval <= 0 {
		return true
	}

	m := (rand.Float64() * 2) - 1
	d := interval + time.Duration(m*jitter*float64(interval))

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
