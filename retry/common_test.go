package retry_test

import (
	"testing"
	"testing/synctest"
	"time"
)

// Amount of time allowed for measurement error.
const epsilon = time.Microsecond * 10

func run(t *testing.T, name string, fn func(t *testing.T)) {
	t.Run(name, func(t *testing.T) {
		t.Helper()
		t.Parallel()
		synctest.Test(t, func(t *testing.T) {
			fn(t)
		})
	})
}

// delayFunc returns a function that fails the test when fn doesn't take delay ± jitter.
func delayFunc(t *testing.T, jitter float64) func(delay time.Duration, fn func()) {
	t.Helper()
	return func(delay time.Duration, fn func()) {
		delta := time.Duration(float64(delay) * jitter)
		minDelay := (delay - delta).Truncate(epsilon)
		maxDelay := (delay + delta + epsilon).Truncate(epsilon)

		tt := time.Now()
		fn()
		ts := time.Since(tt).Truncate(epsilon)

		if ts < minDelay {
			t.Fatalf("delay %s < min delay %s", ts, minDelay)
		}
		if ts > maxDelay {
			t.Fatalf("delay %s > max delay %s", ts, maxDelay)
		}
	}
}
