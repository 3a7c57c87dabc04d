// Package retry decides when a failed download is tried again.
package retry

import (
	"context"
	"errors"
)

// Policy is a retry schedule for one operation.
//
// Implementations are not safe for concurrent use. Use Derive to get a fresh copy per operation.
type Policy interface {
	// Attempt blocks until the next attempt is due. It returns false when no attempts remain or
	// the context is cancelled.
	Attempt(ctx context.Context) bool
	// Derive returns an unused copy of the policy.
	Derive() Policy
}

type permanent struct {
	err error
}

func (p permanent) Error() string { return p.err.Error() }
func (p permanent) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying. Do returns such errors immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanent{err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p)
}

// Do calls fn until it succeeds, fails permanently or p runs out of attempts. The last error is
// returned. p is derived first, so one policy can be shared between calls.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.Derive()

	var err error
	for p.Attempt(ctx) {
		if err = fn(ctx); err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
	}

	if err == nil {
		return ctx.Err()
	}
	return err
}
