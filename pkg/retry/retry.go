// Package retry runs an operation under a fixed-attempt, fixed-delay policy.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded retry schedule with a constant delay between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a Permanent error, the context is
// done, or MaxAttempts calls have been made. A policy with MaxAttempts below 1
// still makes one attempt. When attempts run out the last error seen is
// returned; when the context ends first its error is returned instead.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Delay), uint64(attempts-1)),
		ctx,
	)

	return backoff.Retry(func() error {
		return op(ctx)
	}, b)
}
