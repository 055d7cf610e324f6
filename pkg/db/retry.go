package db

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/doodlesbykumbi/schoolhost/pkg/errs"
)

// Retry runs op, retrying up to attempts more times with exponential
// backoff while it fails with an infrastructure error. Logical failures
// are returned on the first occurrence.
func Retry(ctx context.Context, attempts int, initial time.Duration, op func(context.Context) error) error {
	if attempts < 0 {
		attempts = 0
	}
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	b.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts)), ctx)
	return backoff.Retry(func() error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !errs.Retryable(errs.Classify("", err)) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
