package database

import (
	"context"
	"time"

	"github.com/careops/careops-backend/pkg/errors"
)

// DefaultRetryAttempts bounds the transparent retry of lost compare-and-swap
// races. Other error kinds are surfaced on the first attempt.
const DefaultRetryAttempts = 3

const retryBaseDelay = 25 * time.Millisecond

// WithRetry runs fn, retrying up to attempts times when it fails with
// ErrConcurrencyConflict. Each retry backs off linearly. The last error is
// returned once attempts are exhausted.
func WithRetry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn(ctx)
		if err == nil || !errors.Is(err, errors.ErrConcurrencyConflict) {
			return err
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBaseDelay * time.Duration(i+1)):
		}
	}
	return err
}
