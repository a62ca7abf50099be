package store

import (
	"context"
	"time"

	apperr "lovelink_client/errors"
	"lovelink_client/logger"
)

// Policy bounds every backend call with a per-attempt timeout and retries
// transient failures with exponential backoff. Taxonomy errors (not found,
// duplicate, conflict) are never retried.
type Policy struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// DefaultPolicy matches the documented request defaults.
func DefaultPolicy() Policy {
	return Policy{Timeout: 10 * time.Second, Retries: 2, Backoff: 200 * time.Millisecond}
}

// Do runs fn, retrying on transient errors up to p.Retries extra attempts.
func (p Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	backoff := p.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	var err error
	for attempt := 0; ; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		}
		err = fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil || !apperr.Transient(err) || attempt >= p.Retries {
			return err
		}
		logger.Warn("store: retrying after transient error", "op", op, "attempt", attempt+1, "err", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
