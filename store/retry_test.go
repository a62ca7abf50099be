package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "lovelink_client/errors"
)

func transientErr() error {
	return apperr.Backend("query", "profiles", errors.New("backend unavailable"))
}

func TestPolicyRetriesTransientErrors(t *testing.T) {
	p := Policy{Timeout: time.Second, Retries: 2, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "two retries after the initial attempt")
}

func TestPolicyStopsAtRetryBudget(t *testing.T) {
	p := Policy{Timeout: time.Second, Retries: 1, Backoff: time.Millisecond}

	calls := 0
	err := p.Do(context.Background(), "test", func(ctx context.Context) error {
		calls++
		return transientErr()
	})
	assert.True(t, apperr.Transient(err))
	assert.Equal(t, 2, calls)
}

func TestPolicyDoesNotRetryTaxonomyErrors(t *testing.T) {
	p := Policy{Timeout: time.Second, Retries: 3, Backoff: time.Millisecond}

	for _, sentinel := range []error{apperr.ErrNotFound, apperr.ErrDuplicate, apperr.ErrConflict} {
		calls := 0
		err := p.Do(context.Background(), "test", func(ctx context.Context) error {
			calls++
			return sentinel
		})
		assert.ErrorIs(t, err, sentinel)
		assert.Equal(t, 1, calls, "%v is not retried", sentinel)
	}
}

func TestPolicyHonorsCallerCancellation(t *testing.T) {
	p := Policy{Timeout: time.Second, Retries: 5, Backoff: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, "test", func(ctx context.Context) error {
			return transientErr()
		})
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}
