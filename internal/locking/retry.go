package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	obsmetrics "github.com/smallbiznis/appointly/internal/observability/metrics"
	"github.com/smallbiznis/appointly/pkg/db"
)

type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// IsRetryable reports whether err is a transient persistence conflict.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLockContention) ||
		errors.Is(err, ErrStaleWrite) ||
		db.IsRetryableErr(err)
}

// Retry runs op until it succeeds, fails permanently, or the policy gives up.
// Exhausted transient failures surface as ErrPersistenceConflict.
func Retry(ctx context.Context, policy RetryPolicy, resource string, op func() error) error {
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialInterval
	bo.MaxInterval = policy.MaxInterval

	persistence := obsmetrics.Persistence()
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := op()
		if err == nil {
			return struct{}{}, nil
		}
		if IsRetryable(err) {
			persistence.IncRetry(resource, err)
			return struct{}{}, err
		}
		return struct{}{}, backoff.Permanent(err)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(policy.MaxAttempts),
	)
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	if IsRetryable(err) {
		persistence.IncExhausted(resource)
		return fmt.Errorf("%w: %s: %v", ErrPersistenceConflict, resource, err)
	}
	return err
}

// WithLock acquires key, runs fn, and releases. Lock wait time is observed per resource.
func WithLock(ctx context.Context, locker Locker, resource, key string, fn func() error) error {
	start := time.Now()
	release, err := locker.Acquire(ctx, key)
	obsmetrics.Persistence().ObserveLockWait(resource, time.Since(start))
	if err != nil {
		return err
	}
	defer release()
	return fn()
}
