// Package guard bounds asynchronous work so callers never wait indefinitely.
package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const (
	// DefaultTimeout bounds remote calls when the caller passes no explicit limit.
	DefaultTimeout = 8 * time.Second
	// DefaultLoadingTimeout is how long a loading indicator may stay set without a callback.
	DefaultLoadingTimeout = 10 * time.Second
)

// TimeoutError is the cause carried by every timeout returned from WithTimeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation timed out after %s", e.After)
}

// IsTimeout reports whether err is a WithTimeout timeout, as opposed to a failure
// of the operation itself.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// WithTimeout runs fn and returns its result unless d elapses first, in which case
// the context handed to fn is cancelled and a TIMEOUT error is returned at once.
// A late result from fn is discarded.
func WithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if d <= 0 {
		d = DefaultTimeout
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(opCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, timeoutErr(d)
		}
		return res.value, res.err
	case <-opCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, timeoutErr(d)
	}
}

// Run is WithTimeout for operations without a result value.
func Run(ctx context.Context, d time.Duration, fn func(context.Context) error) error {
	_, err := WithTimeout(ctx, d, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func timeoutErr(d time.Duration) error {
	return pkgerrors.Wrap(pkgerrors.CodeTimeout, &TimeoutError{After: d}, "operation timed out").
		WithDetails(map[string]any{"timeout_ms": d.Milliseconds()})
}
