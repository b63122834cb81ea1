// Package retry runs provider calls with capped exponential backoff. Only
// throttling and server-side failures are retried.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/chainguard-dev/clog"
	"github.com/elC0mpa/aws-teardown/service/awserr"
)

type Policy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// AttemptTimeout bounds each individual call. Zero means no bound.
	AttemptTimeout time.Duration
}

// Default is used by destroyers unless a test swaps it.
var Default = Policy{
	MaxTries:        5,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     15 * time.Second,
	AttemptTimeout:  2 * time.Minute,
}

type attemptTimeoutKey struct{}

// WithAttemptTimeout returns ctx carrying d as the bound on every provider
// call made with it. It takes precedence over Policy.AttemptTimeout. A
// non-positive d leaves ctx unchanged.
func WithAttemptTimeout(ctx context.Context, d time.Duration) context.Context {
	if d <= 0 {
		return ctx
	}
	return context.WithValue(ctx, attemptTimeoutKey{}, d)
}

func attemptTimeout(ctx context.Context, p Policy) time.Duration {
	if d, ok := ctx.Value(attemptTimeoutKey{}).(time.Duration); ok {
		return d
	}
	return p.AttemptTimeout
}

// Do runs op until it succeeds, fails with a non-retryable error or the
// policy is exhausted. The returned error is classified.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}

	tries := p.MaxTries
	if tries == 0 {
		tries = 1
	}
	timeout := attemptTimeout(ctx, p)

	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := attempt(ctx, timeout, op)
		if err == nil {
			return v, nil
		}

		err = awserr.Classify(err)
		if awserr.IsRetryable(err) {
			return v, err
		}
		return v, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(tries),
		backoff.WithNotify(func(err error, next time.Duration) {
			clog.DebugContext(ctx, "retrying provider call", "error", err.Error(), "next", next)
		}),
	)

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Err
	}
	return res, awserr.Classify(err)
}

type result[T any] struct {
	v   T
	err error
}

// attempt runs op once. With a timeout the call is abandoned when it expires,
// even if op does not watch its context; the late result is discarded.
func attempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		v, err := op(attemptCtx)
		done <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-attemptCtx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, &awserr.TimeoutError{Resource: "provider call", After: timeout, Err: attemptCtx.Err()}
	}
}

// Run is Do for calls without a result.
func Run(ctx context.Context, p Policy, op func(context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}
