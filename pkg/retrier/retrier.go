package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultMinDelay = 5 * time.Second
	defaultMaxDelay = 10 * time.Second
)

// Retrier retries an operation with a delay drawn uniformly from a range.
// With zero max attempts it keeps retrying until the operation succeeds,
// becomes non-retryable or the context is cancelled.
type Retrier struct {
	minDelay    time.Duration
	maxDelay    time.Duration
	maxAttempts int
	retryIf     func(error) bool
}

// Option defines a function to configure the Retrier.
type Option func(*Retrier)

// WithDelayRange sets the bounds the random delay is drawn from.
func WithDelayRange(min, max time.Duration) Option {
	return func(r *Retrier) {
		r.minDelay = min
		r.maxDelay = max
	}
}

// WithMaxAttempts caps the total number of attempts. Zero means unbounded.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		r.maxAttempts = n
	}
}

// WithRetryIf sets the predicate deciding whether an error is retryable.
// Without it every error is retried.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) {
		r.retryIf = fn
	}
}

// New creates a new Retrier with default values and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		minDelay: defaultMinDelay,
		maxDelay: defaultMaxDelay,
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.maxDelay < r.minDelay {
		r.maxDelay = r.minDelay
	}

	return r
}

// Do executes the given function with retries.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if r.retryIf != nil && !r.retryIf(err) {
			return err
		}

		attempt++
		if r.maxAttempts > 0 && attempt >= r.maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.delay()):
		}
	}
}

// DoWithData executes the given function with retries and returns a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

func (r *Retrier) delay() time.Duration {
	span := r.maxDelay - r.minDelay
	if span <= 0 {
		return r.minDelay
	}
	return r.minDelay + time.Duration(rand.Int63n(int64(span)+1))
}
