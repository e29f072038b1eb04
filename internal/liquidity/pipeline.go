package liquidity

import (
	"context"
	"time"
)

type stepSource int

const (
	fromQuote stepSource = iota
	fromFallback
)

// stepResult carries one calculation step's value and where it came from.
type stepResult[T any] struct {
	value  T
	source stepSource
	err    error
}

// quoteStep runs one upstream call under its own deadline.
func quoteStep[T any](ctx context.Context, timeout time.Duration, call func(context.Context) (T, error)) stepResult[T] {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := call(callCtx)
	if err != nil {
		var zero T
		return stepResult[T]{value: zero, source: fromFallback, err: err}
	}
	return stepResult[T]{value: v, source: fromQuote}
}

// orElse replaces a failed quote with a locally computed value. The
// upstream error is kept for logging.
func (r stepResult[T]) orElse(fallback func() T) stepResult[T] {
	if r.source == fromQuote {
		return r
	}
	r.value = fallback()
	return r
}

func (r stepResult[T]) fellBack() bool {
	return r.source == fromFallback
}
