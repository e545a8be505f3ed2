package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Middleware decorates an Adapter.
type Middleware func(Adapter) Adapter

// Wrap applies middlewares so that the first one listed is the outermost.
// None is returned unchanged.
func Wrap(inner Adapter, mws ...Middleware) Adapter {
	if IsNone(inner) {
		return None
	}
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		inner = mws[i](inner)
	}
	return inner
}

// Timeout bounds every call to d. The call returns when the deadline passes even
// if the backend ignores its context.
func Timeout(d time.Duration) Middleware {
	return func(next Adapter) Adapter {
		if d <= 0 {
			return next
		}
		return named{name: next.Name(), gen: func(ctx context.Context, messages []Message) (string, error) {
			if err := ctx.Err(); err != nil {
				return "", fmt.Errorf("%w: %w", ErrFailure, err)
			}
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			type result struct {
				text string
				err  error
			}
			done := make(chan result, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- result{err: fmt.Errorf("%w: panic: %v", ErrFailure, r)}
					}
				}()
				text, err := next.Generate(ctx, messages)
				done <- result{text: text, err: err}
			}()

			select {
			case r := <-done:
				if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return "", fmt.Errorf("%w after %s: %w", ErrTimeout, d, r.err)
				}
				return r.text, r.err
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return "", fmt.Errorf("%w after %s", ErrTimeout, d)
				}
				return "", fmt.Errorf("%w: %w", ErrFailure, ctx.Err())
			}
		}}
	}
}

// Retry retries failed calls up to maxRetries times with exponential backoff.
// Cancellation and ErrUnavailable are never retried.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next Adapter) Adapter {
		if maxRetries <= 0 {
			return next
		}
		return named{name: next.Name(), gen: func(ctx context.Context, messages []Message) (string, error) {
			var lastErr error
			for attempt := 0; attempt <= maxRetries; attempt++ {
				if attempt > 0 {
					delay := baseDelay * time.Duration(1<<(attempt-1))
					t := time.NewTimer(delay)
					select {
					case <-ctx.Done():
						t.Stop()
						return "", lastErr
					case <-t.C:
					}
				}
				text, err := next.Generate(ctx, messages)
				if err == nil {
					return text, nil
				}
				lastErr = err
				if ctx.Err() != nil || errors.Is(err, ErrUnavailable) {
					break
				}
			}
			return "", lastErr
		}}
	}
}

// WithLogging logs each call's latency and outcome.
func WithLogging(logger zerolog.Logger) Middleware {
	return func(next Adapter) Adapter {
		return named{name: next.Name(), gen: func(ctx context.Context, messages []Message) (string, error) {
			start := time.Now()
			text, err := next.Generate(ctx, messages)
			ev := logger.Debug()
			if err != nil {
				ev = logger.Warn().Err(err)
			}
			ev.Str("adapter", next.Name()).
				Int("messages", len(messages)).
				Int("response_len", len(text)).
				Dur("latency", time.Since(start)).
				Msg("llm call")
			return text, err
		}}
	}
}
