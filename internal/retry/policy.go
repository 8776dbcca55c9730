// Package retry implements the brain-level retry policy layered on top of
// a Provider: which LLMError kinds are worth retrying, and how long to wait
// between attempts.
package retry

import (
	"context"
	"math"
	"time"

	"github.com/corebrain/agentcore/internal/agent"
	"github.com/corebrain/agentcore/internal/backoff"
)

// maxBackoffSecs caps the computed delay regardless of attempt count.
const maxBackoffSecs = 32

// Backoff computes the delay before retry k (0-indexed): the k-th retry
// waits min(2^k, 32) seconds, so the first retry (k=0) waits 1s, the second
// (k=1) waits 2s, and so on. A KindRateLimited error overrides this with
// max(retry_after, min(2^k, 32)), honoring the server's hint when it asks
// for longer than the exponential schedule would otherwise wait.
func Backoff(err *agent.LLMError, k int) time.Duration {
	exp := math.Min(math.Pow(2, float64(k)), maxBackoffSecs)
	if err != nil && err.Kind == agent.KindRateLimited && float64(err.RetryAfterSecs) > exp {
		exp = float64(err.RetryAfterSecs)
	}
	return time.Duration(exp * float64(time.Second))
}

// Retryable reports whether err warrants another attempt. Only LLMError
// values carry retry semantics; any other error type is treated as
// terminal.
func Retryable(err error) bool {
	llmErr, ok := err.(*agent.LLMError)
	if !ok {
		return false
	}
	return llmErr.Retryable()
}

// Do runs fn up to maxAttempts times (1-indexed), sleeping Backoff(err,
// attempt) between a retryable failure and the next attempt. It returns the
// first success, or the last error once attempts are exhausted or the
// error is non-retryable.
func Do[T any](ctx context.Context, maxAttempts int, fn func(attempt int) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return zero, lastErr
			}
			return zero, err
		}

		value, err := fn(attempt)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == maxAttempts {
			return zero, err
		}

		llmErr, _ := err.(*agent.LLMError)
		if sleepErr := backoff.SleepWithContext(ctx, Backoff(llmErr, attempt-1)); sleepErr != nil {
			return zero, sleepErr
		}
	}

	return zero, lastErr
}
