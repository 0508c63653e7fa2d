package gateway

import (
    "context"
    "errors"
    "fmt"
    "time"
)

// RetryVerifier re-attempts an inner verifier a fixed number of times with a
// short pause between attempts.  Only transient failures (ErrUnavailable)
// are retried; a rejection means the provider answered and is returned
// immediately.
type RetryVerifier struct {
    inner    Verifier
    attempts int
    backoff  time.Duration
}

// NewRetryVerifier wraps inner with a retry policy.  attempts is the total
// number of calls, not the number of re-attempts; values below 1 are
// treated as 1.
func NewRetryVerifier(inner Verifier, attempts int, backoff time.Duration) *RetryVerifier {
    if attempts < 1 {
        attempts = 1
    }
    return &RetryVerifier{inner: inner, attempts: attempts, backoff: backoff}
}

// Verify calls the inner verifier until it succeeds, fails non-transiently,
// or attempts are exhausted.  Exhaustion surfaces the last transient error,
// still wrapping ErrUnavailable.
func (r *RetryVerifier) Verify(ctx context.Context, reference string) (ConfirmationResult, error) {
    var lastErr error
    for i := 0; i < r.attempts; i++ {
        if i > 0 {
            select {
            case <-ctx.Done():
                return ConfirmationResult{}, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
            case <-time.After(r.backoff):
            }
        }
        res, err := r.inner.Verify(ctx, reference)
        if err == nil || !errors.Is(err, ErrUnavailable) {
            return res, err
        }
        lastErr = err
    }
    return ConfirmationResult{}, fmt.Errorf("verification failed after %d attempts: %w", r.attempts, lastErr)
}
