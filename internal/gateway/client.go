// Package gateway wraps the outbound synchronous payment verification call.
// The raw HTTP client is composed with two explicit decorators: a retry
// wrapper that re-attempts only transient failures, and a circuit breaker
// that short-circuits calls while the provider is unhealthy.  Callers see a
// two-value failure taxonomy: ErrRejected for answers that will not improve
// on retry, ErrUnavailable for everything transient.
package gateway

import (
    "bytes"
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "time"

    "github.com/google/uuid"
)

// ErrRejected is returned when the provider answered and refused the
// reference (malformed request, declined payment API call).  Retrying is
// pointless; handlers surface it as a client error.
var ErrRejected = errors.New("payment verification rejected")

// ErrUnavailable is returned for transient failures: network errors,
// 5xx-class responses, exhausted retries, or an open circuit.  Handlers
// surface it as 503 with a retry hint.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Result statuses reported by the provider.  Anything else is treated as a
// rejection by the lifecycle engine (fail closed).
const (
    StatusConfirmed = "CONFIRMED"
    StatusRejected  = "REJECTED"
)

// ConfirmationResult is the normalized outcome of a verification call.  It
// is never persisted; the lifecycle engine folds it into the reservation
// status.
type ConfirmationResult struct {
    Status string `json:"status"`
    Detail string `json:"detail"`
}

// Verifier is the single synchronous call abstraction through which the
// payment provider is accessed.
type Verifier interface {
    Verify(ctx context.Context, reference string) (ConfirmationResult, error)
}

// Client performs the actual HTTP round trip to the provider.  It does no
// retrying of its own; compose it with NewRetryVerifier and NewBreaker.
type Client struct {
    baseURL string
    client  *http.Client
}

// NewClient returns a Client for the given provider base URL.  The timeout
// bounds each individual round trip; it is the only timeout enforced at the
// gateway boundary.
func NewClient(baseURL string, timeout time.Duration) *Client {
    return &Client{
        baseURL: baseURL,
        client:  &http.Client{Timeout: timeout},
    }
}

type verifyRequest struct {
    Reference string `json:"reference"`
}

// Verify posts the payment reference and decodes the provider's answer.
// Network errors and 5xx responses come back wrapped in ErrUnavailable;
// 4xx responses come back wrapped in ErrRejected.
func (c *Client) Verify(ctx context.Context, reference string) (ConfirmationResult, error) {
    body, err := json.Marshal(verifyRequest{Reference: reference})
    if err != nil {
        return ConfirmationResult{}, fmt.Errorf("marshal verify request: %w", err)
    }

    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
    if err != nil {
        return ConfirmationResult{}, fmt.Errorf("build verify request: %w", err)
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Request-ID", uuid.NewString())

    resp, err := c.client.Do(req)
    if err != nil {
        return ConfirmationResult{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
    }
    defer resp.Body.Close()

    respBody, err := io.ReadAll(resp.Body)
    if err != nil {
        return ConfirmationResult{}, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
    }

    switch {
    case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
        return ConfirmationResult{}, fmt.Errorf("%w: provider returned %d", ErrUnavailable, resp.StatusCode)
    case resp.StatusCode >= 400:
        return ConfirmationResult{}, fmt.Errorf("%w: provider returned %d: %s", ErrRejected, resp.StatusCode, respBody)
    }

    var result ConfirmationResult
    if err := json.Unmarshal(respBody, &result); err != nil {
        return ConfirmationResult{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
    }
    return result, nil
}
