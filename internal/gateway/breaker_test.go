package gateway

import (
    "context"
    "errors"
    "fmt"
    "testing"
    "time"
)

func testBreakerConfig() BreakerConfig {
    return BreakerConfig{
        Window:       10,
        MinCalls:     5,
        FailureRatio: 0.5,
        OpenTimeout:  30 * time.Second,
        HalfOpenMax:  3,
    }
}

func failingStub() *stubVerifier {
    return &stubVerifier{outcome: func(int) (ConfirmationResult, error) {
        return ConfirmationResult{}, transientErr()
    }}
}

func confirmingStub() *stubVerifier {
    return &stubVerifier{outcome: func(int) (ConfirmationResult, error) {
        return ConfirmationResult{Status: StatusConfirmed}, nil
    }}
}

func TestBreaker_OpensOnFailureRatio(t *testing.T) {
    ctx := context.Background()
    stub := failingStub()
    b := NewBreaker(stub, testBreakerConfig())

    for i := 0; i < 5; i++ {
        b.Verify(ctx, "REF-FAIL")
    }
    if b.State() != StateOpen {
        t.Fatalf("expected OPEN after 5 failures, got %v", b.State())
    }

    // next call short-circuits without touching the inner verifier
    before := stub.calls
    _, err := b.Verify(ctx, "REF-NEW")
    if !errors.Is(err, ErrCircuitOpen) {
        t.Fatalf("expected ErrCircuitOpen, got %v", err)
    }
    if !errors.Is(err, ErrUnavailable) {
        t.Error("open circuit must classify as unavailable")
    }
    if stub.calls != before {
        t.Errorf("inner verifier called while circuit open (%d -> %d)", before, stub.calls)
    }
}

func TestBreaker_StaysClosedBelowMinCalls(t *testing.T) {
    ctx := context.Background()
    b := NewBreaker(failingStub(), testBreakerConfig())

    for i := 0; i < 4; i++ {
        b.Verify(ctx, "REF-FAIL")
    }
    if b.State() != StateClosed {
        t.Fatalf("expected CLOSED below minimum call volume, got %v", b.State())
    }
}

func TestBreaker_RejectionCountsAsSuccess(t *testing.T) {
    ctx := context.Background()
    stub := &stubVerifier{outcome: func(int) (ConfirmationResult, error) {
        return ConfirmationResult{}, fmt.Errorf("%w: provider returned 400", ErrRejected)
    }}
    b := NewBreaker(stub, testBreakerConfig())

    for i := 0; i < 10; i++ {
        b.Verify(ctx, "REF-BAD")
    }
    if b.State() != StateClosed {
        t.Fatalf("rejections opened the circuit: %v", b.State())
    }
}

func TestBreaker_HalfOpenToClosed(t *testing.T) {
    ctx := context.Background()
    stub := failingStub()
    b := NewBreaker(stub, testBreakerConfig())

    clock := time.Now()
    b.now = func() time.Time { return clock }

    for i := 0; i < 5; i++ {
        b.Verify(ctx, "REF-FAIL")
    }
    if b.State() != StateOpen {
        t.Fatalf("expected OPEN, got %v", b.State())
    }

    // cool-down passes, provider recovers
    clock = clock.Add(31 * time.Second)
    stub.outcome = func(int) (ConfirmationResult, error) {
        return ConfirmationResult{Status: StatusConfirmed}, nil
    }

    for i := 0; i < 3; i++ {
        if _, err := b.Verify(ctx, "REF-RECOVERY"); err != nil {
            t.Fatalf("trial call %d failed: %v", i, err)
        }
    }
    if b.State() != StateClosed {
        t.Fatalf("expected CLOSED after successful trials, got %v", b.State())
    }
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
    ctx := context.Background()
    stub := failingStub()
    b := NewBreaker(stub, testBreakerConfig())

    clock := time.Now()
    b.now = func() time.Time { return clock }

    for i := 0; i < 5; i++ {
        b.Verify(ctx, "REF-FAIL")
    }
    clock = clock.Add(31 * time.Second)

    // first trial call still fails
    _, err := b.Verify(ctx, "REF-TRIAL")
    if !errors.Is(err, ErrUnavailable) {
        t.Fatalf("expected ErrUnavailable, got %v", err)
    }
    if b.State() != StateOpen {
        t.Fatalf("expected OPEN after failed trial, got %v", b.State())
    }

    // and the fresh cool-down applies again
    _, err = b.Verify(ctx, "REF-AFTER")
    if !errors.Is(err, ErrCircuitOpen) {
        t.Fatalf("expected ErrCircuitOpen, got %v", err)
    }
}

func TestBreaker_WindowResetsAfterClose(t *testing.T) {
    ctx := context.Background()
    stub := failingStub()
    b := NewBreaker(stub, testBreakerConfig())

    clock := time.Now()
    b.now = func() time.Time { return clock }

    for i := 0; i < 5; i++ {
        b.Verify(ctx, "REF-FAIL")
    }
    clock = clock.Add(31 * time.Second)
    stub.outcome = func(int) (ConfirmationResult, error) {
        return ConfirmationResult{Status: StatusConfirmed}, nil
    }
    for i := 0; i < 3; i++ {
        b.Verify(ctx, "REF-RECOVERY")
    }
    if b.State() != StateClosed {
        t.Fatalf("expected CLOSED, got %v", b.State())
    }

    // the old failures must not linger in the window: one new failure
    // alone cannot reopen the circuit
    stub.outcome = func(int) (ConfirmationResult, error) {
        return ConfirmationResult{}, transientErr()
    }
    for i := 0; i < 4; i++ {
        b.Verify(ctx, "REF-FAIL")
    }
    if b.State() != StateClosed {
        t.Fatalf("stale window reopened the circuit: %v", b.State())
    }
}
