package gateway

import (
    "context"
    "errors"
    "fmt"
    "sync"
    "time"
)

// BreakerState is the circuit breaker's own state machine.
type BreakerState int

const (
    StateClosed BreakerState = iota
    StateOpen
    StateHalfOpen
)

func (s BreakerState) String() string {
    switch s {
    case StateClosed:
        return "CLOSED"
    case StateOpen:
        return "OPEN"
    case StateHalfOpen:
        return "HALF_OPEN"
    }
    return "UNKNOWN"
}

// ErrCircuitOpen marks calls rejected without a network attempt because the
// circuit is open.  It wraps ErrUnavailable so callers classify it the same
// way as exhausted retries.
var ErrCircuitOpen = fmt.Errorf("%w: circuit open", ErrUnavailable)

// BreakerConfig tunes the circuit breaker.
type BreakerConfig struct {
    Window       int           // number of recent outcomes tracked
    MinCalls     int           // outcomes required before the ratio is evaluated
    FailureRatio float64       // ratio of failures in the window that opens the circuit
    OpenTimeout  time.Duration // cool-down before trial calls are admitted
    HalfOpenMax  int           // trial calls admitted while half-open
}

// Breaker guards an inner verifier with a CLOSED/OPEN/HALF_OPEN state
// machine over a rolling window of call outcomes.  While open, calls
// short-circuit with ErrCircuitOpen.  After the cool-down a limited number
// of trial calls run; if all succeed the breaker closes, a single failure
// reopens it.
//
// A rejection (ErrRejected) counts as a success for breaker purposes: the
// provider answered, the dependency is healthy.
type Breaker struct {
    inner Verifier
    cfg   BreakerConfig

    mu       sync.Mutex
    state    BreakerState
    window   []bool // true = failure
    idx      int
    filled   int
    openedAt time.Time
    trials   int // trial calls started while half-open
    trialOK  int // trial calls that succeeded

    now func() time.Time // swapped out in tests
}

// NewBreaker wraps inner with a circuit breaker.  Zero config fields fall
// back to defaults (window 10, min 5 calls, ratio 0.5, 30s cool-down, 3
// half-open trials).
func NewBreaker(inner Verifier, cfg BreakerConfig) *Breaker {
    if cfg.Window <= 0 {
        cfg.Window = 10
    }
    if cfg.MinCalls <= 0 {
        cfg.MinCalls = 5
    }
    if cfg.FailureRatio <= 0 {
        cfg.FailureRatio = 0.5
    }
    if cfg.OpenTimeout <= 0 {
        cfg.OpenTimeout = 30 * time.Second
    }
    if cfg.HalfOpenMax <= 0 {
        cfg.HalfOpenMax = 3
    }
    return &Breaker{
        inner:  inner,
        cfg:    cfg,
        state:  StateClosed,
        window: make([]bool, cfg.Window),
        now:    time.Now,
    }
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
    b.mu.Lock()
    defer b.mu.Unlock()
    return b.state
}

// Verify admits or rejects the call depending on breaker state, runs the
// inner verifier, and records the outcome.
func (b *Breaker) Verify(ctx context.Context, reference string) (ConfirmationResult, error) {
    if err := b.admit(); err != nil {
        return ConfirmationResult{}, err
    }
    res, err := b.inner.Verify(ctx, reference)
    b.record(errors.Is(err, ErrUnavailable))
    return res, err
}

// admit decides whether a call may proceed and advances OPEN to HALF_OPEN
// once the cool-down has passed.
func (b *Breaker) admit() error {
    b.mu.Lock()
    defer b.mu.Unlock()

    switch b.state {
    case StateOpen:
        if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
            return ErrCircuitOpen
        }
        b.state = StateHalfOpen
        b.trials = 0
        b.trialOK = 0
        fallthrough
    case StateHalfOpen:
        if b.trials >= b.cfg.HalfOpenMax {
            return ErrCircuitOpen
        }
        b.trials++
    }
    return nil
}

// record folds a call outcome into the state machine.
func (b *Breaker) record(failure bool) {
    b.mu.Lock()
    defer b.mu.Unlock()

    switch b.state {
    case StateHalfOpen:
        if failure {
            b.open()
            return
        }
        b.trialOK++
        if b.trialOK >= b.cfg.HalfOpenMax {
            b.close()
        }
    case StateClosed:
        b.window[b.idx] = failure
        b.idx = (b.idx + 1) % b.cfg.Window
        if b.filled < b.cfg.Window {
            b.filled++
        }
        if b.filled >= b.cfg.MinCalls && b.failureRatio() >= b.cfg.FailureRatio {
            b.open()
        }
    }
}

func (b *Breaker) failureRatio() float64 {
    failures := 0
    for i := 0; i < b.filled; i++ {
        if b.window[i] {
            failures++
        }
    }
    return float64(failures) / float64(b.filled)
}

// open and close must be called with the mutex held.
func (b *Breaker) open() {
    b.state = StateOpen
    b.openedAt = b.now()
}

func (b *Breaker) close() {
    b.state = StateClosed
    b.idx = 0
    b.filled = 0
    for i := range b.window {
        b.window[i] = false
    }
}
