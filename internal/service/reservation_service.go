package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/marvelstay/room-reservation/internal/gateway"
    "github.com/marvelstay/room-reservation/internal/model"
    "github.com/marvelstay/room-reservation/internal/queue"
    "github.com/marvelstay/room-reservation/internal/repository"
)

// maxStayDays bounds the length of a single reservation.
const maxStayDays = 30

// ReservationStore is the slice of the repository the engine depends on.
// TransitionStatus must be a guarded write: it changes the row only while
// the current (status, payment mode) pair still matches, which makes the
// engine's read-modify-write effectively atomic per record.
type ReservationStore interface {
    Create(ctx context.Context, res *model.Reservation) error
    GetByID(ctx context.Context, id string) (*model.Reservation, error)
    FindOverdue(ctx context.Context, status model.ReservationStatus, mode model.PaymentMode, cutoff time.Time) ([]model.Reservation, error)
    TransitionStatus(ctx context.Context, id string, from model.ReservationStatus, mode model.PaymentMode, to model.ReservationStatus) (bool, error)
}

// ConfirmedPublisher notifies downstream consumers of confirmed
// reservations.  Publishing is best-effort; failures are logged and never
// roll back a transition.
type ConfirmedPublisher interface {
    PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error
}

// CreateReservationRequest is the validated input for Create, produced by
// the HTTP layer.
type CreateReservationRequest struct {
    CustomerName     string
    RoomNumber       string
    StartDate        time.Time
    EndDate          time.Time
    Segment          model.RoomSegment
    PaymentMode      model.PaymentMode
    PaymentReference string
}

// ReservationEngine implements the reservation state machine.  Three
// independent triggers drive it concurrently: HTTP creation, the payment
// update consumer, and the overdue sweep.  Correctness under that
// concurrency rests on two rules: a record is persisted exactly once, after
// all checks, and every later transition re-checks the current status at
// commit time through the store's guarded update.
type ReservationEngine struct {
    store     ReservationStore
    verifier  gateway.Verifier
    publisher ConfirmedPublisher

    now func() time.Time // swapped out in tests
}

// NewReservationEngine constructs the engine with its three collaborators.
// All dependencies must be non-nil.
func NewReservationEngine(store ReservationStore, verifier gateway.Verifier, publisher ConfirmedPublisher) *ReservationEngine {
    if store == nil || verifier == nil || publisher == nil {
        panic("nil dependency passed to NewReservationEngine")
    }
    return &ReservationEngine{
        store:     store,
        verifier:  verifier,
        publisher: publisher,
        now:       time.Now,
    }
}

// Create validates the request, runs the synchronous card check when the
// channel requires one, and persists the reservation exactly once.  A failed
// card check leaves no trace in the store.  The gateway call happens before
// any store write, so no storage lock is held for the duration of the round
// trip.
func (e *ReservationEngine) Create(ctx context.Context, req CreateReservationRequest) (*model.Reservation, error) {
    start := model.DateOnly(req.StartDate)
    end := model.DateOnly(req.EndDate)
    if err := e.validateDates(start, end); err != nil {
        return nil, err
    }

    ref := strings.TrimSpace(req.PaymentReference)
    if (req.PaymentMode == model.PaymentCard || req.PaymentMode == model.PaymentBankTransfer) && ref == "" {
        return nil, fmt.Errorf("%w for %s payments", ErrMissingPaymentReference, req.PaymentMode)
    }

    id, err := model.NewReservationID()
    if err != nil {
        return nil, fmt.Errorf("generate reservation id: %w", err)
    }

    res := &model.Reservation{
        ID:           id,
        CustomerName: req.CustomerName,
        RoomNumber:   req.RoomNumber,
        StartDate:    start,
        EndDate:      end,
        Segment:      req.Segment,
        PaymentMode:  req.PaymentMode,
        Status:       model.StatusPendingPayment,
    }
    if ref != "" {
        res.PaymentReference = &ref
    }
    if req.PaymentMode == model.PaymentCash {
        res.Status = model.StatusConfirmed
    }

    if req.PaymentMode == model.PaymentCard {
        result, err := e.verifier.Verify(ctx, ref)
        if err != nil {
            return nil, fmt.Errorf("card verification: %w", err)
        }
        if result.Status != gateway.StatusConfirmed {
            return nil, fmt.Errorf("%w: provider status %s", ErrPaymentRejected, result.Status)
        }
        res.Status = model.StatusConfirmed
    }

    if err := e.store.Create(ctx, res); err != nil {
        return nil, fmt.Errorf("persist reservation: %w", err)
    }
    log.Printf("engine: created reservation %s (%s, %s)", res.ID, res.PaymentMode, res.Status)

    if res.Status == model.StatusConfirmed {
        e.publishConfirmed(ctx, res)
    }
    return res, nil
}

// GetByID returns a single reservation.  The repository's
// ErrReservationNotFound passes through for the handler to map.
func (e *ReservationEngine) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
    return e.store.GetByID(ctx, id)
}

// ConfirmBankTransfer applies an externally triggered confirmation.  It is
// idempotent and tolerant of out-of-order delivery: unknown ids, records in
// another state and records on another payment channel are all logged
// no-ops, never errors.  Only genuine store failures are returned so the
// consumer can arrange redelivery.
func (e *ReservationEngine) ConfirmBankTransfer(ctx context.Context, reservationID string) error {
    res, err := e.store.GetByID(ctx, reservationID)
    if errors.Is(err, repository.ErrReservationNotFound) {
        log.Printf("engine: reservation %s not found - skipping", reservationID)
        return nil
    }
    if err != nil {
        return fmt.Errorf("load reservation %s: %w", reservationID, err)
    }

    ok, err := e.store.TransitionStatus(ctx, reservationID,
        model.StatusPendingPayment, model.PaymentBankTransfer, model.StatusConfirmed)
    if err != nil {
        return fmt.Errorf("confirm reservation %s: %w", reservationID, err)
    }
    if !ok {
        // duplicate event, out-of-order delivery, or the expiry sweep won
        log.Printf("engine: skipped %s (already %s)", reservationID, res.Status)
        return nil
    }

    log.Printf("engine: confirmed %s", reservationID)
    res.Status = model.StatusConfirmed
    e.publishConfirmed(ctx, res)
    return nil
}

// ExpireOverdue cancels every PENDING_PAYMENT bank-transfer reservation
// whose start date is today or earlier.  Per-record failures are logged and
// skipped so one bad record cannot abort the sweep; only the initial query
// error is returned.  It reports how many records were examined and how
// many were actually cancelled.
func (e *ReservationEngine) ExpireOverdue(ctx context.Context) (processed, cancelled int, err error) {
    cutoff := model.DateOnly(e.now())
    overdue, err := e.store.FindOverdue(ctx, model.StatusPendingPayment, model.PaymentBankTransfer, cutoff)
    if err != nil {
        return 0, 0, fmt.Errorf("query overdue reservations: %w", err)
    }

    for _, res := range overdue {
        processed++
        ok, err := e.store.TransitionStatus(ctx, res.ID,
            model.StatusPendingPayment, model.PaymentBankTransfer, model.StatusCancelled)
        if err != nil {
            log.Printf("engine: cancel %s failed: %v", res.ID, err)
            continue
        }
        if !ok {
            // the confirmation event won the race; leave it alone
            log.Printf("engine: skipped %s (no longer pending)", res.ID)
            continue
        }
        cancelled++
        log.Printf("engine: cancelled reservation %s", res.ID)
    }
    return processed, cancelled, nil
}

func (e *ReservationEngine) validateDates(start, end time.Time) error {
    if !end.After(start) {
        return fmt.Errorf("%w: end date must be after start date", ErrInvalidDateRange)
    }
    if end.Sub(start) > maxStayDays*24*time.Hour {
        return fmt.Errorf("%w: max stay is %d days", ErrInvalidDateRange, maxStayDays)
    }
    if start.Before(model.DateOnly(e.now())) {
        return fmt.Errorf("%w: start date must not be in the past", ErrInvalidDateRange)
    }
    return nil
}

// publishConfirmed emits a confirmation event.  Failures are logged only;
// the reservation state is already committed.
func (e *ReservationEngine) publishConfirmed(ctx context.Context, res *model.Reservation) {
    ev := queue.ReservationConfirmedEvent{
        EventID:       uuid.NewString(),
        ReservationID: res.ID,
        CustomerName:  res.CustomerName,
        RoomNumber:    res.RoomNumber,
        StartDate:     res.StartDate.Format(time.DateOnly),
        EndDate:       res.EndDate.Format(time.DateOnly),
        PaymentMode:   string(res.PaymentMode),
        ConfirmedAt:   e.now().UTC().Format(time.RFC3339),
    }
    if err := e.publisher.PublishReservationConfirmed(ctx, ev); err != nil {
        log.Printf("engine: publish confirmed event for %s failed: %v", res.ID, err)
    }
}
