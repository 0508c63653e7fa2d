package service

import (
    "context"
    "errors"
    "fmt"
    "regexp"
    "testing"
    "time"

    "github.com/marvelstay/room-reservation/internal/gateway"
    "github.com/marvelstay/room-reservation/internal/model"
)

// fixed "today" for deterministic date invariants
var testToday = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func newTestEngine(store *fakeStore, verifier *fakeVerifier, publisher *fakePublisher) *ReservationEngine {
    e := NewReservationEngine(store, verifier, publisher)
    e.now = func() time.Time { return testToday }
    return e
}

func validRequest(mode model.PaymentMode, ref string) CreateReservationRequest {
    return CreateReservationRequest{
        CustomerName:     "John",
        RoomNumber:       "101",
        StartDate:        testToday.AddDate(0, 0, 1),
        EndDate:          testToday.AddDate(0, 0, 5),
        Segment:          model.SegmentMedium,
        PaymentMode:      mode,
        PaymentReference: ref,
    }
}

func TestCreate_Cash(t *testing.T) {
    ctx := context.Background()
    store := newFakeStore()
    verifier := &fakeVerifier{}
    publisher := &fakePublisher{}
    engine := newTestEngine(store, verifier, publisher)

    res, err := engine.Create(ctx, validRequest(model.PaymentCash, ""))
    if err != nil {
        t.Fatalf("Create failed: %v", err)
    }
    if res.Status != model.StatusConfirmed {
        t.Errorf("cash reservation must confirm immediately, got %s", res.Status)
    }
    if verifier.calls != 0 {
        t.Errorf("cash creation must not call the gateway, got %d calls", verifier.calls)
    }
    if !regexp.MustCompile(`^[A-Z0-9]{8}$`).MatchString(res.ID) {
        t.Errorf("id %q does not match the identifier format", res.ID)
    }
    if len(publisher.events) != 1 || publisher.events[0].ReservationID != res.ID {
        t.Errorf("expected one confirmed event for %s, got %v", res.ID, publisher.events)
    }
}

func TestCreate_BankTransfer(t *testing.T) {
    ctx := context.Background()
    store := newFakeStore()
    verifier := &fakeVerifier{}
    publisher := &fakePublisher{}
    engine := newTestEngine(store, verifier, publisher)

    res, err := engine.Create(ctx, validRequest(model.PaymentBankTransfer, "TRF-55"))
    if err != nil {
        t.Fatalf("Create failed: %v", err)
    }
    if res.Status != model.StatusPendingPayment {
        t.Errorf("bank transfer must start pending, got %s", res.Status)
    }
    if verifier.calls != 0 {
        t.Errorf("bank transfer creation must not call the gateway, got %d calls", verifier.calls)
    }
    if len(publisher.events) != 0 {
        t.Errorf("no confirmed event expected, got %v", publisher.events)
    }
}

func TestCreate_Card(t *testing.T) {
    ctx := context.Background()

    t.Run("confirmed verification persists a confirmed record", func(t *testing.T) {
        store := newFakeStore()
        verifier := &fakeVerifier{result: gateway.ConfirmationResult{Status: gateway.StatusConfirmed}}
        engine := newTestEngine(store, verifier, &fakePublisher{})

        res, err := engine.Create(ctx, validRequest(model.PaymentCard, "REF-123"))
        if err != nil {
            t.Fatalf("Create failed: %v", err)
        }
        if res.Status != model.StatusConfirmed {
            t.Errorf("expected CONFIRMED, got %s", res.Status)
        }
        if verifier.calls != 1 {
            t.Errorf("expected 1 gateway call, got %d", verifier.calls)
        }
    })

    t.Run("rejected verification persists nothing", func(t *testing.T) {
        store := newFakeStore()
        verifier := &fakeVerifier{result: gateway.ConfirmationResult{Status: gateway.StatusRejected}}
        engine := newTestEngine(store, verifier, &fakePublisher{})

        _, err := engine.Create(ctx, validRequest(model.PaymentCard, "REF-FAIL"))
        if !errors.Is(err, ErrPaymentRejected) {
            t.Fatalf("expected ErrPaymentRejected, got %v", err)
        }
        if len(store.records) != 0 {
            t.Errorf("store must stay empty after rejection, got %d records", len(store.records))
        }
    })

    t.Run("unknown provider status is treated as rejection", func(t *testing.T) {
        store := newFakeStore()
        verifier := &fakeVerifier{result: gateway.ConfirmationResult{Status: "IN_REVIEW"}}
        engine := newTestEngine(store, verifier, &fakePublisher{})

        _, err := engine.Create(ctx, validRequest(model.PaymentCard, "REF-77"))
        if !errors.Is(err, ErrPaymentRejected) {
            t.Fatalf("expected ErrPaymentRejected, got %v", err)
        }
        if len(store.records) != 0 {
            t.Errorf("store must stay empty, got %d records", len(store.records))
        }
    })

    t.Run("unavailable gateway persists nothing and propagates", func(t *testing.T) {
        store := newFakeStore()
        verifier := &fakeVerifier{err: fmt.Errorf("%w: circuit open", gateway.ErrUnavailable)}
        engine := newTestEngine(store, verifier, &fakePublisher{})

        _, err := engine.Create(ctx, validRequest(model.PaymentCard, "REF-123"))
        if !errors.Is(err, gateway.ErrUnavailable) {
            t.Fatalf("expected gateway.ErrUnavailable, got %v", err)
        }
        if len(store.records) != 0 {
            t.Errorf("store must stay empty, got %d records", len(store.records))
        }
    })

    t.Run("missing reference fails before any gateway call", func(t *testing.T) {
        for _, ref := range []string{"", "   "} {
            verifier := &fakeVerifier{}
            engine := newTestEngine(newFakeStore(), verifier, &fakePublisher{})

            _, err := engine.Create(ctx, validRequest(model.PaymentCard, ref))
            if !errors.Is(err, ErrMissingPaymentReference) {
                t.Fatalf("expected ErrMissingPaymentReference for %q, got %v", ref, err)
            }
            if verifier.calls != 0 {
                t.Errorf("gateway must not be called, got %d calls", verifier.calls)
            }
        }
    })
}

func TestCreate_DateValidation(t *testing.T) {
    ctx := context.Background()

    cases := map[string]struct {
        start, end time.Time
    }{
        "end before start":  {testToday.AddDate(0, 0, 5), testToday.AddDate(0, 0, 1)},
        "end equals start":  {testToday.AddDate(0, 0, 1), testToday.AddDate(0, 0, 1)},
        "longer than 30 days": {testToday.AddDate(0, 0, 1), testToday.AddDate(0, 0, 33)},
        "start in the past": {testToday.AddDate(0, 0, -1), testToday.AddDate(0, 0, 3)},
    }
    for name, tc := range cases {
        t.Run(name, func(t *testing.T) {
            store := newFakeStore()
            engine := newTestEngine(store, &fakeVerifier{}, &fakePublisher{})

            req := validRequest(model.PaymentCash, "")
            req.StartDate = tc.start
            req.EndDate = tc.end
            _, err := engine.Create(ctx, req)
            if !errors.Is(err, ErrInvalidDateRange) {
                t.Fatalf("expected ErrInvalidDateRange, got %v", err)
            }
            if len(store.records) != 0 {
                t.Errorf("nothing must be persisted, got %d records", len(store.records))
            }
        })
    }

    t.Run("exactly 30 days is allowed", func(t *testing.T) {
        engine := newTestEngine(newFakeStore(), &fakeVerifier{}, &fakePublisher{})
        req := validRequest(model.PaymentCash, "")
        req.EndDate = req.StartDate.AddDate(0, 0, 30)
        if _, err := engine.Create(ctx, req); err != nil {
            t.Fatalf("30-day stay must be accepted: %v", err)
        }
    })

    t.Run("start today is allowed", func(t *testing.T) {
        engine := newTestEngine(newFakeStore(), &fakeVerifier{}, &fakePublisher{})
        req := validRequest(model.PaymentCash, "")
        req.StartDate = testToday
        req.EndDate = testToday.AddDate(0, 0, 2)
        if _, err := engine.Create(ctx, req); err != nil {
            t.Fatalf("same-day start must be accepted: %v", err)
        }
    })
}

func TestConfirmBankTransfer(t *testing.T) {
    ctx := context.Background()

    seed := func(store *fakeStore, id string, status model.ReservationStatus, mode model.PaymentMode) {
        store.records[id] = model.Reservation{
            ID:          id,
            PaymentMode: mode,
            Status:      status,
            StartDate:   testToday.AddDate(0, 0, 1),
            EndDate:     testToday.AddDate(0, 0, 3),
        }
    }

    t.Run("pending bank transfer is confirmed", func(t *testing.T) {
        store := newFakeStore()
        publisher := &fakePublisher{}
        engine := newTestEngine(store, &fakeVerifier{}, publisher)
        seed(store, "RES00001", model.StatusPendingPayment, model.PaymentBankTransfer)

        if err := engine.ConfirmBankTransfer(ctx, "RES00001"); err != nil {
            t.Fatalf("confirm failed: %v", err)
        }
        if got := store.records["RES00001"].Status; got != model.StatusConfirmed {
            t.Errorf("expected CONFIRMED, got %s", got)
        }
        if len(publisher.events) != 1 {
            t.Errorf("expected one confirmed event, got %d", len(publisher.events))
        }
    })

    t.Run("replaying the event is a no-op", func(t *testing.T) {
        store := newFakeStore()
        engine := newTestEngine(store, &fakeVerifier{}, &fakePublisher{})
        seed(store, "RES00001", model.StatusPendingPayment, model.PaymentBankTransfer)

        if err := engine.ConfirmBankTransfer(ctx, "RES00001"); err != nil {
            t.Fatalf("first confirm failed: %v", err)
        }
        if err := engine.ConfirmBankTransfer(ctx, "RES00001"); err != nil {
            t.Fatalf("replay must not error: %v", err)
        }
        if got := store.records["RES00001"].Status; got != model.StatusConfirmed {
            t.Errorf("expected CONFIRMED after replay, got %s", got)
        }
    })

    t.Run("unknown id is a no-op", func(t *testing.T) {
        store := newFakeStore()
        engine := newTestEngine(store, &fakeVerifier{}, &fakePublisher{})

        if err := engine.ConfirmBankTransfer(ctx, "NOPE0000"); err != nil {
            t.Fatalf("unknown id must not error: %v", err)
        }
        if len(store.records) != 0 {
            t.Errorf("no record must be created, got %d", len(store.records))
        }
    })

    t.Run("non bank-transfer record is left untouched", func(t *testing.T) {
        store := newFakeStore()
        engine := newTestEngine(store, &fakeVerifier{}, &fakePublisher{})
        seed(store, "RES00002", model.StatusPendingPayment, model.PaymentCard)

        if err := engine.ConfirmBankTransfer(ctx, "RES00002"); err != nil {
            t.Fatalf("confirm must not error: %v", err)
        }
        if got := store.records["RES00002"].Status; got != model.StatusPendingPayment {
            t.Errorf("card record must stay pending, got %s", got)
        }
    })

    t.Run("cancelled record stays cancelled", func(t *testing.T) {
        store := newFakeStore()
        publisher := &fakePublisher{}
        engine := newTestEngine(store, &fakeVerifier{}, publisher)
        seed(store, "RES00003", model.StatusCancelled, model.PaymentBankTransfer)

        if err := engine.ConfirmBankTransfer(ctx, "RES00003"); err != nil {
            t.Fatalf("confirm must not error: %v", err)
        }
        if got := store.records["RES00003"].Status; got != model.StatusCancelled {
            t.Errorf("terminal state must not change, got %s", got)
        }
        if len(publisher.events) != 0 {
            t.Errorf("no event expected for a lost race, got %d", len(publisher.events))
        }
    })
}

func TestExpireOverdue(t *testing.T) {
    ctx := context.Background()

    seed := func(store *fakeStore, id string, status model.ReservationStatus, mode model.PaymentMode, start time.Time) {
        store.records[id] = model.Reservation{
            ID: id, Status: status, PaymentMode: mode,
            StartDate: start, EndDate: start.AddDate(0, 0, 2),
        }
    }

    t.Run("cancels exactly the overdue pending bank transfers", func(t *testing.T) {
        store := newFakeStore()
        engine := newTestEngine(store, &fakeVerifier{}, &fakePublisher{})

        seed(store, "OVERDUE1", model.StatusPendingPayment, model.PaymentBankTransfer, testToday.AddDate(0, 0, -1))
        seed(store, "ONCUTOFF", model.StatusPendingPayment, model.PaymentBankTransfer, testToday) // inclusive boundary
        seed(store, "FUTURE01", model.StatusPendingPayment, model.PaymentBankTransfer, testToday.AddDate(0, 0, 2))
        seed(store, "CARDPEND", model.StatusPendingPayment, model.PaymentCard, testToday.AddDate(0, 0, -1))
        seed(store, "DONE0001", model.StatusConfirmed, model.PaymentBankTransfer, testToday.AddDate(0, 0, -1))

        processed, cancelled, err := engine.ExpireOverdue(ctx)
        if err != nil {
            t.Fatalf("sweep failed: %v", err)
        }
        if processed != 2 || cancelled != 2 {
            t.Errorf("expected processed=2 cancelled=2, got %d/%d", processed, cancelled)
        }
        for id, want := range map[string]model.ReservationStatus{
            "OVERDUE1": model.StatusCancelled,
            "ONCUTOFF": model.StatusCancelled,
            "FUTURE01": model.StatusPendingPayment,
            "CARDPEND": model.StatusPendingPayment,
            "DONE0001": model.StatusConfirmed,
        } {
            if got := store.records[id].Status; got != want {
                t.Errorf("%s: expected %s, got %s", id, want, got)
            }
        }
    })

    t.Run("one bad record does not abort the sweep", func(t *testing.T) {
        store := newFakeStore()
        engine := newTestEngine(store, &fakeVerifier{}, &fakePublisher{})

        seed(store, "BAD00001", model.StatusPendingPayment, model.PaymentBankTransfer, testToday.AddDate(0, 0, -3))
        seed(store, "GOOD0001", model.StatusPendingPayment, model.PaymentBankTransfer, testToday.AddDate(0, 0, -3))
        store.transitionErr["BAD00001"] = errMockStore

        processed, cancelled, err := engine.ExpireOverdue(ctx)
        if err != nil {
            t.Fatalf("sweep must not propagate per-record failures: %v", err)
        }
        if processed != 2 {
            t.Errorf("expected processed=2, got %d", processed)
        }
        if cancelled != 1 {
            t.Errorf("expected cancelled=1, got %d", cancelled)
        }
        if got := store.records["GOOD0001"].Status; got != model.StatusCancelled {
            t.Errorf("healthy record must still be cancelled, got %s", got)
        }
    })

    t.Run("query failure is returned to the caller", func(t *testing.T) {
        store := newFakeStore()
        store.findErr = errMockStore
        engine := newTestEngine(store, &fakeVerifier{}, &fakePublisher{})

        _, _, err := engine.ExpireOverdue(ctx)
        if !errors.Is(err, errMockStore) {
            t.Fatalf("expected the query error, got %v", err)
        }
    })
}

func TestCreate_PublishFailureDoesNotFailCreation(t *testing.T) {
    ctx := context.Background()
    store := newFakeStore()
    publisher := &fakePublisher{err: errMockPublish}
    engine := newTestEngine(store, &fakeVerifier{}, publisher)

    res, err := engine.Create(ctx, validRequest(model.PaymentCash, ""))
    if err != nil {
        t.Fatalf("publish failure must not fail creation: %v", err)
    }
    if store.count(model.StatusConfirmed) != 1 {
        t.Errorf("reservation must be persisted, store has %d confirmed", store.count(model.StatusConfirmed))
    }
    if res.Status != model.StatusConfirmed {
        t.Errorf("expected CONFIRMED, got %s", res.Status)
    }
}
