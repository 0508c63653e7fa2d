package service

import (
    "context"
    "errors"
    "sync"
    "time"

    "github.com/marvelstay/room-reservation/internal/gateway"
    "github.com/marvelstay/room-reservation/internal/model"
    "github.com/marvelstay/room-reservation/internal/queue"
    "github.com/marvelstay/room-reservation/internal/repository"
)

// Common test errors
var (
    errMockStore   = errors.New("mock store error")
    errMockPublish = errors.New("mock publish error")
)

// fakeStore implements ReservationStore on a map with per-call failure
// injection.
type fakeStore struct {
    mu      sync.Mutex
    records map[string]model.Reservation

    createErr     error
    findErr       error
    transitionErr map[string]error // per reservation id
}

func newFakeStore() *fakeStore {
    return &fakeStore{
        records:       make(map[string]model.Reservation),
        transitionErr: make(map[string]error),
    }
}

func (s *fakeStore) Create(ctx context.Context, res *model.Reservation) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.createErr != nil {
        return s.createErr
    }
    res.CreatedAt = time.Now().UTC()
    res.UpdatedAt = res.CreatedAt
    s.records[res.ID] = *res
    return nil
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    res, ok := s.records[id]
    if !ok {
        return nil, repository.ErrReservationNotFound
    }
    return &res, nil
}

func (s *fakeStore) FindOverdue(ctx context.Context, status model.ReservationStatus, mode model.PaymentMode, cutoff time.Time) ([]model.Reservation, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.findErr != nil {
        return nil, s.findErr
    }
    var out []model.Reservation
    for _, res := range s.records {
        if res.Status == status && res.PaymentMode == mode && !res.StartDate.After(cutoff) {
            out = append(out, res)
        }
    }
    return out, nil
}

func (s *fakeStore) TransitionStatus(ctx context.Context, id string, from model.ReservationStatus, mode model.PaymentMode, to model.ReservationStatus) (bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if err := s.transitionErr[id]; err != nil {
        return false, err
    }
    res, ok := s.records[id]
    if !ok || res.Status != from || res.PaymentMode != mode {
        return false, nil
    }
    res.Status = to
    res.UpdatedAt = time.Now().UTC()
    s.records[id] = res
    return true, nil
}

// count returns how many stored records currently match the status.
func (s *fakeStore) count(status model.ReservationStatus) int {
    s.mu.Lock()
    defer s.mu.Unlock()
    n := 0
    for _, res := range s.records {
        if res.Status == status {
            n++
        }
    }
    return n
}

// fakeVerifier implements gateway.Verifier with a scripted outcome.
type fakeVerifier struct {
    mu     sync.Mutex
    calls  int
    result gateway.ConfirmationResult
    err    error
}

func (v *fakeVerifier) Verify(ctx context.Context, reference string) (gateway.ConfirmationResult, error) {
    v.mu.Lock()
    defer v.mu.Unlock()
    v.calls++
    return v.result, v.err
}

// fakePublisher records published confirmation events.
type fakePublisher struct {
    mu     sync.Mutex
    events []queue.ReservationConfirmedEvent
    err    error
}

func (p *fakePublisher) PublishReservationConfirmed(ctx context.Context, ev queue.ReservationConfirmedEvent) error {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.events = append(p.events, ev)
    return p.err
}
