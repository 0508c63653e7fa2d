package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/marvelstay/room-reservation/internal/model"
)

// ReservationRepo provides persistence for reservation records.  One row per
// reservation, keyed by the 8-character identifier.  Rows are inserted once
// and afterwards mutated only through guarded status transitions; they are
// never deleted.  All timestamp fields are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, customer_name, room_number, start_date, end_date,
    segment, payment_mode, payment_reference, status, created_at, updated_at`

// Create inserts a new reservation row.  The caller must have generated the
// identifier and decided the initial status; the insert happens exactly once,
// after all validation and any synchronous payment check succeeded.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
    const q = `INSERT INTO reservations
        (id, customer_name, room_number, start_date, end_date, segment, payment_mode, payment_reference, status)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    var ref sql.NullString
    if res.PaymentReference != nil {
        ref = sql.NullString{String: *res.PaymentReference, Valid: true}
    }
    if _, err := r.db.ExecContext(ctx, q,
        res.ID, res.CustomerName, res.RoomNumber, res.StartDate, res.EndDate,
        res.Segment, res.PaymentMode, ref, res.Status,
    ); err != nil {
        return err
    }
    // Query back the row to populate timestamps and defaults
    return r.db.QueryRowContext(ctx,
        `SELECT created_at, updated_at FROM reservations WHERE id = ?`, res.ID,
    ).Scan(&res.CreatedAt, &res.UpdatedAt)
}

// GetByID fetches a single reservation.  Returns ErrReservationNotFound when
// no row matches.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
    res, err := scanReservation(row)
    if err == sql.ErrNoRows {
        return nil, ErrReservationNotFound
    }
    if err != nil {
        return nil, err
    }
    return res, nil
}

// FindOverdue returns every reservation whose status and payment mode match
// exactly and whose start date is on or before the cutoff.  The boundary is
// inclusive: a reservation starting exactly on the cutoff date is returned.
func (r *ReservationRepo) FindOverdue(ctx context.Context, status model.ReservationStatus, mode model.PaymentMode, cutoff time.Time) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+reservationColumns+` FROM reservations
         WHERE status = ? AND payment_mode = ? AND start_date <= ?`,
        status, mode, model.DateOnly(cutoff))
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    var out []model.Reservation
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *res)
    }
    return out, rows.Err()
}

// TransitionStatus updates the status of a single reservation, guarded by
// its current (status, payment_mode) pair.  It reports whether a row was
// actually changed.  Zero rows means another trigger committed first or the
// record never matched; callers treat that as a harmless no-op.  The guard
// is what makes concurrent read-modify-write safe without per-record locks.
func (r *ReservationRepo) TransitionStatus(ctx context.Context, id string, from model.ReservationStatus, mode model.PaymentMode, to model.ReservationStatus) (bool, error) {
    res, err := r.db.ExecContext(ctx,
        `UPDATE reservations SET status = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND status = ? AND payment_mode = ?`,
        to, id, from, mode)
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanReservation.
type scanner interface {
    Scan(dest ...any) error
}

func scanReservation(s scanner) (*model.Reservation, error) {
    var res model.Reservation
    var ref sql.NullString
    err := s.Scan(
        &res.ID, &res.CustomerName, &res.RoomNumber, &res.StartDate, &res.EndDate,
        &res.Segment, &res.PaymentMode, &ref, &res.Status, &res.CreatedAt, &res.UpdatedAt,
    )
    if err != nil {
        return nil, err
    }
    if ref.Valid {
        v := ref.String
        res.PaymentReference = &v
    }
    return &res, nil
}
