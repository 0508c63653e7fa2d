package model

import (
    "crypto/rand"
    "time"
)

// ReservationStatus enumerates the lifecycle states of a reservation.
// CONFIRMED and CANCELLED are terminal; a record never leaves them.
type ReservationStatus string

const (
    StatusPendingPayment ReservationStatus = "PENDING_PAYMENT"
    StatusConfirmed      ReservationStatus = "CONFIRMED"
    StatusCancelled      ReservationStatus = "CANCELLED"
)

// PaymentMode enumerates the supported payment channels.  The channel
// decides how a reservation gets confirmed: CASH immediately, CARD through
// a synchronous gateway check, BANK_TRANSFER through an inbound payment
// update event.
type PaymentMode string

const (
    PaymentCash         PaymentMode = "CASH"
    PaymentCard         PaymentMode = "CARD"
    PaymentBankTransfer PaymentMode = "BANK_TRANSFER"
)

// RoomSegment enumerates the room tiers offered by the property.
type RoomSegment string

const (
    SegmentBudget  RoomSegment = "BUDGET"
    SegmentMedium  RoomSegment = "MEDIUM"
    SegmentPremium RoomSegment = "PREMIUM"
)

// Reservation is the central entity: a booked room for a date range with a
// payment channel and status.  Records are never deleted; terminal states
// are kept for audit.
//
// Fields:
//  ID               – 8-character uppercase alphanumeric identifier,
//                     fixed at creation.
//  CustomerName     – name of the guest the room is booked for.
//  RoomNumber       – room being reserved.
//  StartDate        – first night, stored as a DATE at UTC midnight.
//  EndDate          – checkout date.
//  Segment          – room tier (BUDGET, MEDIUM, PREMIUM).
//  PaymentMode      – payment channel (CASH, CARD, BANK_TRANSFER).
//  PaymentReference – external payment reference; nil for CASH.
//  Status           – lifecycle state.
type Reservation struct {
    ID               string            // reservations.id
    CustomerName     string            // reservations.customer_name
    RoomNumber       string            // reservations.room_number
    StartDate        time.Time         // reservations.start_date
    EndDate          time.Time         // reservations.end_date
    Segment          RoomSegment       // reservations.segment
    PaymentMode      PaymentMode       // reservations.payment_mode
    PaymentReference *string           // reservations.payment_reference (nullable)
    Status           ReservationStatus // reservations.status
    CreatedAt        time.Time         // reservations.created_at
    UpdatedAt        time.Time         // reservations.updated_at
}

// IsTerminal reports whether the reservation can no longer change state.
func (r *Reservation) IsTerminal() bool {
    return r.Status == StatusConfirmed || r.Status == StatusCancelled
}

// ValidMode reports whether m is one of the known payment channels.
func ValidMode(m PaymentMode) bool {
    return m == PaymentCash || m == PaymentCard || m == PaymentBankTransfer
}

// ValidSegment reports whether s is one of the known room tiers.
func ValidSegment(s RoomSegment) bool {
    return s == SegmentBudget || s == SegmentMedium || s == SegmentPremium
}

// The id doubles as the correlation key parsed out of inbound payment
// update events, so the alphabet is restricted to uppercase alphanumerics.
const (
    reservationIDLen   = 8
    reservationIDChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewReservationID generates a random 8-character uppercase alphanumeric
// identifier using crypto/rand.
func NewReservationID() (string, error) {
    buf := make([]byte, reservationIDLen)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    out := make([]byte, reservationIDLen)
    for i, b := range buf {
        out[i] = reservationIDChars[int(b)%len(reservationIDChars)]
    }
    return string(out), nil
}

// DateOnly truncates t to midnight UTC.  Reservation dates are calendar
// dates; comparisons against "today" must not depend on the time of day.
func DateOnly(t time.Time) time.Time {
    y, m, d := t.UTC().Date()
    return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
