// Package queue defines message payloads exchanged over the message broker
// and the consumer for inbound bank-transfer payment updates.
package queue

import (
    "errors"
    "regexp"
    "strings"
)

// PaymentUpdateEvent is the inbound payment-update message.  The reservation
// identifier is not a first-class field; it has to be parsed out of the
// free-text transaction description, which carries an end-to-end token
// followed by the 8-character reservation id.
type PaymentUpdateEvent struct {
    TransactionID          string  `json:"transactionId"`
    AccountID              string  `json:"accountId"`
    Amount                 float64 `json:"amount"`
    TransactionDescription string  `json:"transactionDescription"`
}

// ReservationConfirmedEvent is published when a reservation reaches
// CONFIRMED by any path.  It contains enough information for downstream
// consumers to notify or trigger analytics without querying the primary
// database.
type ReservationConfirmedEvent struct {
    EventID       string `json:"event_id"`
    ReservationID string `json:"reservation_id"`
    CustomerName  string `json:"customer_name"`
    RoomNumber    string `json:"room_number"`
    StartDate     string `json:"start_date"`
    EndDate       string `json:"end_date"`
    PaymentMode   string `json:"payment_mode"`
    ConfirmedAt   string `json:"confirmed_at"`
}

// ErrMalformedReference is returned when no valid reservation identifier can
// be extracted from a payment update.  Such messages are poison: redelivery
// cannot fix them, so the consumer dead-letters them immediately.
var ErrMalformedReference = errors.New("malformed transaction description")

var reservationIDPattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// ExtractReservationID parses the reservation identifier out of a
// transaction description formatted as "<E2E-token> <reservation-id>".  The
// description is split on whitespace; the second token must be exactly 8
// uppercase alphanumeric characters.
func ExtractReservationID(description string) (string, error) {
    parts := strings.Fields(description)
    if len(parts) < 2 {
        return "", ErrMalformedReference
    }
    id := parts[1]
    if !reservationIDPattern.MatchString(id) {
        return "", ErrMalformedReference
    }
    return id, nil
}
