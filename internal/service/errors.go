// Package service holds the reservation lifecycle engine.  It owns the
// state machine and every transition between PENDING_PAYMENT, CONFIRMED and
// CANCELLED; repositories, the payment gateway and the broker are reached
// only through the interfaces the engine is constructed with.
package service

import "errors"

// ErrInvalidDateRange is returned when creation dates violate an invariant:
// end not after start, a stay longer than 30 days, or a start in the past.
// Handlers translate this into an HTTP 400 response.
var ErrInvalidDateRange = errors.New("invalid reservation date range")

// ErrMissingPaymentReference is returned when a CARD or BANK_TRANSFER
// reservation is created without a payment reference.  Handlers translate
// this into an HTTP 400 response.
var ErrMissingPaymentReference = errors.New("payment reference is required")

// ErrPaymentRejected is returned when the gateway answered and did not
// confirm the payment.  The reservation is never persisted in that case.
// Handlers translate this into an HTTP 402 response.
var ErrPaymentRejected = errors.New("payment rejected")
