// Package repository defines the durable storage layer for reservations and
// staff accounts.  Sentinel error values let higher layers such as the
// lifecycle engine and handlers distinguish failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrReservationNotFound is returned when a lookup by id matches no row.
// The lifecycle engine treats it as a no-op on the event confirmation path.
var ErrReservationNotFound = errors.New("reservation not found")

// ErrEmailExists is returned when staff registration collides with an
// existing account.  Handlers translate this into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")
