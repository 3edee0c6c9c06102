// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// lifecycle engine and handlers to distinguish between different failure
// scenarios without inspecting raw SQL errors. For example, ErrOverlap
// signals that a reservation insert lost against an existing reserved
// window.
package repository

import "errors"

// ErrEventNotFound is returned when an event lookup fails.
var ErrEventNotFound = errors.New("event not found")

// ErrHallNotFound is returned when a hall lookup fails.
var ErrHallNotFound = errors.New("hall not found")

// ErrPaymentNotFound is returned when a payment lookup fails.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrOverlap is returned by ReservationRepo.Reserve when the requested
// window overlaps an existing reserved window on the same hall.  The
// availability check and the insert happen in a single statement, so
// the loser of a concurrent approval race receives this error instead
// of silently double-booking the hall.
var ErrOverlap = errors.New("hall already reserved for the requested window")

// ErrAlreadyRegistered is returned when a user attempts to register for
// an event they are already registered for.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrCapacityFull is returned when a registration insert would push the
// attendee count past the event's capacity.
var ErrCapacityFull = errors.New("event is fully booked")

// ErrCategoryNotFound is returned when a host category lookup fails.
var ErrCategoryNotFound = errors.New("host category not found")
