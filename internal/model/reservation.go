package model

import "time"

// Hall reservation statuses.
const (
	ReservationReserved  = "reserved"
	ReservationCancelled = "cancelled"
)

// HallReservation is the authoritative record binding one event to one
// hall for a time window.  Reservations are created only as a side
// effect of event approval and removed as a side effect of rejection,
// deletion or a slot change; clients never create them directly.
//
// Invariant: for a given hall, no two rows with status `reserved` may
// have overlapping half-open `[StartDate, EndDate)` windows.  The
// repository enforces this with a conditional insert so that the loser
// of a concurrent approval race fails instead of double-booking.
//
// Fields:
//  ID        – primary key identifier.
//  HallID    – hall being reserved.
//  EventID   – event owning the reservation (at most one per event).
//  StartDate – start of the reserved window (inclusive).
//  EndDate   – end of the reserved window (exclusive).
//  Status    – reserved or cancelled.
//  CreatedAt – creation timestamp.
//  UpdatedAt – last update timestamp.
type HallReservation struct {
	ID        uint64    // hall_reservations.id
	HallID    uint64    // hall_reservations.hall_id
	EventID   uint64    // hall_reservations.event_id
	StartDate time.Time // hall_reservations.start_date
	EndDate   time.Time // hall_reservations.end_date
	Status    string    // hall_reservations.status
	CreatedAt time.Time // hall_reservations.created_at
	UpdatedAt time.Time // hall_reservations.updated_at
}
