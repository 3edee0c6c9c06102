package model

import "time"

// Hall statuses.  The status column is a derived, advisory flag: the
// authoritative occupancy state lives in the hall_reservations table
// and the flag is recomputed from it after every mutation.
const (
	HallAvailable = "available"
	HallReserved  = "reserved"
)

// Hall represents a physical venue that events can reserve.  A hall
// carries a fixed capacity; an event may only be approved into a hall
// whose capacity is at least the event's own.  This struct corresponds
// to a row in the `halls` table.
//
// Fields:
//  ID        – primary key identifier.
//  Name      – human readable label for the hall.
//  Location  – free-form address or description of where the hall is.
//  Capacity  – maximum number of attendees the hall can hold.
//  Status    – derived occupancy flag (available or reserved).
//  CreatedAt – timestamp when the hall was created.
//  UpdatedAt – timestamp of last update.
type Hall struct {
	ID        uint64    // halls.id
	Name      string    // halls.name
	Location  string    // halls.location
	Capacity  uint32    // halls.capacity
	Status    string    // halls.status
	CreatedAt time.Time // halls.created_at
	UpdatedAt time.Time // halls.updated_at
}
