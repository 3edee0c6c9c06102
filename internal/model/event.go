package model

import "time"

// Event approval statuses.  Every event starts out pending; approval
// and rejection are both reachable from each other again through the
// update flow, which demotes an approved event back to pending when
// its hall or time window changes.
const (
	EventPending  = "pending"
	EventApproved = "approved"
	EventRejected = "rejected"
)

// Event represents a hosted event as stored in the `events` table.
// An event optionally requests one hall for the `[StartDate, EndDate)`
// window; the hall is only actually reserved when an admin approves
// the event.
//
// Fields:
//  ID          – primary key identifier.
//  HostID      – user who created the event.
//  Title       – event title (opaque to the booking core).
//  Description – event description (opaque to the booking core).
//  Location    – free-form venue hint shown to attendees.
//  Category    – optional category label.
//  Image       – optional path of the uploaded poster image.
//  EventDate   – the advertised calendar date of the event.
//  EventTime   – the advertised start time as entered by the host.
//  StartDate   – start of the hall reservation window (nil when no
//                hall is requested).
//  EndDate     – end of the hall reservation window (nil when no
//                hall is requested).
//  Capacity    – maximum number of registered attendees.
//  PriceCents  – ticket price in cents; zero means a free event.
//  Status      – approval state (pending, approved, rejected).
//  HallID      – requested hall (nullable; an event references at
//                most one hall at a time).
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
	ID          uint64     // events.id
	HostID      uint64     // events.host_id
	Title       string     // events.title
	Description string     // events.description
	Location    string     // events.location
	Category    *string    // events.category (nullable)
	Image       *string    // events.image (nullable)
	EventDate   time.Time  // events.event_date
	EventTime   string     // events.event_time
	StartDate   *time.Time // events.start_date (nullable)
	EndDate     *time.Time // events.end_date (nullable)
	Capacity    uint32     // events.capacity
	PriceCents  uint32     // events.price_cents
	Status      string     // events.status
	HallID      *uint64    // events.hall_id (nullable)
	CreatedAt   time.Time  // events.created_at
	UpdatedAt   time.Time  // events.updated_at
}

// Free reports whether registration for the event carries no charge.
func (e *Event) Free() bool { return e.PriceCents == 0 }
