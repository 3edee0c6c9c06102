// Package queue defines message payloads exchanged over the message broker.
package queue

// EventApprovedEvent is published when an admin approves an event and
// its hall reservation lands. It contains enough information for
// downstream consumers to log, notify, or trigger analytics without
// querying the primary database.
type EventApprovedEvent struct {
	EventID       uint64 `json:"event_id"`
	HostID        uint64 `json:"host_id"`
	Title         string `json:"title"`
	HallID        uint64 `json:"hall_id"`
	HallName      string `json:"hall_name"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	Capacity      uint32 `json:"capacity"`
	PriceCents    uint32 `json:"price_cents"`
	ReservationID uint64 `json:"reservation_id"`
	ApprovedAt    string `json:"approved_at"`
}
