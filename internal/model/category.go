package model

import "time"

// HostCategory labels the kind of events a host puts on (weddings,
// conferences, concerts and so on).  The catalogue is maintained by
// admins; hosts pick one on their profile.
type HostCategory struct {
	ID          uint64    // host_categories.id
	Name        string    // host_categories.name
	Description string    // host_categories.description
	CreatedAt   time.Time // host_categories.created_at
	UpdatedAt   time.Time // host_categories.updated_at
}
