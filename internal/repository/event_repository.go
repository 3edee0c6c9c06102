package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-hall-reservation/internal/model"
)

// EventRepo provides CRUD operations for events and their attendee
// registrations.  Registrations live in the event_registrations join
// table keyed by (event_id, user_id); the composite primary key rejects
// duplicate registrations at the store level and the conditional insert
// in AddRegistration keeps the attendee count within capacity even
// under concurrent requests.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, host_id, title, description, location, category, image,
	event_date, event_time, start_date, end_date, capacity, price_cents,
	status, hall_id, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (*model.Event, error) {
	var ev model.Event
	var category, image sql.NullString
	var startDate, endDate sql.NullTime
	var hallID sql.NullInt64
	err := row.Scan(
		&ev.ID, &ev.HostID, &ev.Title, &ev.Description, &ev.Location, &category, &image,
		&ev.EventDate, &ev.EventTime, &startDate, &endDate, &ev.Capacity, &ev.PriceCents,
		&ev.Status, &hallID, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		ev.Category = &category.String
	}
	if image.Valid {
		ev.Image = &image.String
	}
	if startDate.Valid {
		t := startDate.Time
		ev.StartDate = &t
	}
	if endDate.Valid {
		t := endDate.Time
		ev.EndDate = &t
	}
	if hallID.Valid {
		id := uint64(hallID.Int64)
		ev.HallID = &id
	}
	return &ev, nil
}

// Create inserts a new event with status pending and populates the
// generated ID on the passed record.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events
	           (host_id, title, description, location, category, image,
	            event_date, event_time, start_date, end_date, capacity, price_cents, status, hall_id)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending', ?)`
	res, err := r.db.ExecContext(ctx, q,
		ev.HostID, ev.Title, ev.Description, ev.Location, ev.Category, ev.Image,
		ev.EventDate, ev.EventTime, nullableTime(ev.StartDate), nullableTime(ev.EndDate),
		ev.Capacity, ev.PriceCents, ev.HallID,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	ev.Status = model.EventPending
	return nil
}

// GetByID fetches a single event.  Returns ErrEventNotFound when no
// row exists.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	return ev, err
}

// Update rewrites every mutable column of the event.  The lifecycle
// engine decides beforehand whether the change demotes an approved
// event back to pending; this method just persists the record as given.
func (r *EventRepo) Update(ctx context.Context, ev *model.Event) error {
	const q = `UPDATE events SET
	           title = ?, description = ?, location = ?, category = ?, image = ?,
	           event_date = ?, event_time = ?, start_date = ?, end_date = ?,
	           capacity = ?, price_cents = ?, status = ?, hall_id = ?
	           WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		ev.Title, ev.Description, ev.Location, ev.Category, ev.Image,
		ev.EventDate, ev.EventTime, nullableTime(ev.StartDate), nullableTime(ev.EndDate),
		ev.Capacity, ev.PriceCents, ev.Status, ev.HallID, ev.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// SetStatus flips only the approval status.
func (r *EventRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE events SET status = ? WHERE id = ?`, status, id)
	return err
}

// SetStatusClearHall flips the approval status and clears the hall
// reference in one statement, used when a rejection detaches the event
// from the hall it had reserved.
func (r *EventRepo) SetStatusClearHall(ctx context.Context, id uint64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET status = ?, hall_id = NULL WHERE id = ?`, status, id)
	return err
}

// Delete removes the event row.  Registrations are removed in the same
// statement batch so no orphaned links survive.
func (r *EventRepo) Delete(ctx context.Context, id uint64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM event_registrations WHERE event_id = ?`, id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}

// CountRegistrations returns the current attendee count for the event.
func (r *EventRepo) CountRegistrations(ctx context.Context, eventID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_registrations WHERE event_id = ?`, eventID).Scan(&n)
	return n, err
}

// IsRegistered reports whether the user is registered for the event.
func (r *EventRepo) IsRegistered(ctx context.Context, eventID, userID uint64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM event_registrations WHERE event_id = ? AND user_id = ? LIMIT 1`,
		eventID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AddRegistration links the user to the event unless the event is
// already at capacity.  The capacity check and the insert run as a
// single conditional statement so concurrent registrations can never
// push the attendee count past the limit; a duplicate insert fails on
// the composite primary key and maps to ErrAlreadyRegistered.
func (r *EventRepo) AddRegistration(ctx context.Context, eventID, userID uint64, capacity uint32) error {
	const q = `INSERT INTO event_registrations (event_id, user_id)
	           SELECT ?, ? FROM DUAL
	           WHERE (SELECT COUNT(*) FROM event_registrations WHERE event_id = ?) < ?`
	res, err := r.db.ExecContext(ctx, q, eventID, userID, eventID, capacity)
	if err != nil {
		// MySQL error 1062: duplicate entry for the primary key.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrAlreadyRegistered
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCapacityFull
	}
	return nil
}

// RemoveRegistration unlinks the user from the event.  Removing a link
// that is already gone is not an error, so a retried unregister cascade
// is harmless.
func (r *EventRepo) RemoveRegistration(ctx context.Context, eventID, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM event_registrations WHERE event_id = ? AND user_id = ?`, eventID, userID)
	return err
}

// RemoveAllRegistrationsForUser unlinks the user from every event,
// used when an admin deletes a user account.
func (r *EventRepo) RemoveAllRegistrationsForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM event_registrations WHERE user_id = ?`, userID)
	return err
}

// EventFilter restricts listing queries.  Zero values mean "no
// restriction" (Status empty, HostID zero, Window empty).  Window is
// "upcoming" or "past" relative to Now and compares against end_date.
type EventFilter struct {
	Status string
	HostID uint64
	Window string
	Now    time.Time
}

func (f EventFilter) where() (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.HostID != 0 {
		clauses = append(clauses, "host_id = ?")
		args = append(args, f.HostID)
	}
	switch f.Window {
	case "upcoming":
		clauses = append(clauses, "end_date >= ?")
		args = append(args, f.Now.UTC())
	case "past":
		clauses = append(clauses, "end_date < ?")
		args = append(args, f.Now.UTC())
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns events matching the filter ordered by event date, with
// offset/limit pagination.
func (r *EventRepo) List(ctx context.Context, f EventFilter, offset, limit int) ([]model.Event, error) {
	where, args := f.where()
	q := `SELECT ` + eventColumns + ` FROM events` + where + ` ORDER BY event_date, id`
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of events matching the filter.
func (r *EventRepo) Count(ctx context.Context, f EventFilter) (int, error) {
	where, args := f.where()
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`+where, args...).Scan(&n)
	return n, err
}

// ListRegisteredForUser returns the approved events the user is
// registered for, honoring the upcoming/past window filter.
func (r *EventRepo) ListRegisteredForUser(ctx context.Context, userID uint64, f EventFilter, offset, limit int) ([]model.Event, error) {
	clauses := []string{"r.user_id = ?", "e.status = 'approved'"}
	args := []interface{}{userID}
	switch f.Window {
	case "upcoming":
		clauses = append(clauses, "e.end_date >= ?")
		args = append(args, f.Now.UTC())
	case "past":
		clauses = append(clauses, "e.end_date < ?")
		args = append(args, f.Now.UTC())
	}
	q := `SELECT e.id, e.host_id, e.title, e.description, e.location, e.category, e.image,
	             e.event_date, e.event_time, e.start_date, e.end_date, e.capacity, e.price_cents,
	             e.status, e.hall_id, e.created_at, e.updated_at
	      FROM events e
	      JOIN event_registrations r ON r.event_id = e.id
	      WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY e.event_date, e.id`
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CountApprovedByHost returns how many approved events the host still
// owns.  Admins refuse to delete a host account while this is non-zero.
func (r *EventRepo) CountApprovedByHost(ctx context.Context, hostID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE host_id = ? AND status = 'approved'`, hostID).Scan(&n)
	return n, err
}

// CountApprovedByHall returns how many approved events link to the
// hall.  Hall deletion is refused while this is non-zero.
func (r *EventRepo) CountApprovedByHall(ctx context.Context, hallID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE hall_id = ? AND status = 'approved'`, hallID).Scan(&n)
	return n, err
}

// CountApprovedByHallOverCapacity returns how many approved events on
// the hall declare a capacity above the given limit.  Hall capacity
// reductions are refused while this is non-zero.
func (r *EventRepo) CountApprovedByHallOverCapacity(ctx context.Context, hallID uint64, capacity uint32) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM events WHERE hall_id = ? AND status = 'approved' AND capacity > ?`,
		hallID, capacity).Scan(&n)
	return n, err
}

// HasApprovedOverlap reports whether an approved event on the hall has
// a window overlapping `[start, end)`.  This is the pre-check used at
// event creation time, before any reservation exists; approval later
// re-checks against the reservation store.
func (r *EventRepo) HasApprovedOverlap(ctx context.Context, hallID uint64, start, end time.Time) (bool, error) {
	const q = `SELECT id FROM events
	           WHERE hall_id = ? AND status = 'approved'
	             AND start_date < ? AND end_date > ?
	           LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, hallID, end.UTC(), start.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
