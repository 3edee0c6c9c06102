package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-hall-reservation/internal/model"
)

// ReservationRepo provides data access to the hall_reservations table.
// Reservations bind one event to one hall for a half-open time window
// `[start_date, end_date)` and are mutated exclusively by the lifecycle
// engine and the expiry sweeper.  All timestamp comparisons are
// performed in UTC; the DSN opens the connection with loc=UTC so
// DATETIME columns scan into UTC time.Time values.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// FindConflict reports whether any reserved reservation on the hall
// overlaps the half-open window `[start, end)`.  Two windows overlap
// iff s1 < e2 AND s2 < e1, so back-to-back bookings that touch at a
// boundary do not conflict.  When excludeEventID is non-zero the
// reservation belonging to that event is ignored, which lets an update
// check a new slot against everyone else's reservations.  The query is
// read-only and safe to call repeatedly and concurrently.
func (r *ReservationRepo) FindConflict(ctx context.Context, hallID uint64, start, end time.Time, excludeEventID uint64) (bool, error) {
	const q = `SELECT id FROM hall_reservations
	           WHERE hall_id = ? AND status = 'reserved'
	             AND start_date < ? AND end_date > ?
	             AND event_id <> ?
	           LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, hallID, end, start, excludeEventID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Reserve inserts a reserved row for the event's hall and window unless
// an overlapping reserved window already exists on the same hall.  The
// availability check and the insert run as one INSERT .. SELECT ..
// WHERE NOT EXISTS statement, so no concurrent approval can observe the
// hall as free between this reservation's check and its write; the
// losing writer gets ErrOverlap.  On success the generated ID is
// populated on the passed record.
func (r *ReservationRepo) Reserve(ctx context.Context, res *model.HallReservation) error {
	const q = `INSERT INTO hall_reservations (hall_id, event_id, start_date, end_date, status)
	           SELECT ?, ?, ?, ?, 'reserved' FROM DUAL
	           WHERE NOT EXISTS (
	               SELECT 1 FROM hall_reservations
	               WHERE hall_id = ? AND status = 'reserved'
	                 AND start_date < ? AND end_date > ?
	                 AND event_id <> ?
	           )`
	result, err := r.db.ExecContext(ctx, q,
		res.HallID, res.EventID, res.StartDate.UTC(), res.EndDate.UTC(),
		res.HallID, res.EndDate.UTC(), res.StartDate.UTC(), res.EventID,
	)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrOverlap
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	res.Status = model.ReservationReserved
	return nil
}

// GetByEvent returns the reservation owned by the given event, or nil
// when the event holds none.  An event owns at most one reservation.
func (r *ReservationRepo) GetByEvent(ctx context.Context, eventID uint64) (*model.HallReservation, error) {
	const q = `SELECT id, hall_id, event_id, start_date, end_date, status, created_at, updated_at
	           FROM hall_reservations WHERE event_id = ? LIMIT 1`
	var res model.HallReservation
	err := r.db.QueryRowContext(ctx, q, eventID).Scan(
		&res.ID, &res.HallID, &res.EventID, &res.StartDate, &res.EndDate,
		&res.Status, &res.CreatedAt, &res.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteByEvent removes the reservation owned by the given event and
// returns the removed record so the caller can re-derive the occupancy
// of the hall it referenced.  The reservation's own hall column is the
// one to recompute; the event's hall field may already have been
// cleared mid-cascade.  Returns (nil, nil) when the event holds no
// reservation, which makes re-approval and repeated deletes idempotent.
func (r *ReservationRepo) DeleteByEvent(ctx context.Context, eventID uint64) (*model.HallReservation, error) {
	res, err := r.GetByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM hall_reservations WHERE id = ?`, res.ID); err != nil {
		return nil, err
	}
	return res, nil
}

// Delete removes a single reservation row by ID.  Deleting a row that
// is already gone is not an error, so a retried sweep pass is harmless.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM hall_reservations WHERE id = ?`, id)
	return err
}

// AnyActiveForHall reports whether any reserved reservation with an end
// date still in the future references the hall.  This is the single
// occupancy query shared by the lifecycle engine and the expiry
// sweeper: both free a hall exactly when this returns false, so the
// request-driven paths and the sweep can never disagree about when a
// hall is available.  Callers run it only after the triggering
// reservation delete has committed.
func (r *ReservationRepo) AnyActiveForHall(ctx context.Context, hallID uint64, now time.Time) (bool, error) {
	const q = `SELECT id FROM hall_reservations
	           WHERE hall_id = ? AND status = 'reserved' AND end_date > ?
	           LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, hallID, now.UTC()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListExpired returns every reservation whose end date has passed.
// The sweeper deletes these and then reclaims the halls that no longer
// carry an active reservation.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time) ([]model.HallReservation, error) {
	const q = `SELECT id, hall_id, event_id, start_date, end_date, status, created_at, updated_at
	           FROM hall_reservations WHERE end_date <= ?`
	rows, err := r.db.QueryContext(ctx, q, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.HallReservation
	for rows.Next() {
		var res model.HallReservation
		if err := rows.Scan(
			&res.ID, &res.HallID, &res.EventID, &res.StartDate, &res.EndDate,
			&res.Status, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByHall returns all reservations referencing the hall ordered by
// start date.  Used by admin listings; not part of any cascade.
func (r *ReservationRepo) ListByHall(ctx context.Context, hallID uint64) ([]model.HallReservation, error) {
	const q = `SELECT id, hall_id, event_id, start_date, end_date, status, created_at, updated_at
	           FROM hall_reservations WHERE hall_id = ? ORDER BY start_date`
	rows, err := r.db.QueryContext(ctx, q, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.HallReservation, 0)
	for rows.Next() {
		var res model.HallReservation
		if err := rows.Scan(
			&res.ID, &res.HallID, &res.EventID, &res.StartDate, &res.EndDate,
			&res.Status, &res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
