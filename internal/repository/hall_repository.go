package repository // repository holds data access logic for domain entities

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-hall-reservation/internal/model"
)

// HallRepo provides methods to create, retrieve and mutate halls.  The
// hall status column is advisory: it is only ever written through
// SetStatus with a value derived from the hall_reservations table, or
// through an explicit administrative override that must satisfy the
// same derivation afterwards.
type HallRepo struct {
	db *sql.DB // db is the underlying database connection
}

// NewHallRepo constructs a HallRepo with the given DB handle.
func NewHallRepo(db *sql.DB) *HallRepo {
	return &HallRepo{db: db}
}

// Create inserts a new hall.  New halls start out available.  After
// insert the ID and timestamp fields of the hall are populated by
// reading the row back.
func (r *HallRepo) Create(ctx context.Context, h *model.Hall) error {
	const qInsert = `INSERT INTO halls (name, location, capacity, status)
	                 VALUES (?, ?, ?, 'available')`
	res, err := r.db.ExecContext(ctx, qInsert, h.Name, h.Location, h.Capacity)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)

	const qSelect = `SELECT id, name, location, capacity, status, created_at, updated_at
	                 FROM halls WHERE id = ?`
	return r.db.QueryRowContext(ctx, qSelect, h.ID).
		Scan(&h.ID, &h.Name, &h.Location, &h.Capacity, &h.Status, &h.CreatedAt, &h.UpdatedAt)
}

// GetByID retrieves a hall by its ID.  It returns ErrHallNotFound when
// no row exists.
func (r *HallRepo) GetByID(ctx context.Context, id uint64) (*model.Hall, error) {
	const q = `SELECT id, name, location, capacity, status, created_at, updated_at
	           FROM halls WHERE id = ?`
	var h model.Hall
	err := r.db.QueryRowContext(ctx, q, id).
		Scan(&h.ID, &h.Name, &h.Location, &h.Capacity, &h.Status, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHallNotFound
		}
		return nil, err
	}
	return &h, nil
}

// List returns all halls ordered by name.  When limit is positive the
// result is paginated with the given offset.
func (r *HallRepo) List(ctx context.Context, offset, limit int) ([]model.Hall, error) {
	q := `SELECT id, name, location, capacity, status, created_at, updated_at
	      FROM halls ORDER BY name`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Hall, 0)
	for rows.Next() {
		var h model.Hall
		if err := rows.Scan(&h.ID, &h.Name, &h.Location, &h.Capacity, &h.Status, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the total number of halls.
func (r *HallRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM halls`).Scan(&n)
	return n, err
}

// Update rewrites the hall's descriptive fields and capacity.  Status
// changes go through SetStatus so they stay tied to the reservation
// derivation; an administrative status override passes through here
// only when the caller has already validated it.
func (r *HallRepo) Update(ctx context.Context, h *model.Hall) error {
	const q = `UPDATE halls SET name = ?, location = ?, capacity = ?, status = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, h.Name, h.Location, h.Capacity, h.Status, h.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrHallNotFound
	}
	return nil
}

// SetStatus writes the derived occupancy flag.  Setting the same value
// twice is harmless, which keeps the hall-freeing cascade idempotent.
func (r *HallRepo) SetStatus(ctx context.Context, id uint64, status string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE halls SET status = ? WHERE id = ?`, status, id)
	return err
}

// Delete removes a hall.  Callers must first verify that no approved
// event still links to it.
func (r *HallRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM halls WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrHallNotFound
	}
	return nil
}
