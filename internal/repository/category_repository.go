package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-hall-reservation/internal/model"
)

// CategoryRepo manages the host category catalogue.  Admins maintain
// the rows; hosts reference them from their profile.
type CategoryRepo struct {
	db *sql.DB
}

// NewCategoryRepo constructs a CategoryRepo with the given DB handle.
func NewCategoryRepo(db *sql.DB) *CategoryRepo {
	return &CategoryRepo{db: db}
}

const categoryColumns = `id, name, description, created_at, updated_at`

func scanCategory(row interface{ Scan(...interface{}) error }) (model.HostCategory, error) {
	var c model.HostCategory
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Create inserts a category and reads the row back to populate the
// generated ID and timestamps.
func (r *CategoryRepo) Create(ctx context.Context, c *model.HostCategory) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO host_categories (name, description) VALUES (?, ?)`,
		c.Name, c.Description)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	got, err := r.GetByID(ctx, uint64(id))
	if err != nil {
		return err
	}
	*c = *got
	return nil
}

// GetByID retrieves a category.  It returns ErrCategoryNotFound when no
// row exists.
func (r *CategoryRepo) GetByID(ctx context.Context, id uint64) (*model.HostCategory, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM host_categories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns categories ordered by name.  When limit is positive the
// result is paginated with the given offset.
func (r *CategoryRepo) List(ctx context.Context, offset, limit int) ([]model.HostCategory, error) {
	q := `SELECT ` + categoryColumns + ` FROM host_categories ORDER BY name`
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
	out := make([]model.HostCategory, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the total number of categories.
func (r *CategoryRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM host_categories`).Scan(&n)
	return n, err
}

// Update rewrites a category's name and description.
func (r *CategoryRepo) Update(ctx context.Context, c *model.HostCategory) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE host_categories SET name = ?, description = ? WHERE id = ?`,
		c.Name, c.Description, c.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// Delete removes a category.  Host profiles referencing it keep their
// column via the schema's ON DELETE SET NULL.
func (r *CategoryRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM host_categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
