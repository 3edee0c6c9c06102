package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/event-hall-reservation/internal/model"
)

// PaymentRepo provides data access to the payments table.  Payments
// are mutated only by the registration/confirmation path and the
// refund coordinator; the sweeper never touches them.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, user_id, event_id, amount_cents, status,
	checkout_session_id, payment_intent_id, created_at, updated_at`

func scanPayment(row interface{ Scan(...interface{}) error }) (*model.Payment, error) {
	var p model.Payment
	var sessionID, intentID sql.NullString
	err := row.Scan(
		&p.ID, &p.UserID, &p.EventID, &p.AmountCents, &p.Status,
		&sessionID, &intentID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if sessionID.Valid {
		p.CheckoutSessionID = &sessionID.String
	}
	if intentID.Valid {
		p.PaymentIntentID = &intentID.String
	}
	return &p, nil
}

// Create inserts a pending payment for a freshly opened checkout
// session and populates the generated ID on the record.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (user_id, event_id, amount_cents, status, checkout_session_id)
	           VALUES (?, ?, ?, 'pending', ?)`
	res, err := r.db.ExecContext(ctx, q, p.UserID, p.EventID, p.AmountCents, p.CheckoutSessionID)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.Status = model.PaymentPending
	return nil
}

// FindByUserEvent returns a payment with the given status for the
// (user, event) pair, or ErrPaymentNotFound.  At most one completed
// payment exists per pair; pending payments are looked up by session
// through FindPendingBySession since repeated checkouts may leave
// several of them.
func (r *PaymentRepo) FindByUserEvent(ctx context.Context, userID, eventID uint64, status string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
	           WHERE user_id = ? AND event_id = ? AND status = ? LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, userID, eventID, status))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// FindPendingBySession returns the pending payment opened for the given
// checkout session, or ErrPaymentNotFound.  Keying the lookup by
// session lets a user with several open checkouts for one event confirm
// the session they actually paid.
func (r *PaymentRepo) FindPendingBySession(ctx context.Context, userID, eventID uint64, sessionID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
	           WHERE user_id = ? AND event_id = ? AND checkout_session_id = ?
	             AND status = 'pending' LIMIT 1`
	p, err := scanPayment(r.db.QueryRowContext(ctx, q, userID, eventID, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// ListCompletedByEvent returns every completed payment for the event.
// Event deletion refunds these before removing the event record.
func (r *PaymentRepo) ListCompletedByEvent(ctx context.Context, eventID uint64) ([]model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
	           WHERE event_id = ? AND status = 'completed'`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasCompletedForUser reports whether the user holds any completed
// payment for a paid event.  Admins refuse to delete such a user until
// the payments are refunded or the user unregisters.
func (r *PaymentRepo) HasCompletedForUser(ctx context.Context, userID uint64) (bool, error) {
	const q = `SELECT p.id FROM payments p
	           JOIN events e ON e.id = p.event_id
	           WHERE p.user_id = ? AND p.status = 'completed' AND e.price_cents > 0
	           LIMIT 1`
	var id uint64
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkCompleted transitions a pending payment to completed and stores
// the processor's payment intent reference needed for later refunds.
// The status is part of the WHERE clause so a double confirmation does
// not overwrite a refund.
func (r *PaymentRepo) MarkCompleted(ctx context.Context, id uint64, paymentIntentID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'completed', payment_intent_id = ? WHERE id = ? AND status = 'pending'`,
		paymentIntentID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// MarkRefunded transitions a completed payment to refunded.  Guarding
// on the current status keeps the transition one-way.
func (r *PaymentRepo) MarkRefunded(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE payments SET status = 'refunded' WHERE id = ? AND status = 'completed'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}
