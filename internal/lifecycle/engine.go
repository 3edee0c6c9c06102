// Package lifecycle implements the event state machine and its
// cascading effects on hall reservations, registrations and payments.
// All mutations flow through the Engine; handlers validate shape and
// authenticate, the engine decides.  Hall status is never stored as
// independent truth: after every cascade the engine re-derives it from
// the reservation table with the same occupancy query the expiry
// sweeper uses, so the two can never disagree.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/event-hall-reservation/internal/model"
	"github.com/iliyamo/event-hall-reservation/internal/payment"
	"github.com/iliyamo/event-hall-reservation/internal/repository"
)

// EventStore is the slice of event persistence the engine needs.
// *repository.EventRepo satisfies it.
type EventStore interface {
	Create(ctx context.Context, ev *model.Event) error
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
	Update(ctx context.Context, ev *model.Event) error
	SetStatus(ctx context.Context, id uint64, status string) error
	SetStatusClearHall(ctx context.Context, id uint64, status string) error
	Delete(ctx context.Context, id uint64) error
	CountRegistrations(ctx context.Context, eventID uint64) (int, error)
	IsRegistered(ctx context.Context, eventID, userID uint64) (bool, error)
	AddRegistration(ctx context.Context, eventID, userID uint64, capacity uint32) error
	RemoveRegistration(ctx context.Context, eventID, userID uint64) error
	HasApprovedOverlap(ctx context.Context, hallID uint64, start, end time.Time) (bool, error)
}

// HallStore is the slice of hall persistence the engine needs.
// *repository.HallRepo satisfies it.
type HallStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Hall, error)
	SetStatus(ctx context.Context, id uint64, status string) error
}

// ReservationStore is the slice of reservation persistence the engine
// needs.  *repository.ReservationRepo satisfies it.  Reserve must be
// atomic with its overlap check; everything else the engine calls is
// idempotent so an interrupted cascade can be retried.
type ReservationStore interface {
	FindConflict(ctx context.Context, hallID uint64, start, end time.Time, excludeEventID uint64) (bool, error)
	Reserve(ctx context.Context, res *model.HallReservation) error
	GetByEvent(ctx context.Context, eventID uint64) (*model.HallReservation, error)
	DeleteByEvent(ctx context.Context, eventID uint64) (*model.HallReservation, error)
	AnyActiveForHall(ctx context.Context, hallID uint64, now time.Time) (bool, error)
}

// PaymentStore is the slice of payment persistence the engine needs.
// *repository.PaymentRepo satisfies it.
type PaymentStore interface {
	Create(ctx context.Context, p *model.Payment) error
	FindByUserEvent(ctx context.Context, userID, eventID uint64, status string) (*model.Payment, error)
	FindPendingBySession(ctx context.Context, userID, eventID uint64, sessionID string) (*model.Payment, error)
	ListCompletedByEvent(ctx context.Context, eventID uint64) ([]model.Payment, error)
	MarkCompleted(ctx context.Context, id uint64, paymentIntentID string) error
	MarkRefunded(ctx context.Context, id uint64) error
}

// MediaStore deletes uploaded event images.  Deletion is best-effort.
type MediaStore interface {
	Delete(path string)
}

// Engine orchestrates event lifecycle transitions.
type Engine struct {
	events       EventStore
	halls        HallStore
	reservations ReservationStore
	payments     PaymentStore
	processor    payment.Processor
	media        MediaStore
	now          func() time.Time
}

// NewEngine wires an Engine over the given stores.  media may be nil
// when image uploads are disabled.
func NewEngine(events EventStore, halls HallStore, reservations ReservationStore,
	payments PaymentStore, processor payment.Processor, media MediaStore) *Engine {
	return &Engine{
		events:       events,
		halls:        halls,
		reservations: reservations,
		payments:     payments,
		processor:    processor,
		media:        media,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create validates and persists a new pending event.  When a hall and a
// schedule window are supplied the hall must exist, fit the declared
// capacity, and have no approved event overlapping the window.  The
// overlap pre-check here is advisory; approval re-checks atomically
// against the reservation table.
func (e *Engine) Create(ctx context.Context, ev *model.Event) error {
	if err := e.validateWindow(ev); err != nil {
		return err
	}
	if ev.HallID != nil {
		hall, err := e.halls.GetByID(ctx, *ev.HallID)
		if err != nil {
			if errors.Is(err, repository.ErrHallNotFound) {
				return errNotFound("hall not found")
			}
			return err
		}
		if ev.Capacity > hall.Capacity {
			return errCapacity("event capacity exceeds hall capacity")
		}
		if ev.StartDate != nil && ev.EndDate != nil {
			busy, err := e.events.HasApprovedOverlap(ctx, *ev.HallID, *ev.StartDate, *ev.EndDate)
			if err != nil {
				return err
			}
			if busy {
				return errConflict("hall already booked for an overlapping window")
			}
		}
	}
	return e.events.Create(ctx, ev)
}

// Approve transitions an event to approved and reserves its hall for
// the event window.  The reservation insert is atomic with its overlap
// check, so of two concurrent approvals for overlapping windows on one
// hall exactly one succeeds; the loser reports a conflict and the event
// stays in its prior status.  Re-approving after an update replaces the
// previous reservation.  An event without a hall approves as a plain
// status flip with no reservation side effects.
func (e *Engine) Approve(ctx context.Context, eventID uint64) (*model.Event, error) {
	ev, err := e.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status == model.EventApproved {
		return nil, errConflict("event is already approved")
	}
	if ev.HallID == nil {
		// No hall requested: approval is a pure status flip.  Any stale
		// reservation from before the hall was detached is cleaned up.
		prev, err := e.reservations.DeleteByEvent(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			if err := e.recomputeHall(ctx, prev.HallID); err != nil {
				return nil, err
			}
		}
		if err := e.events.SetStatus(ctx, ev.ID, model.EventApproved); err != nil {
			return nil, err
		}
		ev.Status = model.EventApproved
		return ev, nil
	}
	if ev.StartDate == nil || ev.EndDate == nil {
		return nil, errValidation("event has no schedule window")
	}
	if !ev.EndDate.After(e.now()) {
		return nil, errValidation("event window has already passed")
	}

	hall, err := e.halls.GetByID(ctx, *ev.HallID)
	if err != nil {
		if errors.Is(err, repository.ErrHallNotFound) {
			return nil, errNotFound("hall not found")
		}
		return nil, err
	}
	if ev.Capacity > hall.Capacity {
		return nil, errCapacity("event capacity exceeds hall capacity")
	}

	// Read-only pre-check so an obviously taken slot fails before we
	// touch the event's previous reservation.
	busy, err := e.reservations.FindConflict(ctx, *ev.HallID, *ev.StartDate, *ev.EndDate, ev.ID)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, errConflict("hall already reserved for an overlapping window")
	}

	// Drop the reservation from a previous approval, if any.  If it sat
	// on a different hall that hall's occupancy is re-derived below.
	prev, err := e.reservations.DeleteByEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}

	res := &model.HallReservation{
		HallID:    *ev.HallID,
		EventID:   ev.ID,
		StartDate: ev.StartDate.UTC(),
		EndDate:   ev.EndDate.UTC(),
	}
	if err := e.reservations.Reserve(ctx, res); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			return nil, errConflict("hall already reserved for an overlapping window")
		}
		return nil, err
	}

	if err := e.halls.SetStatus(ctx, *ev.HallID, model.HallReserved); err != nil {
		return nil, err
	}
	if prev != nil && prev.HallID != *ev.HallID {
		if err := e.recomputeHall(ctx, prev.HallID); err != nil {
			return nil, err
		}
	}

	if err := e.events.SetStatus(ctx, ev.ID, model.EventApproved); err != nil {
		return nil, err
	}
	ev.Status = model.EventApproved
	return ev, nil
}

// Reject transitions an event to rejected, releasing its hall
// reservation and detaching the event from the hall.  The hall becomes
// available again unless another event still holds an active
// reservation on it.  Rejecting twice is a conflict.
func (e *Engine) Reject(ctx context.Context, eventID uint64) (*model.Event, error) {
	ev, err := e.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status == model.EventRejected {
		return nil, errConflict("event is already rejected")
	}

	prev, err := e.reservations.DeleteByEvent(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		if err := e.recomputeHall(ctx, prev.HallID); err != nil {
			return nil, err
		}
	}

	if err := e.events.SetStatusClearHall(ctx, ev.ID, model.EventRejected); err != nil {
		return nil, err
	}
	ev.Status = model.EventRejected
	ev.HallID = nil
	return ev, nil
}

// Update rewrites an event.  Only the owning host may update (actorID
// zero bypasses the ownership check for administrative edits).  When
// the hall or the schedule window of an approved event changes, the
// existing reservation is released, the freed hall's occupancy is
// re-derived, and the event demotes to pending so the new slot goes
// through approval again.  Shrinking capacity below the current
// attendee count is refused.
func (e *Engine) Update(ctx context.Context, actorID uint64, in *model.Event) (*model.Event, error) {
	cur, err := e.getEvent(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if actorID != 0 && cur.HostID != actorID {
		return nil, errForbidden("event belongs to another host")
	}
	if err := e.validateWindow(in); err != nil {
		return nil, err
	}

	registered, err := e.events.CountRegistrations(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if int(in.Capacity) < registered {
		return nil, errCapacity("capacity below current registration count")
	}

	if in.HallID != nil {
		hall, err := e.halls.GetByID(ctx, *in.HallID)
		if err != nil {
			if errors.Is(err, repository.ErrHallNotFound) {
				return nil, errNotFound("hall not found")
			}
			return nil, err
		}
		if in.Capacity > hall.Capacity {
			return nil, errCapacity("event capacity exceeds hall capacity")
		}
	}

	slotChanged := !sameHall(cur.HallID, in.HallID) ||
		!sameTime(cur.StartDate, in.StartDate) || !sameTime(cur.EndDate, in.EndDate)

	if slotChanged && in.HallID != nil && in.StartDate != nil && in.EndDate != nil {
		busy, err := e.reservations.FindConflict(ctx, *in.HallID, *in.StartDate, *in.EndDate, cur.ID)
		if err != nil {
			return nil, err
		}
		if busy {
			return nil, errConflict("hall already reserved for an overlapping window")
		}
	}

	status := cur.Status
	if cur.Status == model.EventApproved && slotChanged {
		prev, err := e.reservations.DeleteByEvent(ctx, cur.ID)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			if err := e.recomputeHall(ctx, prev.HallID); err != nil {
				return nil, err
			}
		}
		status = model.EventPending
	}

	in.HostID = cur.HostID
	in.Status = status
	if err := e.events.Update(ctx, in); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, errNotFound("event not found")
		}
		return nil, err
	}
	return in, nil
}

// Delete removes an event and everything hanging off it: completed
// payments are refunded through the processor first, then the hall
// reservation is released and the freed hall re-derived, the uploaded
// image is removed best-effort, and finally the event row and its
// registrations go.  A refund failure aborts the whole delete with the
// event fully intact.  actorID zero bypasses the ownership check.
func (e *Engine) Delete(ctx context.Context, actorID, eventID uint64) error {
	ev, err := e.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if actorID != 0 && ev.HostID != actorID {
		return errForbidden("event belongs to another host")
	}

	completed, err := e.payments.ListCompletedByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	for i := range completed {
		p := &completed[i]
		if p.PaymentIntentID == nil {
			return errRefundFailed("payment has no refundable charge", nil)
		}
		if err := e.processor.Refund(ctx, *p.PaymentIntentID, int64(p.AmountCents)); err != nil {
			return errRefundFailed("processor refused the refund", err)
		}
		if err := e.payments.MarkRefunded(ctx, p.ID); err != nil {
			return err
		}
	}

	prev, err := e.reservations.DeleteByEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if prev != nil {
		if err := e.recomputeHall(ctx, prev.HallID); err != nil {
			return err
		}
	}

	if e.media != nil && ev.Image != nil {
		e.media.Delete(*ev.Image)
	}

	if err := e.events.Delete(ctx, eventID); err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return errNotFound("event not found")
		}
		return err
	}
	return nil
}

// Register signs a user up for an approved, not-yet-started event.  For
// a free event the registration lands immediately; the capacity check
// and the insert are one atomic store operation, so concurrent
// registrations can never oversell.  For a paid event a checkout
// session is opened and a pending payment recorded; no registration
// exists until ConfirmRegistration sees the charge settle.  The
// returned session is nil for free events.
func (e *Engine) Register(ctx context.Context, userID, eventID uint64) (*payment.CheckoutSession, error) {
	ev, err := e.getEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.Status != model.EventApproved {
		return nil, errConflict("event is not open for registration")
	}
	if ev.StartDate != nil && !e.now().Before(*ev.StartDate) {
		return nil, errConflict("event has already started")
	}
	registered, err := e.events.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if registered {
		return nil, errConflict("already registered for this event")
	}

	if ev.Free() {
		if err := e.addRegistration(ctx, eventID, userID, ev.Capacity); err != nil {
			return nil, err
		}
		return nil, nil
	}

	ref := uuid.NewString()
	sess, err := e.processor.CreateCheckout(ctx, payment.CheckoutRequest{
		AmountCents: int64(ev.PriceCents),
		Description: ev.Title,
		Reference:   ref,
		Metadata: map[string]string{
			"event_id": fmt.Sprintf("%d", eventID),
			"user_id":  fmt.Sprintf("%d", userID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open checkout: %w", err)
	}
	pay := &model.Payment{
		UserID:            userID,
		EventID:           eventID,
		AmountCents:       ev.PriceCents,
		CheckoutSessionID: &sess.SessionID,
	}
	if err := e.payments.Create(ctx, pay); err != nil {
		return nil, err
	}
	return sess, nil
}

// ConfirmRegistration settles a paid registration after checkout.  The
// session is resolved against the processor; an unpaid session reports
// payment required.  Once the payment is marked completed the
// registration is inserted under the same capacity guard as free
// registrations — if the event filled up while the user was paying, the
// charge is refunded on the spot.  Confirming an already-confirmed
// registration succeeds without side effects.
func (e *Engine) ConfirmRegistration(ctx context.Context, userID, eventID uint64, sessionID string) error {
	ev, err := e.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.Free() {
		return errValidation("free events need no payment confirmation")
	}
	registered, err := e.events.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if registered {
		return nil
	}
	if ev.StartDate != nil && !e.now().Before(*ev.StartDate) {
		return errConflict("event has already started")
	}

	// The lookup is keyed by the session so a user with several open
	// checkouts for the event always confirms the one they paid.
	pay, err := e.payments.FindPendingBySession(ctx, userID, eventID, sessionID)
	if err != nil {
		if !errors.Is(err, repository.ErrPaymentNotFound) {
			return err
		}
		// No pending payment: a previous confirmation may have settled
		// the charge but died before inserting the registration.
		settled, err := e.payments.FindByUserEvent(ctx, userID, eventID, model.PaymentCompleted)
		if err != nil {
			if errors.Is(err, repository.ErrPaymentNotFound) {
				return errPaymentRequired("no payment on record for this event")
			}
			return err
		}
		return e.addPaidRegistration(ctx, ev, userID, settled)
	}

	status, err := e.processor.ResolveSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("resolve checkout session: %w", err)
	}
	if !status.Paid {
		return errPaymentRequired("checkout session is not paid")
	}
	if err := e.payments.MarkCompleted(ctx, pay.ID, status.PaymentIntentID); err != nil {
		return err
	}
	pay.Status = model.PaymentCompleted
	pay.PaymentIntentID = &status.PaymentIntentID
	return e.addPaidRegistration(ctx, ev, userID, pay)
}

// Unregister removes a user's registration.  For paid events the
// completed payment is refunded first; a processor failure leaves the
// registration untouched.  Every step is retryable: when the refund
// committed but a previous attempt died before the unlink, the retry
// finds no completed payment, skips the processor, and finishes the
// removal.
func (e *Engine) Unregister(ctx context.Context, userID, eventID uint64) error {
	ev, err := e.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.EndDate != nil && !e.now().Before(*ev.EndDate) {
		return errConflict("event has already ended")
	}
	registered, err := e.events.IsRegistered(ctx, eventID, userID)
	if err != nil {
		return err
	}
	if !registered {
		return errNotFound("registration not found")
	}

	if !ev.Free() {
		pay, err := e.payments.FindByUserEvent(ctx, userID, eventID, model.PaymentCompleted)
		if err != nil {
			if !errors.Is(err, repository.ErrPaymentNotFound) {
				return err
			}
			// No completed payment: either the refund already went
			// through on an attempt that failed before the unlink, or
			// the event was free at registration time.  Either way the
			// refund step is done and the unlink below must proceed, or
			// a half-finished unregister could never be completed.
		} else {
			if pay.PaymentIntentID == nil {
				return errRefundFailed("payment has no refundable charge", nil)
			}
			if err := e.processor.Refund(ctx, *pay.PaymentIntentID, int64(pay.AmountCents)); err != nil {
				return errRefundFailed("processor refused the refund", err)
			}
			if err := e.payments.MarkRefunded(ctx, pay.ID); err != nil {
				return err
			}
		}
	}

	return e.events.RemoveRegistration(ctx, eventID, userID)
}

func (e *Engine) addPaidRegistration(ctx context.Context, ev *model.Event, userID uint64, pay *model.Payment) error {
	err := e.addRegistration(ctx, ev.ID, userID, ev.Capacity)
	var le *Error
	if errors.As(err, &le) && le.Kind == KindCapacityExceeded && pay.PaymentIntentID != nil {
		// The event filled up between checkout and confirmation.
		if rerr := e.processor.Refund(ctx, *pay.PaymentIntentID, int64(pay.AmountCents)); rerr != nil {
			return errRefundFailed("event is full and the refund failed", rerr)
		}
		if rerr := e.payments.MarkRefunded(ctx, pay.ID); rerr != nil {
			return rerr
		}
	}
	return err
}

func (e *Engine) addRegistration(ctx context.Context, eventID, userID uint64, capacity uint32) error {
	err := e.events.AddRegistration(ctx, eventID, userID, capacity)
	switch {
	case errors.Is(err, repository.ErrCapacityFull):
		return errCapacity("event is at capacity")
	case errors.Is(err, repository.ErrAlreadyRegistered):
		return errConflict("already registered for this event")
	}
	return err
}

// recomputeHall re-derives a hall's status from the reservation table.
// Always called after the triggering reservation delete has committed,
// so the occupancy it observes is current.
func (e *Engine) recomputeHall(ctx context.Context, hallID uint64) error {
	active, err := e.reservations.AnyActiveForHall(ctx, hallID, e.now())
	if err != nil {
		return err
	}
	status := model.HallAvailable
	if active {
		status = model.HallReserved
	}
	return e.halls.SetStatus(ctx, hallID, status)
}

func (e *Engine) getEvent(ctx context.Context, id uint64) (*model.Event, error) {
	ev, err := e.events.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return nil, errNotFound("event not found")
		}
		return nil, err
	}
	return ev, nil
}

func (e *Engine) validateWindow(ev *model.Event) error {
	if (ev.StartDate == nil) != (ev.EndDate == nil) {
		return errValidation("start and end must be set together")
	}
	if ev.StartDate != nil && !ev.StartDate.Before(*ev.EndDate) {
		return errValidation("start must precede end")
	}
	return nil
}

func sameHall(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
