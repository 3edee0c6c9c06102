package model

import "time"

// Payment statuses.  A payment is created pending when the checkout
// session is opened, marked completed once the processor confirms the
// charge, and refunded when the attendee unregisters or the event is
// deleted.  One (user, event) pair holds at most one non-refunded
// payment at a time.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentRefunded  = "refunded"
)

// Payment records a single attendee's charge for a paid event as
// stored in the `payments` table.
//
// Fields:
//  ID                – primary key identifier.
//  UserID            – attendee who paid.
//  EventID           – event the payment is for.
//  AmountCents       – charged amount in cents.
//  Status            – pending, completed or refunded.
//  CheckoutSessionID – processor checkout session reference.
//  PaymentIntentID   – processor payment intent reference, set once
//                      the charge completes; required for refunds.
//  CreatedAt         – creation timestamp.
//  UpdatedAt         – last update timestamp.
type Payment struct {
	ID                uint64    // payments.id
	UserID            uint64    // payments.user_id
	EventID           uint64    // payments.event_id
	AmountCents       uint32    // payments.amount_cents
	Status            string    // payments.status
	CheckoutSessionID *string   // payments.checkout_session_id (nullable)
	PaymentIntentID   *string   // payments.payment_intent_id (nullable)
	CreatedAt         time.Time // payments.created_at
	UpdatedAt         time.Time // payments.updated_at
}
