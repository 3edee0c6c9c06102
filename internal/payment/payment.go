// Package payment abstracts the external payment processor consumed by
// the lifecycle engine.  The engine only ever opens checkout sessions
// and issues refunds; everything else (webhooks, card handling, payment
// pages) is the processor's problem.  A processor failure propagates as
// a plain error and never mutates local state, so the caller can retry.
package payment

import "context"

// CheckoutRequest describes the charge to open a session for.
// Metadata is attached to the processor session so webhooks and
// dashboard views can be correlated back to the event registration.
type CheckoutRequest struct {
	AmountCents int64
	Description string
	Reference   string // idempotent client reference for the session
	Metadata    map[string]string
}

// CheckoutSession is the processor's handle for an opened session.
// The URL is handed to the client to complete the charge.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// SessionStatus is the settlement state of a checkout session.  The
// payment intent reference is only meaningful once Paid is true.
type SessionStatus struct {
	Paid            bool
	PaymentIntentID string
}

// Processor is the payment gateway contract.  Refund takes the payment
// intent reference recorded at confirmation time; refunding an unknown
// or already-refunded intent is the processor's error to report.
type Processor interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ResolveSession(ctx context.Context, sessionID string) (*SessionStatus, error)
	Refund(ctx context.Context, paymentIntentID string, amountCents int64) error
}
