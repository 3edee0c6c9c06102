package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
)

// StripeProcessor implements Processor using Stripe checkout sessions
// and refunds.
type StripeProcessor struct {
	successURL string
	cancelURL  string
}

// NewStripeProcessor configures the global Stripe key and returns a
// processor that sends completed checkouts to successURL and aborted
// ones to cancelURL.
func NewStripeProcessor(secretKey, successURL, cancelURL string) (*StripeProcessor, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	stripe.Key = secretKey
	return &StripeProcessor{successURL: successURL, cancelURL: cancelURL}, nil
}

// CreateCheckout opens a single-item card checkout session for the
// given amount.  The amount is already in cents; Stripe expects the
// smallest currency unit.
func (p *StripeProcessor) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.successURL),
		CancelURL:          stripe.String(p.cancelURL),
		ClientReferenceID:  stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(req.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
			},
		},
		Metadata: req.Metadata,
	}
	params.Context = ctx
	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// ResolveSession fetches a checkout session and reports whether it has
// been paid, along with the payment intent backing the charge.
func (p *StripeProcessor) ResolveSession(ctx context.Context, sessionID string) (*SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	status := &SessionStatus{Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid}
	if sess.PaymentIntent != nil {
		status.PaymentIntentID = sess.PaymentIntent.ID
	}
	return status, nil
}

// Refund reverses a completed charge by payment intent reference.
func (p *StripeProcessor) Refund(ctx context.Context, paymentIntentID string, amountCents int64) error {
	if paymentIntentID == "" {
		return fmt.Errorf("payment intent id is required")
	}
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
		Amount:        stripe.Int64(amountCents),
	}
	params.Context = ctx
	if _, err := refund.New(params); err != nil {
		return fmt.Errorf("create refund: %w", err)
	}
	return nil
}
