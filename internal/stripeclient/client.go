package stripeclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Payment intent statuses as reported by the provider
const (
	IntentStatusSucceeded            = "succeeded"
	IntentStatusRequiresConfirmation = "requires_confirmation"
	IntentStatusRequiresPayment      = "requires_payment_method"
	IntentStatusCanceled             = "canceled"
)

// Webhook event types this core reacts to
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
	EventChargeRefunded           = "charge.refunded"
)

// CheckoutSessionParams describes the single-product hosted session to open
type CheckoutSessionParams struct {
	ProductName       string
	ProductImage      string
	PriceCents        int64
	Currency          string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

// CheckoutSession is the created hosted session reference
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentIntent is the provider-side view of one payment attempt
type PaymentIntent struct {
	ID          string
	Status      string
	AmountCents int64
	Metadata    map[string]string
}

// SessionData carries the fields of a completed checkout session event
type SessionData struct {
	ID                string
	PaymentIntentID   string
	ClientReferenceID string
	CustomerEmail     string
	AmountTotal       int64
	Metadata          map[string]string
}

// IntentData carries the fields of a payment intent event
type IntentData struct {
	ID          string
	AmountCents int64
	Metadata    map[string]string
}

// ChargeData carries the fields of a charge event
type ChargeData struct {
	ID              string
	PaymentIntentID string
}

// Event is a verified, normalized webhook event. Exactly one of
// Session, Intent, Charge is set depending on Type; all are nil for
// event types this core ignores.
type Event struct {
	ID      string
	Type    string
	Session *SessionData
	Intent  *IntentData
	Charge  *ChargeData
}

type Client struct {
	api           *client.API
	webhookSecret string
}

// NewClient creates a Stripe API client
func NewClient(secretKey, webhookSecret string) *Client {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Client{api: api, webhookSecret: webhookSecret}
}

// CreateCheckoutSession opens a hosted payment session for one product.
// Metadata rides along opaquely and comes back on the webhook.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params:             stripe.Params{Context: ctx},
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.SuccessURL),
		CancelURL:          stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(p.Currency),
					UnitAmount: stripe.Int64(p.PriceCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(p.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	if p.ProductImage != "" {
		params.LineItems[0].PriceData.ProductData.Images = stripe.StringSlice([]string{p.ProductImage})
	}
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetPaymentIntent re-fetches a payment intent from the provider.
// Client-declared statuses are never trusted.
func (c *Client) GetPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	pi, err := c.api.PaymentIntents.Get(id, &stripe.PaymentIntentParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return convertIntent(pi), nil
}

// ConfirmPaymentIntent attempts one confirmation of a payment intent
func (c *Client) ConfirmPaymentIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	pi, err := c.api.PaymentIntents.Confirm(id, &stripe.PaymentIntentConfirmParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to confirm payment intent: %w", err)
	}
	return convertIntent(pi), nil
}

// VerifyEvent checks the provider signature over the raw payload and
// normalizes the event. Verification failure means the event must be
// rejected without any side effect.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (*Event, error) {
	// The account's pinned API version may trail the SDK's; signature
	// validity is what gates processing, not version equality.
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	event := &Event{ID: stripeEvent.ID, Type: string(stripeEvent.Type)}

	switch event.Type {
	case EventCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session: %w", err)
		}
		data := &SessionData{
			ID:                sess.ID,
			ClientReferenceID: sess.ClientReferenceID,
			CustomerEmail:     sess.CustomerEmail,
			AmountTotal:       sess.AmountTotal,
			Metadata:          sess.Metadata,
		}
		if sess.PaymentIntent != nil {
			data.PaymentIntentID = sess.PaymentIntent.ID
		}
		if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
			data.CustomerEmail = sess.CustomerDetails.Email
		}
		event.Session = data

	case EventPaymentIntentSucceeded, EventPaymentIntentFailed:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(stripeEvent.Data.Raw, &pi); err != nil {
			return nil, fmt.Errorf("failed to parse payment intent: %w", err)
		}
		event.Intent = &IntentData{ID: pi.ID, AmountCents: pi.Amount, Metadata: pi.Metadata}

	case EventChargeRefunded:
		var charge stripe.Charge
		if err := json.Unmarshal(stripeEvent.Data.Raw, &charge); err != nil {
			return nil, fmt.Errorf("failed to parse charge: %w", err)
		}
		data := &ChargeData{ID: charge.ID}
		if charge.PaymentIntent != nil {
			data.PaymentIntentID = charge.PaymentIntent.ID
		}
		event.Charge = data
	}

	return event, nil
}

func convertIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	return &PaymentIntent{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountCents: pi.Amount,
		Metadata:    pi.Metadata,
	}
}
