package stripe

import (
	"context"
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Client represents a Stripe Checkout client
type Client struct {
	config Config
	api    *client.API
}

// NewClient creates a new Stripe client with the given configuration.
// Without a secret key the client can still verify webhooks but cannot create sessions.
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{config: config}
	if config.SecretKey != "" {
		c.api = client.New(config.SecretKey, nil)
	}
	return c, nil
}

// Enabled reports whether hosted checkout sessions can be created
func (c *Client) Enabled() bool {
	return c.api != nil
}

// SuccessURL returns the configured post-payment redirect
func (c *Client) SuccessURL() string {
	return c.config.SuccessURL
}

// CreateCheckoutSession creates a hosted payment page for the given lines
func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}
	if len(req.LineItems) == 0 {
		return nil, ErrInvalidRequest
	}

	params := &stripeapi.CheckoutSessionParams{
		Mode:       stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		SuccessURL: stripeapi.String(c.config.SuccessURL),
		CancelURL:  stripeapi.String(c.config.CancelURL),
	}
	params.Context = ctx

	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripeapi.CheckoutSessionLineItemParams{
			PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
				Currency: stripeapi.String(c.config.Currency),
				ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripeapi.String(item.Name),
				},
				UnitAmount: stripeapi.Int64(item.UnitAmount),
			},
			Quantity: stripeapi.Int64(item.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.ClientReferenceID != "" {
		params.ClientReferenceID = stripeapi.String(req.ClientReferenceID)
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripeapi.String(req.CustomerEmail)
	}

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return &CheckoutSession{
		ID:  session.ID,
		URL: session.URL,
	}, nil
}

// ListLineItems returns the line items Stripe recorded for a session
func (c *Client) ListLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error) {
	if c.api == nil {
		return nil, ErrNotConfigured
	}

	params := &stripeapi.CheckoutSessionListLineItemsParams{
		Session: stripeapi.String(sessionID),
	}
	params.Context = ctx

	var items []SessionLineItem
	iter := c.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		li := iter.LineItem()
		item := SessionLineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
		}
		if li.Price != nil {
			item.UnitAmount = li.Price.UnitAmount
		}
		items = append(items, item)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list line items: %w", err)
	}
	return items, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes the event
func (c *Client) ParseWebhook(payload []byte, signature string) (*Event, error) {
	if c.config.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: no webhook secret", ErrSignatureVerification)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, c.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	out := &Event{
		ID:   event.ID,
		Type: string(event.Type),
	}
	if out.Type != EventCheckoutSessionCompleted {
		return out, nil
	}
	if event.Data == nil {
		return nil, ErrUnexpectedPayload
	}

	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
	}

	email := session.CustomerEmail
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email = session.CustomerDetails.Email
	}
	out.Session = &CompletedSession{
		ID:                session.ID,
		Metadata:          session.Metadata,
		ClientReferenceID: session.ClientReferenceID,
		CustomerEmail:     email,
		AmountTotal:       session.AmountTotal,
		PaymentStatus:     string(session.PaymentStatus),
	}
	return out, nil
}
