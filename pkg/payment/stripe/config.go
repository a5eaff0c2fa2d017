package stripe

// Config represents the configuration for the Stripe gateway
type Config struct {
	// SecretKey is the Stripe API secret key; empty disables hosted checkout
	SecretKey string

	// WebhookSecret signs checkout webhooks (whsec_...)
	WebhookSecret string

	// Currency is the ISO currency code used for every line item
	Currency string

	// SuccessURL is where Stripe redirects after payment
	SuccessURL string

	// CancelURL is where Stripe redirects when the customer backs out
	CancelURL string
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Currency == "" {
		return ErrInvalidRequest
	}
	if c.SuccessURL == "" {
		return ErrInvalidRequest
	}
	if c.CancelURL == "" {
		return ErrInvalidRequest
	}
	return nil
}
