package stripe

// EventCheckoutSessionCompleted is the only event type that triggers fulfillment
const EventCheckoutSessionCompleted = "checkout.session.completed"

// LineItem is one priced line of a checkout request
type LineItem struct {
	Name       string
	UnitAmount int64 // minor units
	Quantity   int64
}

// CheckoutRequest describes a hosted checkout session to create
type CheckoutRequest struct {
	LineItems         []LineItem
	Metadata          map[string]string
	ClientReferenceID string
	CustomerEmail     string
}

// CheckoutSession is the created hosted checkout
type CheckoutSession struct {
	ID  string
	URL string
}

// Event is a verified webhook event reduced to the fields fulfillment needs
type Event struct {
	ID      string
	Type    string
	Session *CompletedSession
}

// CompletedSession is the checkout session carried by a completed event
type CompletedSession struct {
	ID                string
	Metadata          map[string]string
	ClientReferenceID string
	CustomerEmail     string
	AmountTotal       int64
	PaymentStatus     string
}

// SessionLineItem is a line item as reported back by Stripe
type SessionLineItem struct {
	Description string
	Quantity    int64
	UnitAmount  int64
}
