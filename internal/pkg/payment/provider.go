package payment

import (
	"context"
	"errors"
)

// Provider constants
const (
	ProviderStripe = "stripe"
)

// Webhook event types the checkout flow reacts to.
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutExpired            = "checkout.session.expired"
	EventCheckoutAsyncPaymentOK     = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
)

var (
	ErrNotConfigured    = errors.New("payment provider not configured")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// Provider creates hosted checkout sessions and authenticates their callbacks.
type Provider interface {
	// CreateCheckoutSession returns the provider session to redirect the user to
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// ParseWebhook verifies the signature and decodes the event
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)

	// Name returns the provider identifier
	Name() string
}

// CheckoutRequest describes a one-off purchase of a single line item.
type CheckoutRequest struct {
	UserID      string
	ProductName string
	AmountCents int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Metadata    map[string]string
}

// CheckoutSession is the provider side of a pending purchase.
type CheckoutSession struct {
	ID  string
	URL string
}

// WebhookEvent is a verified, provider-neutral checkout event.
type WebhookEvent struct {
	ID                string
	Type              string
	SessionID         string
	PaymentIntentID   string
	ClientReferenceID string
	Paid              bool
	Metadata          map[string]string
}
