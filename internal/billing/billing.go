// Package billing wraps the payment provider behind a small gateway interface.
package billing

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Webhook event types the application reacts to.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// CheckoutParams describes a subscription checkout for one user.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	PriceID    string
	Tier       string
	SuccessURL string
	CancelURL  string
}

// Event is the provider-neutral view of a webhook event.
type Event struct {
	ID             string
	Type           string
	CustomerID     string
	SubscriptionID string
	Status         string
	PriceID        string
	// From checkout metadata; empty for subscription events.
	UserID string
	Tier   string
}

// Gateway is the set of billing operations the subscription service needs.
type Gateway interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ParseWebhook(payload []byte, signature string) (*Event, error)
}
