package billing

import (
	"context"
	"errors"

	"wardline.app/api/internal/model"
)

var (
	// ErrInvalidEvent is returned when a webhook payload fails signature or shape checks.
	ErrInvalidEvent = errors.New("invalid billing event")
	// ErrNotConfigured is returned when no price exists for the requested plan.
	ErrNotConfigured = errors.New("billing plan not configured")
)

// CheckoutRequest describes a hosted checkout for a user that has no team yet.
type CheckoutRequest struct {
	UserID     int64
	Email      string
	Plan       model.SubscriptionPlan
	SuccessURL string
	CancelURL  string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type EventType string

const (
	EventCheckoutCompleted   EventType = "checkout.session.completed"
	EventSubscriptionUpdated EventType = "customer.subscription.updated"
	EventSubscriptionDeleted EventType = "customer.subscription.deleted"
	EventPaymentFailed       EventType = "invoice.payment_failed"
)

// Event is a verified provider webhook reduced to the fields the app acts on.
// Which fields are set depends on Type.
type Event struct {
	ID              string
	Type            EventType
	UserID          int64
	Plan            model.SubscriptionPlan
	CustomerRef     string
	SubscriptionRef string
	ProviderStatus  string
}

// Gateway is the payment provider boundary.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CreatePortal(ctx context.Context, customerRef, returnURL string) (string, error)
	// ChangePlan swaps the subscription's price. Replays with the same key are no-ops.
	ChangePlan(ctx context.Context, subscriptionRef string, plan model.SubscriptionPlan, idempotencyKey string) error
	ParseEvent(payload []byte, signature string) (*Event, error)
}

// MapSubscriptionStatus translates a provider subscription status into the team's status.
// Unknown values map to active.
func MapSubscriptionStatus(providerStatus string) model.SubscriptionStatus {
	switch providerStatus {
	case "canceled":
		return model.SubscriptionStatusCancelled
	case "unpaid", "incomplete_expired":
		return model.SubscriptionStatusExpired
	case "incomplete", "trialing":
		return model.SubscriptionStatusTrial
	default:
		// active, past_due
		return model.SubscriptionStatusActive
	}
}
