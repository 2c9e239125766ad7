package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"

	"wardline.app/api/internal/model"
)

const (
	metadataUserID = "user_id"
	metadataPlan   = "plan"
)

// StripeConfig holds the keys and price ids for a Stripe account.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Prices        map[model.SubscriptionPlan]string
}

type stripeGateway struct {
	api           *client.API
	webhookSecret string
	prices        map[model.SubscriptionPlan]string
}

func NewStripeGateway(cfg StripeConfig) Gateway {
	return &stripeGateway{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		prices:        cfg.Prices,
	}
}

func (g *stripeGateway) price(plan model.SubscriptionPlan) (string, error) {
	price, ok := g.prices[plan]
	if !ok || price == "" {
		return "", fmt.Errorf("%w: %s", ErrNotConfigured, plan)
	}
	return price, nil
}

func (g *stripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	price, err := g.price(req.Plan)
	if err != nil {
		return nil, err
	}

	userID := strconv.FormatInt(req.UserID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail:     stripe.String(req.Email),
		ClientReferenceID: stripe.String(userID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(price), Quantity: stripe.Int64(1)},
		},
		Metadata: map[string]string{
			metadataUserID: userID,
			metadataPlan:   string(req.Plan),
		},
	}
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

func (g *stripeGateway) CreatePortal(ctx context.Context, customerRef, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	session, err := g.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("creating portal session: %w", err)
	}
	return session.URL, nil
}

func (g *stripeGateway) ChangePlan(ctx context.Context, subscriptionRef string, plan model.SubscriptionPlan, idempotencyKey string) error {
	price, err := g.price(plan)
	if err != nil {
		return err
	}

	getParams := &stripe.SubscriptionParams{}
	getParams.Context = ctx
	sub, err := g.api.Subscriptions.Get(subscriptionRef, getParams)
	if err != nil {
		return fmt.Errorf("getting subscription: %w", err)
	}
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return fmt.Errorf("subscription %s has no items", subscriptionRef)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(sub.Items.Data[0].ID), Price: stripe.String(price)},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	if _, err := g.api.Subscriptions.Update(subscriptionRef, params); err != nil {
		return fmt.Errorf("updating subscription: %w", err)
	}
	return nil
}

func (g *stripeGateway) ParseEvent(payload []byte, signature string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if evt.Data == nil {
		return nil, fmt.Errorf("%w: event %s has no data", ErrInvalidEvent, evt.ID)
	}

	out := &Event{ID: evt.ID, Type: EventType(evt.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("%w: decoding checkout session: %v", ErrInvalidEvent, err)
		}
		if raw := session.Metadata[metadataUserID]; raw != "" {
			userID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad user_id metadata %q", ErrInvalidEvent, raw)
			}
			out.UserID = userID
		}
		out.Plan = model.SubscriptionPlan(session.Metadata[metadataPlan])
		if !out.Plan.Valid() {
			out.Plan = model.SubscriptionPlanBasic
		}
		if session.Customer != nil {
			out.CustomerRef = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionRef = session.Subscription.ID
		}

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: decoding subscription: %v", ErrInvalidEvent, err)
		}
		out.SubscriptionRef = sub.ID
		out.ProviderStatus = string(sub.Status)
		if sub.Customer != nil {
			out.CustomerRef = sub.Customer.ID
		}

	case EventPaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("%w: decoding invoice: %v", ErrInvalidEvent, err)
		}
		if invoice.Customer != nil {
			out.CustomerRef = invoice.Customer.ID
		}
	}

	return out, nil
}
