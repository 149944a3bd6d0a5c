package service

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeClient is the slice of the Stripe API this app depends on.
// Handlers and services receive it explicitly; nothing sets the SDK's
// package-level key. Tests substitute a mock and assert call counts.
type StripeClient interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	GetSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
}

type stripeClient struct {
	api *client.API
}

// NewStripeClient builds a StripeClient bound to the given secret key.
func NewStripeClient(secretKey string) StripeClient {
	return &stripeClient{api: client.New(secretKey, nil)}
}

func (c *stripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return c.api.CheckoutSessions.New(params)
}

func (c *stripeClient) GetSubscription(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return c.api.Subscriptions.Get(id, params)
}
