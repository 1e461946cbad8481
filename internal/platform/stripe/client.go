package stripe

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"go.uber.org/zap"

	cfgpkg "github.com/fabriq/billing/pkg/config"
)

// SubscriptionFetcher retrieves the canonical subscription object from
// Stripe. Webhook payloads can be partial snapshots; fetching by id
// guarantees a complete one.
type SubscriptionFetcher interface {
	FetchSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// CustomerAnnotator writes metadata onto a Stripe customer record so
// support staff can see the owning organization in the Stripe dashboard.
type CustomerAnnotator interface {
	UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error
}

// Client wraps the Stripe SDK client with the two capabilities the
// reconciler needs.
type Client struct {
	api *client.API
	log *zap.SugaredLogger
}

func NewClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Client {
	api := &client.API{}
	api.Init(cfg.Stripe.SecretKey, nil)
	return &Client{api: api, log: log}
}

func (c *Client) FetchSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}
	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		logStripeError(c.log, "FetchSubscription", err)
		return nil, fmt.Errorf("stripe: failed to fetch subscription %s: %w", subscriptionID, err)
	}
	return sub, nil
}

func (c *Client) UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error {
	params := &stripe.CustomerParams{
		Params: stripe.Params{Context: ctx},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if _, err := c.api.Customers.Update(customerID, params); err != nil {
		logStripeError(c.log, "UpdateCustomerMetadata", err)
		return fmt.Errorf("stripe: failed to update customer %s: %w", customerID, err)
	}
	return nil
}

// logStripeError surfaces the structured fields of a Stripe API error.
func logStripeError(log *zap.SugaredLogger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("stripe_api_error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
		return
	}
	log.Errorw("stripe_error", "operation", operation, "error", err)
}
