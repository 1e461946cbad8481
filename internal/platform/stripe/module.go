package stripe

import "go.uber.org/fx"

// Module exposes the Stripe client and webhook verifier via Fx.
var Module = fx.Options(
	fx.Provide(
		NewClient,
		NewWebhookVerifier,
		func(c *Client) SubscriptionFetcher { return c },
		func(c *Client) CustomerAnnotator { return c },
		func(v *WebhookVerifier) SignatureVerifier { return v },
	),
)
