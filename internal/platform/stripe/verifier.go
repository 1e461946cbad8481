package stripe

import (
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	cfgpkg "github.com/fabriq/billing/pkg/config"
)

// SignatureVerifier checks the Stripe-Signature header against the raw
// request body and the shared endpoint secret, and parses the event
// envelope. Verification requires the exact delivered bytes, never a
// re-serialized form.
type SignatureVerifier interface {
	Verify(payload []byte, sigHeader string) (stripe.Event, error)
}

// WebhookVerifier is the production SignatureVerifier backed by the SDK's
// HMAC-with-timestamp-tolerance scheme.
type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(cfg *cfgpkg.Config) *WebhookVerifier {
	return &WebhookVerifier{secret: cfg.Stripe.WebhookSecret}
}

func (v *WebhookVerifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, v.secret)
}
