package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	cfgpkg "github.com/fabriq/billing/pkg/config"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload produces a Stripe-Signature header the way Stripe's v1
// scheme does: HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func newTestVerifier() *WebhookVerifier {
	return NewWebhookVerifier(&cfgpkg.Config{
		Stripe: cfgpkg.StripeConfig{WebhookSecret: testWebhookSecret},
	})
}

func TestVerify_AcceptsValidSignature(t *testing.T) {
	v := newTestVerifier()
	payload := []byte(`{"id": "evt_1", "api_version": "2024-04-10", "type": "invoice.paid", "data": {"object": {"id": "in_1"}}}`)

	event, err := v.Verify(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	require.Equal(t, "evt_1", event.ID)
	require.EqualValues(t, "invoice.paid", event.Type)
	require.JSONEq(t, `{"id": "in_1"}`, string(event.Data.Raw))
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	v := newTestVerifier()
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid"}`)

	_, err := v.Verify(payload, signPayload(payload, "whsec_other", time.Now()))
	require.Error(t, err)
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	v := newTestVerifier()
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid"}`)
	header := signPayload(payload, testWebhookSecret, time.Now())

	_, err := v.Verify([]byte(`{"id": "evt_2", "type": "invoice.paid"}`), header)
	require.Error(t, err)
}

func TestVerify_RejectsStaleTimestamp(t *testing.T) {
	v := newTestVerifier()
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid"}`)

	_, err := v.Verify(payload, signPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
	require.Error(t, err)
}

func TestVerify_RejectsMissingHeader(t *testing.T) {
	v := newTestVerifier()

	_, err := v.Verify([]byte(`{}`), "")
	require.Error(t, err)
}
