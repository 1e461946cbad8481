package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"

	stripeplatform "github.com/fabriq/billing/internal/platform/stripe"
	"github.com/fabriq/billing/pkg/logctx"
	"github.com/fabriq/billing/pkg/types"
)

// Stripe recommends capping webhook bodies around 64KB.
const maxWebhookBodyBytes = int64(65536)

// EventProcessor is what the webhook route needs from the reconciler.
type EventProcessor interface {
	Process(ctx context.Context, event stripe.Event) (types.Outcome, error)
}

// @Summary      Stripe Webhook
// @Description  Receives signed Stripe webhook deliveries and reconciles them into organization billing state. Responds 200 for applied, duplicate and skipped events, 400 on signature failure, 500 only on unexpected errors.
// @Tags         Webhook
// @Accept       json
// @Produce      plain
// @Param        payload body string true "Stripe event envelope (raw JSON, signed via Stripe-Signature header)"
// @Success      200  {string}  string  "ok"
// @Failure      400  {string}  string  "signature verification failed"
// @Router       /api/v1/stripe/webhook [post]
// ApiStripeWebhook handles Stripe webhook deliveries.
func ApiStripeWebhook(verifier stripeplatform.SignatureVerifier, rec EventProcessor, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		lg := logctx.FromGin(c, log)

		// The signature covers the exact delivered bytes; read them once.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			lg.Errorw("failed to read webhook body", "error", err)
			c.String(http.StatusBadRequest, "cannot read request body")
			return
		}

		event, err := verifier.Verify(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			lg.Warnw("webhook signature verification failed", "error", err)
			c.String(http.StatusBadRequest, "signature verification failed")
			return
		}

		lg.Infow("webhook_received", "event_id", event.ID, "event_type", event.Type)

		outcome, err := rec.Process(c.Request.Context(), event)
		if err != nil {
			lg.Errorw("webhook_handle_error",
				"event_id", event.ID, "event_type", event.Type, "error", err)
			c.String(http.StatusInternalServerError, "internal error")
			return
		}

		lg.Infow("webhook_handled",
			"event_id", event.ID, "event_type", event.Type, "outcome", outcome)
		c.String(http.StatusOK, "ok")
	}
}

func RegisterWebhookRoutes(r gin.IRouter, verifier stripeplatform.SignatureVerifier, rec EventProcessor, log *zap.SugaredLogger) {
	// Mount under provided group, expected at "/api/v1/stripe"
	r.POST("/webhook", ApiStripeWebhook(verifier, rec, log))
}
