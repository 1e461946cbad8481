package reconciler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"github.com/stripe/stripe-go/v78"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	billingsvc "github.com/fabriq/billing/internal/app/service/billing"
	"github.com/fabriq/billing/internal/app/service/eventlog"
	"github.com/fabriq/billing/internal/models"
	stripeplatform "github.com/fabriq/billing/internal/platform/stripe"
	"github.com/fabriq/billing/pkg/logctx"
	"github.com/fabriq/billing/pkg/metrics"
	"github.com/fabriq/billing/pkg/types"
)

// Reconciler folds verified Stripe events into organization billing state.
// Each delivery is handled independently: no shared in-process state, no
// retries of its own. Dependencies are constructor-injected so tests can
// substitute fakes.
type Reconciler struct {
	billing   *billingsvc.Service
	events    *eventlog.Service
	fetcher   stripeplatform.SubscriptionFetcher
	annotator stripeplatform.CustomerAnnotator
	log       *zap.SugaredLogger
}

func New(
	billing *billingsvc.Service,
	events *eventlog.Service,
	fetcher stripeplatform.SubscriptionFetcher,
	annotator stripeplatform.CustomerAnnotator,
	log *zap.SugaredLogger,
) *Reconciler {
	return &Reconciler{
		billing:   billing,
		events:    events,
		fetcher:   fetcher,
		annotator: annotator,
		log:       log,
	}
}

// Process applies one verified event at most once. A non-nil error is
// reserved for genuinely unexpected failures (the HTTP layer maps it to
// 500, inviting a sender retry); recoverable conditions are logged and
// folded into the Outcome instead.
func (r *Reconciler) Process(ctx context.Context, event stripe.Event) (outcome types.Outcome, err error) {
	lg := logctx.FromCtx(ctx, r.log)

	isNew, gateErr := r.events.MarkProcessed(ctx, event.ID, string(event.Type))
	if gateErr != nil {
		// The gate being unreachable must not block a legitimate billing
		// update; the merge itself is idempotent. Documented tradeoff:
		// a redelivery before the log recovers would be applied again.
		lg.Errorw("idempotency log insert failed, processing anyway",
			"event_id", event.ID, "event_type", event.Type, "error", gateErr)
	} else if !isNew {
		lg.Infow("duplicate webhook delivery", "event_id", event.ID, "event_type", event.Type)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), string(types.OutcomeDuplicate)).Inc()
		return types.OutcomeDuplicate, nil
	}

	r.events.SaveLog(ctx, &models.WebhookEventLog{
		EventID:   event.ID,
		EventType: string(event.Type),
		TraceID:   traceID(ctx),
		Payload:   datatypes.JSON(event.Data.Raw),
		Status:    models.WebhookEventLogStatusReceived,
	})

	var orgID string
	defer func() {
		status := models.WebhookEventLogStatusHandled
		resMap := map[string]any{"outcome": outcome}
		if err != nil {
			status = models.WebhookEventLogStatusHandleFailed
			resMap["error"] = err.Error()
		}
		resBytes, _ := json.Marshal(resMap)
		r.events.SaveLog(ctx, &models.WebhookEventLog{
			EventID:   event.ID,
			EventType: string(event.Type),
			OrgID: func() *string {
				if orgID == "" {
					return nil
				}
				return lo.ToPtr(orgID)
			}(),
			TraceID: traceID(ctx),
			Result:  func() *datatypes.JSON { j := datatypes.JSON(resBytes); return &j }(),
			Status:  status,
		})
		metrics.WebhookEvents.WithLabelValues(string(event.Type), string(outcome)).Inc()
	}()

	switch string(event.Type) {
	case EventCheckoutSessionCompleted:
		outcome, orgID, err = r.handleCheckoutCompleted(ctx, event)
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		outcome, orgID, err = r.handleSubscriptionEvent(ctx, event)
	case EventInvoicePaid, EventInvoicePaymentFailed:
		outcome, orgID, err = r.handleInvoiceEvent(ctx, event)
	default:
		lg.Debugw("unhandled event type", "event_id", event.ID, "event_type", event.Type)
		outcome = types.OutcomeSkipped
	}
	return outcome, err
}

// handleCheckoutCompleted merges the checkout's subscription into billing
// state with the tier override from session metadata, then best-effort
// annotates the Stripe customer for support visibility.
func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) (types.Outcome, string, error) {
	lg := logctx.FromCtx(ctx, r.log)

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return types.OutcomeFailed, "", fmt.Errorf("malformed checkout session payload: %w", err)
	}

	orgID := sess.Metadata[MetadataOrgID]
	if orgID == "" {
		lg.Infow("checkout session without org attribution, skipping", "event_id", event.ID)
		return types.OutcomeSkipped, "", nil
	}
	if sess.Subscription == nil || sess.Subscription.ID == "" {
		lg.Infow("checkout session without subscription, skipping",
			"event_id", event.ID, "org_id", orgID)
		return types.OutcomeSkipped, orgID, nil
	}

	sub, err := r.fetcher.FetchSubscription(ctx, sess.Subscription.ID)
	if err != nil {
		lg.Warnw("canonical subscription fetch failed, using embedded payload",
			"event_id", event.ID, "org_id", orgID,
			"subscription_id", sess.Subscription.ID, "error", err)
		sub = sess.Subscription
	}

	var customerID string
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}
	snap := snapshotFromSubscription(sub, orgID, customerID, event.Type)
	tierOverride := types.TierCode(sess.Metadata[MetadataTier])

	if err := r.billing.UpsertFromSnapshot(ctx, snap, tierOverride); err != nil {
		lg.Errorw("billing upsert failed",
			"event_id", event.ID, "event_type", event.Type,
			"org_id", orgID, "subscription_id", snap.SubscriptionID, "error", err)
		return types.OutcomeFailed, orgID, nil
	}

	if snap.CustomerID != "" {
		md := map[string]string{MetadataOrgID: orgID}
		for _, k := range []string{MetadataTier, MetadataPeriod, MetadataCurrency} {
			if v := sess.Metadata[k]; v != "" {
				md[k] = v
			}
		}
		if err := r.annotator.UpdateCustomerMetadata(ctx, snap.CustomerID, md); err != nil {
			lg.Warnw("customer metadata write-back failed",
				"event_id", event.ID, "org_id", orgID,
				"customer_id", snap.CustomerID, "error", err)
		}
	}

	return types.OutcomeApplied, orgID, nil
}

// handleSubscriptionEvent re-fetches the canonical subscription (webhook
// payloads for lifecycle events can be partial) and merges it. Falls back
// to the embedded payload when the fetch fails; the non-destructive merge
// keeps the fallback from wiping known period data.
func (r *Reconciler) handleSubscriptionEvent(ctx context.Context, event stripe.Event) (types.Outcome, string, error) {
	lg := logctx.FromCtx(ctx, r.log)

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return types.OutcomeFailed, "", fmt.Errorf("malformed subscription payload: %w", err)
	}

	orgID := sub.Metadata[MetadataOrgID]
	if orgID == "" {
		lg.Infow("subscription event without org attribution, skipping",
			"event_id", event.ID, "subscription_id", sub.ID)
		return types.OutcomeSkipped, "", nil
	}

	canonical, err := r.fetcher.FetchSubscription(ctx, sub.ID)
	if err != nil {
		lg.Warnw("canonical subscription fetch failed, using embedded payload",
			"event_id", event.ID, "org_id", orgID,
			"subscription_id", sub.ID, "error", err)
		canonical = &sub
	}

	snap := snapshotFromSubscription(canonical, orgID, "", event.Type)
	if err := r.billing.UpsertFromSnapshot(ctx, snap, ""); err != nil {
		lg.Errorw("billing upsert failed",
			"event_id", event.ID, "event_type", event.Type,
			"org_id", orgID, "subscription_id", snap.SubscriptionID, "error", err)
		return types.OutcomeFailed, orgID, nil
	}
	return types.OutcomeApplied, orgID, nil
}

// handleInvoiceEvent resolves the invoice's subscription, attributes it to
// an organization via subscription metadata, and merges.
func (r *Reconciler) handleInvoiceEvent(ctx context.Context, event stripe.Event) (types.Outcome, string, error) {
	lg := logctx.FromCtx(ctx, r.log)

	var inv stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
		return types.OutcomeFailed, "", fmt.Errorf("malformed invoice payload: %w", err)
	}

	if inv.Subscription == nil || inv.Subscription.ID == "" {
		lg.Infow("invoice without subscription, skipping", "event_id", event.ID, "invoice_id", inv.ID)
		return types.OutcomeSkipped, "", nil
	}

	sub, err := r.fetcher.FetchSubscription(ctx, inv.Subscription.ID)
	if err != nil {
		// No embedded subscription to fall back to here.
		lg.Errorw("subscription fetch for invoice failed",
			"event_id", event.ID, "event_type", event.Type,
			"invoice_id", inv.ID, "subscription_id", inv.Subscription.ID, "error", err)
		return types.OutcomeFailed, "", nil
	}

	orgID := sub.Metadata[MetadataOrgID]
	if orgID == "" {
		lg.Infow("invoice subscription without org attribution, skipping",
			"event_id", event.ID, "subscription_id", sub.ID)
		return types.OutcomeSkipped, "", nil
	}

	snap := snapshotFromSubscription(sub, orgID, "", event.Type)
	if err := r.billing.UpsertFromSnapshot(ctx, snap, ""); err != nil {
		lg.Errorw("billing upsert failed",
			"event_id", event.ID, "event_type", event.Type,
			"org_id", orgID, "subscription_id", snap.SubscriptionID, "error", err)
		return types.OutcomeFailed, orgID, nil
	}
	return types.OutcomeApplied, orgID, nil
}

func traceID(ctx context.Context) string {
	if tid, ok := ctx.Value("traceID").(string); ok {
		return tid
	}
	return ""
}
