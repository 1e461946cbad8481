package reconciler

import (
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/fabriq/billing/pkg/types"
)

// Handled event types. Anything else is acknowledged without processing.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaid              = "invoice.paid"
	EventInvoicePaymentFailed     = "invoice.payment_failed"
)

// Metadata keys attached by the platform at checkout/subscription creation.
// Their absence means the event is not attributable to a tracked
// organization.
const (
	MetadataOrgID    = "org_id"
	MetadataTier     = "tier"
	MetadataPeriod   = "period"
	MetadataCurrency = "currency"
)

// snapshotFromSubscription converts a Stripe subscription into the
// provider-agnostic snapshot the billing service consumes. Zero-valued
// period timestamps become nil so the merge leaves stored values alone.
func snapshotFromSubscription(sub *stripe.Subscription, orgID, fallbackCustomerID string, eventType stripe.EventType) *types.SubscriptionSnapshot {
	snap := &types.SubscriptionSnapshot{
		OrgID:           orgID,
		SubscriptionID:  sub.ID,
		Status:          types.SubscriptionStatus(sub.Status),
		TierCode:        types.TierCode(sub.Metadata[MetadataTier]),
		SourceEventType: string(eventType),
	}
	if sub.Customer != nil {
		snap.CustomerID = sub.Customer.ID
	}
	if snap.CustomerID == "" {
		snap.CustomerID = fallbackCustomerID
	}
	if sub.CurrentPeriodStart > 0 {
		t := time.Unix(sub.CurrentPeriodStart, 0).UTC()
		snap.PeriodStart = &t
	}
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		snap.PeriodEnd = &t
	}
	return snap
}
