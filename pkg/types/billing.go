package types

import "time"

// SubscriptionStatus mirrors the Stripe subscription lifecycle status string.
// The reconciler writes whatever status the latest event carries; these
// constants cover the values the rest of the platform branches on.
type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
)

// TierCode is the short code of a pricing tier ("starter", "pro", ...).
// Codes are resolved to primary keys via the organization_tiers table.
type TierCode string

const (
	TierCodeStarter TierCode = "starter"
	TierCodePro     TierCode = "pro"
)

// SubscriptionSnapshot is the provider-agnostic view of a subscription that
// the billing service folds into an organization's billing record.
// Period fields are nil when the source payload did not carry them; the
// merge never overwrites a stored value with nil.
type SubscriptionSnapshot struct {
	OrgID           string             `json:"org_id"`
	CustomerID      string             `json:"customer_id"`
	SubscriptionID  string             `json:"subscription_id"`
	Status          SubscriptionStatus `json:"status"`
	PeriodStart     *time.Time         `json:"period_start"`
	PeriodEnd       *time.Time         `json:"period_end"`
	TierCode        TierCode           `json:"tier_code"`
	SourceEventType string             `json:"source_event_type"`
}

// Outcome classifies how a webhook event was handled.
type Outcome string

const (
	// OutcomeApplied - the event changed (or attempted to change) billing state.
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate - the event id was already in the processed-event log.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeSkipped - the event is valid but not attributable to a tracked
	// organization, or its type is not handled.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed - persistence failed; logged for manual reconciliation,
	// still reported as success to the sender.
	OutcomeFailed Outcome = "failed"
)
