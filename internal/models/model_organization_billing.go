package models

import (
	"time"

	"github.com/fabriq/billing/pkg/types"
)

// OrganizationBilling is the single billing record per organization,
// keyed by OrgID and mutated only by the webhook reconciler.
//
// CurrentPeriodStart/CurrentPeriodEnd are non-destructive: an upsert only
// assigns them when the incoming value is known, so a partial webhook
// payload can never null out period data learned from an earlier event.
type OrganizationBilling struct {
	ID                   string                   `gorm:"column:id;type:uuid;primary_key" json:"id"`
	OrgID                string                   `gorm:"column:org_id;type:varchar(64);not null;uniqueIndex" json:"org_id"`
	StripeCustomerID     string                   `gorm:"column:stripe_customer_id;type:varchar(128)" json:"stripe_customer_id"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;type:varchar(128)" json:"stripe_subscription_id"`
	Status               types.SubscriptionStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start;default:null" json:"current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end;default:null" json:"current_period_end"`
	TierID               *string                  `gorm:"column:tier_id;type:uuid;default:null" json:"tier_id"`
	// CreatedAt / UpdatedAt are managed by GORM.
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (OrganizationBilling) TableName() string {
	return "organization_billing"
}

// Active reports whether the organization currently has a usable paid plan.
func (b *OrganizationBilling) Active() bool {
	if b == nil {
		return false
	}
	switch b.Status {
	case types.SubscriptionStatusActive, types.SubscriptionStatusTrialing:
		return b.CurrentPeriodEnd == nil || b.CurrentPeriodEnd.After(time.Now())
	default:
		return false
	}
}
