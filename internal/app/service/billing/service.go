package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fabriq/billing/internal/models"
	"github.com/fabriq/billing/pkg/logctx"
	"github.com/fabriq/billing/pkg/tool"
	"github.com/fabriq/billing/pkg/types"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewService(db *gorm.DB, log *zap.SugaredLogger) *Service {
	return &Service{db: db, log: log}
}

// UpsertFromSnapshot folds a subscription snapshot into the organization's
// billing record. Identity fields and status always win; period fields are
// assigned only when the snapshot carries them, so a partial payload never
// regresses known period data. tierOverride (from checkout metadata) takes
// precedence over the snapshot's own tier code.
//
// The write is a single INSERT ... ON CONFLICT (org_id) DO UPDATE statement;
// concurrent deliveries for the same organization cannot lose each other's
// unconditionally-written fields.
func (s *Service) UpsertFromSnapshot(ctx context.Context, snap *types.SubscriptionSnapshot, tierOverride types.TierCode) error {
	if snap == nil || snap.OrgID == "" {
		return fmt.Errorf("snapshot without org id")
	}

	tierID := s.resolveTierID(ctx, snap, tierOverride)

	rec := &models.OrganizationBilling{
		ID:                   tool.GenerateUUIDV7(),
		OrgID:                snap.OrgID,
		StripeCustomerID:     snap.CustomerID,
		StripeSubscriptionID: snap.SubscriptionID,
		Status:               snap.Status,
		CurrentPeriodStart:   snap.PeriodStart,
		CurrentPeriodEnd:     snap.PeriodEnd,
		TierID:               tierID,
	}

	// Latest event wins for identity and status; everything else is
	// assigned only when known.
	assignments := map[string]interface{}{
		"stripe_customer_id":     snap.CustomerID,
		"stripe_subscription_id": snap.SubscriptionID,
		"status":                 snap.Status,
		"updated_at":             time.Now(),
	}
	if snap.PeriodStart != nil {
		assignments["current_period_start"] = *snap.PeriodStart
	}
	if snap.PeriodEnd != nil {
		assignments["current_period_end"] = *snap.PeriodEnd
	}
	if tierID != nil {
		assignments["tier_id"] = *tierID
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "org_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(rec).Error
	if err != nil {
		return fmt.Errorf("failed to upsert organization billing for %s: %w", snap.OrgID, err)
	}
	return nil
}

// resolveTierID maps a tier code to its primary key. An unknown or empty
// code resolves to nil, which leaves any stored tier untouched.
func (s *Service) resolveTierID(ctx context.Context, snap *types.SubscriptionSnapshot, tierOverride types.TierCode) *string {
	code := tierOverride
	if code == "" {
		code = snap.TierCode
	}
	if code == "" {
		return nil
	}

	var tier models.OrganizationTier
	if err := s.db.WithContext(ctx).Where("code = ?", code).First(&tier).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logctx.FromCtx(ctx, s.log).Warnw("tier lookup failed",
				"tier_code", code, "org_id", snap.OrgID, "error", err)
		} else {
			logctx.FromCtx(ctx, s.log).Warnw("unknown tier code", "tier_code", code, "org_id", snap.OrgID)
		}
		return nil
	}
	return &tier.ID
}

// GetByOrgID returns the billing record for an organization, or
// gorm.ErrRecordNotFound.
func (s *Service) GetByOrgID(ctx context.Context, orgID string) (*models.OrganizationBilling, error) {
	var rec models.OrganizationBilling
	if err := s.db.WithContext(ctx).Where("org_id = ?", orgID).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListTiers returns all pricing tiers ordered by code.
func (s *Service) ListTiers(ctx context.Context) ([]*models.OrganizationTier, error) {
	var tiers []*models.OrganizationTier
	if err := s.db.WithContext(ctx).Order("code asc").Find(&tiers).Error; err != nil {
		return nil, err
	}
	return tiers, nil
}
