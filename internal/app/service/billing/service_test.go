package billing

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fabriq/billing/internal/models"
	"github.com/fabriq/billing/pkg/tool"
	"github.com/fabriq/billing/pkg/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.OrganizationBilling{},
		&models.OrganizationTier{},
		&models.WebhookEvent{},
		&models.WebhookEventLog{},
	))
	return db
}

func seedTiers(t *testing.T, db *gorm.DB) map[types.TierCode]string {
	t.Helper()
	ids := make(map[types.TierCode]string)
	for _, code := range []types.TierCode{types.TierCodeStarter, types.TierCodePro} {
		tier := &models.OrganizationTier{
			ID:   tool.GenerateUUIDV7(),
			Code: code,
			Name: string(code),
		}
		require.NoError(t, db.Create(tier).Error)
		ids[code] = tier.ID
	}
	return ids
}

func tp(unix int64) *time.Time {
	ts := time.Unix(unix, 0).UTC()
	return &ts
}

func TestUpsertFromSnapshot_InsertsNewRecord(t *testing.T) {
	db := newTestDB(t)
	tiers := seedTiers(t, db)
	svc := NewService(db, zap.NewNop().Sugar())

	snap := &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusActive,
		PeriodStart:    tp(1700000000),
		PeriodEnd:      tp(1731536000),
		TierCode:       types.TierCodeStarter,
	}
	require.NoError(t, svc.UpsertFromSnapshot(context.Background(), snap, ""))

	rec, err := svc.GetByOrgID(context.Background(), "org_abc")
	require.NoError(t, err)
	require.Equal(t, "cus_1", rec.StripeCustomerID)
	require.Equal(t, "sub_1", rec.StripeSubscriptionID)
	require.Equal(t, types.SubscriptionStatusActive, rec.Status)
	require.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), rec.CurrentPeriodStart.UTC())
	require.Equal(t, time.Date(2024, 11, 13, 22, 13, 20, 0, time.UTC), rec.CurrentPeriodEnd.UTC())
	require.NotNil(t, rec.TierID)
	require.Equal(t, tiers[types.TierCodeStarter], *rec.TierID)
}

func TestUpsertFromSnapshot_NilPeriodsDoNotClearStoredOnes(t *testing.T) {
	db := newTestDB(t)
	seedTiers(t, db)
	svc := NewService(db, zap.NewNop().Sugar())
	ctx := context.Background()

	first := &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusActive,
		PeriodStart:    tp(1700000000),
		PeriodEnd:      tp(1731536000),
	}
	require.NoError(t, svc.UpsertFromSnapshot(ctx, first, ""))

	// A later payload without period data, e.g. a checkout fallback.
	second := &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusPastDue,
	}
	require.NoError(t, svc.UpsertFromSnapshot(ctx, second, ""))

	rec, err := svc.GetByOrgID(ctx, "org_abc")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusPastDue, rec.Status)
	require.NotNil(t, rec.CurrentPeriodStart)
	require.NotNil(t, rec.CurrentPeriodEnd)
	require.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), rec.CurrentPeriodStart.UTC())
	require.Equal(t, time.Date(2024, 11, 13, 22, 13, 20, 0, time.UTC), rec.CurrentPeriodEnd.UTC())

	var count int64
	require.NoError(t, db.Model(&models.OrganizationBilling{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestUpsertFromSnapshot_TierOverrideWins(t *testing.T) {
	db := newTestDB(t)
	tiers := seedTiers(t, db)
	svc := NewService(db, zap.NewNop().Sugar())

	snap := &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusActive,
		TierCode:       types.TierCodeStarter,
	}
	require.NoError(t, svc.UpsertFromSnapshot(context.Background(), snap, types.TierCodePro))

	rec, err := svc.GetByOrgID(context.Background(), "org_abc")
	require.NoError(t, err)
	require.NotNil(t, rec.TierID)
	require.Equal(t, tiers[types.TierCodePro], *rec.TierID)
}

func TestUpsertFromSnapshot_UnknownTierLeavesStoredTier(t *testing.T) {
	db := newTestDB(t)
	tiers := seedTiers(t, db)
	svc := NewService(db, zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, svc.UpsertFromSnapshot(ctx, &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusActive,
		TierCode:       types.TierCodePro,
	}, ""))

	require.NoError(t, svc.UpsertFromSnapshot(ctx, &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusActive,
		TierCode:       types.TierCode("enterprise"),
	}, ""))

	rec, err := svc.GetByOrgID(ctx, "org_abc")
	require.NoError(t, err)
	require.NotNil(t, rec.TierID)
	require.Equal(t, tiers[types.TierCodePro], *rec.TierID)
}

func TestUpsertFromSnapshot_StatusAlwaysWins(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop().Sugar())
	ctx := context.Background()

	require.NoError(t, svc.UpsertFromSnapshot(ctx, &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusActive,
		PeriodStart:    tp(1700000000),
		PeriodEnd:      tp(1731536000),
	}, ""))

	require.NoError(t, svc.UpsertFromSnapshot(ctx, &types.SubscriptionSnapshot{
		OrgID:          "org_abc",
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Status:         types.SubscriptionStatusCanceled,
	}, ""))

	rec, err := svc.GetByOrgID(ctx, "org_abc")
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusCanceled, rec.Status)
	require.NotNil(t, rec.CurrentPeriodEnd)
}

func TestUpsertFromSnapshot_RejectsMissingOrgID(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop().Sugar())

	require.Error(t, svc.UpsertFromSnapshot(context.Background(), &types.SubscriptionSnapshot{
		CustomerID: "cus_1",
	}, ""))
	require.Error(t, svc.UpsertFromSnapshot(context.Background(), nil, ""))
}

func TestGetByOrgID_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, zap.NewNop().Sugar())

	_, err := svc.GetByOrgID(context.Background(), "org_missing")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListTiers(t *testing.T) {
	db := newTestDB(t)
	seedTiers(t, db)
	svc := NewService(db, zap.NewNop().Sugar())

	tiers, err := svc.ListTiers(context.Background())
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	require.Equal(t, types.TierCodePro, tiers[0].Code)
	require.Equal(t, types.TierCodeStarter, tiers[1].Code)
}
