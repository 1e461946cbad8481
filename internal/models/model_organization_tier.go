package models

import (
	"time"

	"github.com/fabriq/billing/pkg/types"
)

// OrganizationTier maps a pricing tier code ("starter", "pro") to its
// primary key. Read-only to this service; rows are seeded by the platform's
// migration system.
type OrganizationTier struct {
	ID        string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	Code      types.TierCode `gorm:"column:code;type:varchar(64);not null;uniqueIndex" json:"code"`
	Name      string         `gorm:"column:name;type:varchar(128)" json:"name"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (OrganizationTier) TableName() string {
	return "organization_tiers"
}
