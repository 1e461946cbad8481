package models

import "time"

// WebhookEvent is the processed-event log: existence of a row means the
// Stripe event id was already handled. First-writer-wins via the unique
// index; rows are never updated or deleted.
type WebhookEvent struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventID   string    `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex" json:"event_id"`
	EventType string    `gorm:"column:event_type;type:varchar(128);not null" json:"event_type"`
	CreatedAt time.Time `json:"created_at"`
}

func (WebhookEvent) TableName() string {
	return "stripe_webhook_events"
}
