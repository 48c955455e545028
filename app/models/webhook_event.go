package models

import "time"

const (
	WebhookStatusPending   = "pending"
	WebhookStatusCompleted = "completed"
	WebhookStatusFailed    = "failed"
	WebhookStatusRetrying  = "retrying"
)

// WebhookEvent stores every inbound provider event with deduplication
// metadata. The unique index on ProviderEventID is the idempotency anchor:
// exactly one row per distinct provider event ever exists.
type WebhookEvent struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	ProviderEventID  string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_event_id"`
	EventType        string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	ProcessingStatus string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"processing_status"`
	ErrorMessage     string     `gorm:"type:text" json:"error_message,omitempty"`
	RetryCount       int        `gorm:"not null;default:0" json:"retry_count"`
	RawPayload       string     `gorm:"type:longtext;not null" json:"-"`
	ProcessedAt      *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
