package models

import "time"

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// HumanizationJob is the durable record for one credit-metered text
// transformation. The input and output texts live in object storage; the row
// keeps only opaque references. Cost is deducted before the row is created
// and refunded only when the job fails before reaching processing.
type HumanizationJob struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      uint       `gorm:"not null;index" json:"user_id"`
	InputRef    string     `gorm:"type:varchar(255);default:''" json:"input_ref,omitempty"`
	OutputRef   string     `gorm:"type:varchar(255);default:''" json:"output_ref,omitempty"`
	Cost        int64      `gorm:"not null;default:1" json:"cost"`
	TokensUsed  int        `gorm:"default:0" json:"tokens_used,omitempty"`
	Readability string     `gorm:"type:varchar(32);default:''" json:"readability,omitempty"`
	Tone        string     `gorm:"type:varchar(32);default:''" json:"tone,omitempty"`
	Status      string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	ErrorMsg    string     `gorm:"type:text" json:"error,omitempty"`
	ProcessedAt *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the job has reached a final state.
func (j *HumanizationJob) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
