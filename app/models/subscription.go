package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusUnpaid     = "unpaid"
	SubscriptionStatusIncomplete = "incomplete"
)

// Subscription mirrors one provider subscription object. It is created on
// the provider's "created" event, mutated on every later lifecycle event and
// never deleted; canceled/unpaid are soft-terminal states.
type Subscription struct {
	ID                      uint            `gorm:"primaryKey" json:"id"`
	UserID                  uint            `gorm:"not null;index" json:"user_id"`
	ProviderSubscriptionRef string          `gorm:"type:varchar(191);default:null;uniqueIndex" json:"provider_subscription_ref"`
	Status                  string          `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	PlanRef                 string          `gorm:"type:varchar(191);not null;index" json:"plan_ref"`
	PlanName                string          `gorm:"type:varchar(191);default:''" json:"plan_name"`
	Amount                  decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency                string          `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Interval                string          `gorm:"type:varchar(16);not null;default:'month'" json:"interval"`
	IntervalCount           int             `gorm:"not null;default:1" json:"interval_count"`
	TrialStart              *time.Time      `gorm:"type:timestamp;default:null" json:"trial_start,omitempty"`
	TrialEnd                *time.Time      `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CurrentPeriodStart      *time.Time      `gorm:"type:timestamp;default:null" json:"current_period_start,omitempty"`
	CurrentPeriodEnd        *time.Time      `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CanceledAt              *time.Time      `gorm:"type:timestamp;default:null" json:"canceled_at,omitempty"`
	EndedAt                 *time.Time      `gorm:"type:timestamp;default:null" json:"ended_at,omitempty"`
	FailedPaymentCount      int             `gorm:"not null;default:0" json:"failed_payment_count"`
	MetadataJSON            string          `gorm:"type:longtext" json:"-"`
	CreatedAt               time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// MapProviderSubscriptionStatus maps a raw provider status string onto the
// local status set. Unknown statuses default to active, matching the
// provider's own semantics for statuses introduced after this code was
// written.
func MapProviderSubscriptionStatus(status string) string {
	switch status {
	case "trialing":
		return SubscriptionStatusTrialing
	case "active":
		return SubscriptionStatusActive
	case "past_due":
		return SubscriptionStatusPastDue
	case "canceled":
		return SubscriptionStatusCanceled
	case "unpaid":
		return SubscriptionStatusUnpaid
	case "incomplete":
		return SubscriptionStatusIncomplete
	default:
		return SubscriptionStatusActive
	}
}
