package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PlanIntervalMonth   = "month"
	PlanIntervalYear    = "year"
	PlanIntervalOneTime = "one-time"
)

// Plan is a purchasable product mapped to a provider price. One-time plans
// grant credits on checkout completion; recurring plans create provider
// subscriptions.
type Plan struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	ProviderPriceRef   string          `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_price_ref"`
	ProviderProductRef string          `gorm:"type:varchar(191);default:''" json:"provider_product_ref,omitempty"`
	Name               string          `gorm:"type:varchar(191);not null" json:"name"`
	Description        string          `gorm:"type:text" json:"description,omitempty"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency           string          `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Interval           string          `gorm:"type:varchar(16);not null;default:'month'" json:"interval"`
	IntervalCount      int             `gorm:"not null;default:1" json:"interval_count"`
	CreditsGranted     int64           `gorm:"not null;default:0" json:"credits_granted"`
	TrialPeriodDays    int             `gorm:"default:0" json:"trial_period_days,omitempty"`
	IsActive           bool            `gorm:"default:true;index" json:"is_active"`
	SortOrder          int             `gorm:"default:0" json:"sort_order"`
	CreatedAt          time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRecurring reports whether the plan bills on an interval rather than as a
// single payment.
func (p *Plan) IsRecurring() bool {
	return p.Interval != PlanIntervalOneTime
}
