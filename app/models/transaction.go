package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionStatusPending    = "pending"
	TransactionStatusProcessing = "processing"
	TransactionStatusCompleted  = "completed"
	TransactionStatusFailed     = "failed"
	TransactionStatusRefunded   = "refunded"
	TransactionStatusCancelled  = "cancelled"
)

const (
	TransactionKindPayment      = "payment"
	TransactionKindSubscription = "subscription"
	TransactionKindRefund       = "refund"
	TransactionKindPayout       = "payout"
	TransactionKindSetup        = "setup"
)

// Transaction is one row per money-movement event reported by the payment
// provider. Rows are append-mostly: later events that only carry a status
// change update the most recent row with the same payment reference instead
// of inserting a new one.
type Transaction struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             uint            `gorm:"not null;index" json:"user_id"`
	ProviderPaymentRef string          `gorm:"type:varchar(191);default:'';index" json:"provider_payment_ref"`
	ProviderSessionRef string          `gorm:"type:varchar(191);default:'';index" json:"provider_session_ref"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency           string          `gorm:"type:varchar(3);not null;default:'usd'" json:"currency"`
	Status             string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Kind               string          `gorm:"type:varchar(20);not null;default:'payment';index" json:"kind"`
	Description        string          `gorm:"type:text" json:"description,omitempty"`
	MetadataJSON       string          `gorm:"type:longtext" json:"-"`
	ProviderFee        decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"provider_fee"`
	NetAmount          decimal.Decimal `gorm:"type:decimal(10,2);default:0" json:"net_amount"`
	FailureReason      string          `gorm:"type:text" json:"failure_reason,omitempty"`
	ProcessedAt        *time.Time      `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	CreatedAt          time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}
