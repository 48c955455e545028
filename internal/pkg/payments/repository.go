package payments

import (
	"github.com/quillforge/quillforge/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the payment services.
type Repository interface {
	GetUserByCustomerRef(customerRef string) (*models.User, error)
	SaveUser(user *models.User) error
	GetPlanByPriceRef(priceRef string) (*models.Plan, error)

	CreateTransaction(tx *models.Transaction) error
	GetLatestTransactionByPaymentRef(paymentRef string) (*models.Transaction, error)
	SaveTransaction(tx *models.Transaction) error
	ListTransactionsByUser(userID uint, limit int) ([]models.Transaction, error)

	CreateSubscription(sub *models.Subscription) error
	GetSubscriptionByProviderRef(providerRef string) (*models.Subscription, error)
	SaveSubscription(sub *models.Subscription) error
	ListSubscriptionsByUser(userID uint) ([]models.Subscription, error)

	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	UpdateWebhookEventStatus(providerEventID string, updates map[string]interface{}) error
	IncrementWebhookRetryCount(providerEventID string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a payments repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetUserByCustomerRef(customerRef string) (*models.User, error) {
	var user models.User
	err := r.db.Where("stripe_customer_id = ?", customerRef).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *gormRepository) SaveUser(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *gormRepository) GetPlanByPriceRef(priceRef string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("provider_price_ref = ? AND is_active = ?", priceRef, true).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *gormRepository) CreateTransaction(tx *models.Transaction) error {
	return r.db.Create(tx).Error
}

func (r *gormRepository) GetLatestTransactionByPaymentRef(paymentRef string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Where("provider_payment_ref = ?", paymentRef).
		Order("created_at DESC").
		First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *gormRepository) SaveTransaction(tx *models.Transaction) error {
	return r.db.Save(tx).Error
}

func (r *gormRepository) ListTransactionsByUser(userID uint, limit int) ([]models.Transaction, error) {
	var txs []models.Transaction
	q := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&txs).Error
	return txs, err
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) GetSubscriptionByProviderRef(providerRef string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("provider_subscription_ref = ?", providerRef).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) SaveSubscription(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}

func (r *gormRepository) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&subs).Error
	return subs, err
}

// CreateWebhookEventIfNotExists inserts the event unless a row with the same
// provider event ID already exists. The unique index is the idempotency
// anchor; concurrent deliveries race on the insert and exactly one wins.
func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider_event_id = ?", event.ProviderEventID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) UpdateWebhookEventStatus(providerEventID string, updates map[string]interface{}) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("provider_event_id = ?", providerEventID).
		Updates(updates).Error
}

func (r *gormRepository) IncrementWebhookRetryCount(providerEventID string) error {
	return r.db.Model(&models.WebhookEvent{}).
		Where("provider_event_id = ?", providerEventID).
		UpdateColumn("retry_count", gorm.Expr("retry_count + ?", 1)).Error
}
