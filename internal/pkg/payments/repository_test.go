package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/quillforge/quillforge/app/models"
	"gorm.io/gorm"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	usersByCustomer map[string]*models.User
	plansByPrice    map[string]*models.Plan
	subsByRef       map[string]*models.Subscription
	txs             []*models.Transaction
	events          map[string]*models.WebhookEvent

	failCreateSubscription bool
	failCreateTransaction  bool

	savedUsers []*models.User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		usersByCustomer: make(map[string]*models.User),
		plansByPrice:    make(map[string]*models.Plan),
		subsByRef:       make(map[string]*models.Subscription),
		events:          make(map[string]*models.WebhookEvent),
	}
}

func (f *fakeRepo) GetUserByCustomerRef(customerRef string) (*models.User, error) {
	if u, ok := f.usersByCustomer[customerRef]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveUser(user *models.User) error {
	f.savedUsers = append(f.savedUsers, user)
	return nil
}

func (f *fakeRepo) GetPlanByPriceRef(priceRef string) (*models.Plan, error) {
	if p, ok := f.plansByPrice[priceRef]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) CreateTransaction(tx *models.Transaction) error {
	if f.failCreateTransaction {
		return errors.New("transaction insert failed")
	}
	tx.ID = uint(len(f.txs) + 1)
	f.txs = append(f.txs, tx)
	return nil
}

func (f *fakeRepo) GetLatestTransactionByPaymentRef(paymentRef string) (*models.Transaction, error) {
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].ProviderPaymentRef == paymentRef {
			return f.txs[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveTransaction(tx *models.Transaction) error {
	return nil
}

func (f *fakeRepo) ListTransactionsByUser(userID uint, limit int) ([]models.Transaction, error) {
	var out []models.Transaction
	for i := len(f.txs) - 1; i >= 0; i-- {
		if f.txs[i].UserID == userID {
			out = append(out, *f.txs[i])
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateSubscription(sub *models.Subscription) error {
	if f.failCreateSubscription {
		return errors.New("subscription insert failed")
	}
	if _, ok := f.subsByRef[sub.ProviderSubscriptionRef]; ok {
		return fmt.Errorf("duplicate subscription %s", sub.ProviderSubscriptionRef)
	}
	sub.ID = uint(len(f.subsByRef) + 1)
	f.subsByRef[sub.ProviderSubscriptionRef] = sub
	return nil
}

func (f *fakeRepo) GetSubscriptionByProviderRef(providerRef string) (*models.Subscription, error) {
	if s, ok := f.subsByRef[providerRef]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepo) SaveSubscription(sub *models.Subscription) error {
	f.subsByRef[sub.ProviderSubscriptionRef] = sub
	return nil
}

func (f *fakeRepo) ListSubscriptionsByUser(userID uint) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, s := range f.subsByRef {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	if stored, ok := f.events[event.ProviderEventID]; ok {
		return false, stored, nil
	}
	event.ID = uint(len(f.events) + 1)
	f.events[event.ProviderEventID] = event
	return true, event, nil
}

func (f *fakeRepo) UpdateWebhookEventStatus(providerEventID string, updates map[string]interface{}) error {
	stored, ok := f.events[providerEventID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["processing_status"]; ok {
		stored.ProcessingStatus = v.(string)
	}
	if v, ok := updates["error_message"]; ok {
		stored.ErrorMessage = v.(string)
	}
	if v, ok := updates["processed_at"]; ok {
		if t, ok := v.(*time.Time); ok {
			stored.ProcessedAt = t
		}
	}
	return nil
}

func (f *fakeRepo) IncrementWebhookRetryCount(providerEventID string) error {
	stored, ok := f.events[providerEventID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	stored.RetryCount++
	return nil
}
