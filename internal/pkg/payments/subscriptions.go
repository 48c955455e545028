package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillforge/quillforge/app/models"
	"gorm.io/gorm"
)

// SubscriptionSync keeps local subscription rows in step with the provider's
// lifecycle events. Updates apply whatever the event carries; ordering across
// events is the provider's problem, the last write wins here.
type SubscriptionSync struct {
	repo Repository
}

// NewSubscriptionSync creates the subscription sync service.
func NewSubscriptionSync(repo Repository) *SubscriptionSync {
	return &SubscriptionSync{repo: repo}
}

func (s *SubscriptionSync) userForCustomer(customerRef string) (*models.User, error) {
	if customerRef == "" {
		return nil, nil
	}
	user, err := s.repo.GetUserByCustomerRef(customerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// applyPayload copies the provider payload fields onto the local row.
func applyPayload(sub *models.Subscription, p SubscriptionPayload) {
	sub.Status = models.MapProviderSubscriptionStatus(p.Status)
	sub.TrialStart = unixToTime(p.TrialStart)
	sub.TrialEnd = unixToTime(p.TrialEnd)
	sub.CurrentPeriodStart = unixToTime(p.PeriodStart())
	sub.CurrentPeriodEnd = unixToTime(p.PeriodEnd())
	sub.CanceledAt = unixToTime(p.CanceledAt)
	sub.EndedAt = unixToTime(p.EndedAt)

	if len(p.Items.Data) > 0 {
		price := p.Items.Data[0].Price
		sub.PlanRef = price.ID
		if price.Nickname != "" {
			sub.PlanName = price.Nickname
		}
		sub.Amount = amountFromCents(price.UnitAmount)
		if price.Currency != "" {
			sub.Currency = price.Currency
		}
		if price.Recurring != nil {
			sub.Interval = price.Recurring.Interval
			if price.Recurring.IntervalCount > 0 {
				sub.IntervalCount = price.Recurring.IntervalCount
			}
		}
	}

	if len(p.Metadata) > 0 {
		if raw, err := json.Marshal(p.Metadata); err == nil {
			sub.MetadataJSON = string(raw)
		}
	}
}

// HandleCreated inserts the subscription row. A re-delivered created event
// for an existing subscription refreshes the row instead of failing on the
// unique index.
func (s *SubscriptionSync) HandleCreated(ctx context.Context, p SubscriptionPayload) error {
	_ = ctx

	user, err := s.userForCustomer(p.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Subscriptions] created event for unknown customer %s, subscription %s", p.Customer, p.ID)
		return nil
	}

	existing, err := s.repo.GetSubscriptionByProviderRef(p.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if existing != nil {
		log.Infof("[Subscriptions] subscription %s already exists, refreshing", p.ID)
		applyPayload(existing, p)
		return s.repo.SaveSubscription(existing)
	}

	sub := &models.Subscription{
		UserID:                  user.ID,
		ProviderSubscriptionRef: p.ID,
	}
	applyPayload(sub, p)
	if err := s.repo.CreateSubscription(sub); err != nil {
		return fmt.Errorf("failed to create subscription %s: %w", p.ID, err)
	}

	// The plan's nickname may be empty on the price; fall back to the local
	// plan catalog.
	if sub.PlanName == "" && sub.PlanRef != "" {
		if plan, perr := s.repo.GetPlanByPriceRef(sub.PlanRef); perr == nil {
			sub.PlanName = plan.Name
			if err := s.repo.SaveSubscription(sub); err != nil {
				log.Warnf("[Subscriptions] failed to backfill plan name for %s: %v", p.ID, err)
			}
		}
	}

	log.Infof("[Subscriptions] created subscription %s for user %d (status=%s)", p.ID, user.ID, sub.Status)
	return nil
}

// HandleUpdated applies the provider state to the local row. A transition
// from past_due back to active clears the failed payment counter. Updates for
// unknown subscriptions are logged and acknowledged.
func (s *SubscriptionSync) HandleUpdated(ctx context.Context, p SubscriptionPayload) error {
	_ = ctx

	sub, err := s.repo.GetSubscriptionByProviderRef(p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Subscriptions] updated event for unknown subscription %s", p.ID)
			return nil
		}
		return err
	}

	prevStatus := sub.Status
	applyPayload(sub, p)
	if prevStatus == models.SubscriptionStatusPastDue && sub.Status == models.SubscriptionStatusActive {
		sub.FailedPaymentCount = 0
		log.Infof("[Subscriptions] subscription %s recovered from past_due", p.ID)
	}

	return s.repo.SaveSubscription(sub)
}

// HandleDeleted marks the subscription canceled. Cancellation timestamps come
// from the payload when present, otherwise the processing time is stamped.
func (s *SubscriptionSync) HandleDeleted(ctx context.Context, p SubscriptionPayload) error {
	_ = ctx

	sub, err := s.repo.GetSubscriptionByProviderRef(p.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Subscriptions] deleted event for unknown subscription %s", p.ID)
			return nil
		}
		return err
	}

	now := time.Now()
	sub.Status = models.SubscriptionStatusCanceled
	sub.CanceledAt = unixToTime(p.CanceledAt)
	if sub.CanceledAt == nil {
		sub.CanceledAt = &now
	}
	sub.EndedAt = unixToTime(p.EndedAt)
	if sub.EndedAt == nil {
		sub.EndedAt = &now
	}

	log.Infof("[Subscriptions] subscription %s canceled", p.ID)
	return s.repo.SaveSubscription(sub)
}

// HandleTrialWillEnd only logs; notifying the user is a delivery concern
// outside this service.
func (s *SubscriptionSync) HandleTrialWillEnd(ctx context.Context, p SubscriptionPayload) error {
	_ = ctx
	log.Infof("[Subscriptions] trial ending soon for subscription %s (trial_end=%d)", p.ID, p.TrialEnd)
	return nil
}

// HandleInvoicePaymentFailed increments the subscription's failed payment
// counter. The first failure forces past_due even if the provider has not
// transitioned the subscription yet.
func (s *SubscriptionSync) HandleInvoicePaymentFailed(ctx context.Context, inv InvoicePayload) error {
	_ = ctx

	ref := inv.SubscriptionRef()
	if ref == "" {
		log.Infof("[Subscriptions] failed invoice %s is not tied to a subscription", inv.ID)
		return nil
	}

	sub, err := s.repo.GetSubscriptionByProviderRef(ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Subscriptions] failed invoice %s for unknown subscription %s", inv.ID, ref)
			return nil
		}
		return err
	}

	sub.FailedPaymentCount++
	if sub.FailedPaymentCount == 1 {
		sub.Status = models.SubscriptionStatusPastDue
	}

	log.Warnf("[Subscriptions] payment failed for subscription %s (failure #%d)", ref, sub.FailedPaymentCount)
	return s.repo.SaveSubscription(sub)
}

// ListForUser returns the user's subscriptions, newest first.
func (s *SubscriptionSync) ListForUser(ctx context.Context, userID uint) ([]models.Subscription, error) {
	_ = ctx
	return s.repo.ListSubscriptionsByUser(userID)
}
