package payments

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// CreditGrants tops up user balances when a one-time credit pack checkout
// completes. Recurring checkouts are left to the subscription lifecycle.
type CreditGrants struct {
	repo    Repository
	credits CreditGranter
}

// NewCreditGrants creates the grant handler.
func NewCreditGrants(repo Repository, credits CreditGranter) *CreditGrants {
	return &CreditGrants{repo: repo, credits: credits}
}

// HandleCheckoutSessionCompleted grants the plan's credits for payment-mode
// sessions. The purchased price is carried in the session metadata written at
// checkout creation.
func (g *CreditGrants) HandleCheckoutSessionCompleted(ctx context.Context, s CheckoutSessionPayload) error {
	if s.Mode != "payment" {
		return nil
	}

	priceRef := s.Metadata["price_id"]
	if priceRef == "" {
		log.Warnf("[CreditGrants] checkout session %s has no price_id metadata, skipping grant", s.ID)
		return nil
	}

	user, err := g.repo.GetUserByCustomerRef(s.Customer)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[CreditGrants] checkout session %s for unknown customer %s", s.ID, s.Customer)
			return nil
		}
		return err
	}

	plan, err := g.repo.GetPlanByPriceRef(priceRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[CreditGrants] no plan for price %s, skipping grant", priceRef)
			return nil
		}
		return err
	}
	if plan.CreditsGranted <= 0 {
		return nil
	}

	if err := g.credits.AddCredits(ctx, user.ID, plan.CreditsGranted); err != nil {
		return err
	}
	log.Infof("[CreditGrants] granted %d credits to user %d for plan %s", plan.CreditsGranted, user.ID, plan.Name)
	return nil
}
