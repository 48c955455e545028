package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillforge/quillforge/app/models"
	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
)

// CheckoutService creates provider checkout and billing portal sessions for
// the local plan catalog.
type CheckoutService struct {
	cfg  Config
	repo Repository
}

// NewCheckoutService creates the checkout service. The provider SDK uses a
// package-level key, set here once.
func NewCheckoutService(cfg Config, repo Repository) *CheckoutService {
	stripe.Key = cfg.SecretKey
	return &CheckoutService{cfg: cfg, repo: repo}
}

// CheckoutSessionResult is returned to the API caller for redirecting.
type CheckoutSessionResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// ensureCustomer returns the user's provider customer reference, creating the
// customer lazily on first checkout.
func (s *CheckoutService) ensureCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	cust, err := customer.New(&stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(user.Name),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create provider customer: %w", err)
	}

	user.StripeCustomerID = cust.ID
	if err := s.repo.SaveUser(user); err != nil {
		return "", fmt.Errorf("failed to persist customer reference: %w", err)
	}

	log.Infof("[Checkout] created provider customer %s for user %d", cust.ID, user.ID)
	return cust.ID, nil
}

// CreateSessionForPlan creates a checkout session for the given plan.
// Recurring plans open a subscription session; one-time plans open a payment
// session whose metadata drives the credit grant on completion.
func (s *CheckoutService) CreateSessionForPlan(ctx context.Context, user *models.User, plan *models.Plan, successURL, cancelURL string) (*CheckoutSessionResult, error) {
	_ = ctx

	if !s.cfg.IsConfigured() {
		return nil, ErrNotConfigured
	}

	customerRef, err := s.ensureCustomer(user)
	if err != nil {
		return nil, err
	}

	mode := stripe.CheckoutSessionModePayment
	if plan.IsRecurring() {
		mode = stripe.CheckoutSessionModeSubscription
	}

	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerRef),
		Mode:     stripe.String(string(mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(plan.ProviderPriceRef),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(strconv.FormatUint(uint64(user.ID), 10)),
	}
	params.AddMetadata("price_id", plan.ProviderPriceRef)
	params.AddMetadata("plan_id", strconv.FormatUint(uint64(plan.ID), 10))

	if plan.IsRecurring() && plan.TrialPeriodDays > 0 {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(int64(plan.TrialPeriodDays)),
		}
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	log.Infof("[Checkout] created session %s for user %d, plan %s", sess.ID, user.ID, plan.Name)
	return &CheckoutSessionResult{SessionID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession opens the provider's billing portal for an existing
// customer.
func (s *CheckoutService) CreatePortalSession(ctx context.Context, user *models.User, returnURL string) (string, error) {
	_ = ctx

	if !s.cfg.IsConfigured() {
		return "", ErrNotConfigured
	}
	if user.StripeCustomerID == "" {
		return "", fmt.Errorf("user %d has no provider customer", user.ID)
	}

	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sess.URL, nil
}
