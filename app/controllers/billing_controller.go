package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/quillforge/quillforge/app/repository"
	"github.com/quillforge/quillforge/internal/pkg/database"
	"github.com/quillforge/quillforge/internal/pkg/payments"
	"github.com/quillforge/quillforge/internal/pkg/usercontext"
)

// HandleListPlans returns the active plan catalog. Public.
func HandleListPlans(c *fiber.Ctx) error {
	plans, err := repository.GetGlobalFactory().GetPlanRepository().ListActive()
	if err != nil {
		log.Errorf("[Billing] plan listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Plan listing failed",
		})
	}
	return c.JSON(fiber.Map{"plans": plans})
}

// HandleListTransactions returns the user's newest transactions.
func HandleListTransactions(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	ledger := payments.NewTransactionLedger(payments.NewRepository(database.GetDB()))
	txs, err := ledger.ListForUser(c.UserContext(), usercontext.GetUserID(c), limit)
	if err != nil {
		log.Errorf("[Billing] transaction listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Transaction listing failed",
		})
	}

	return c.JSON(fiber.Map{"transactions": txs})
}

// HandleListSubscriptions returns the user's subscriptions.
func HandleListSubscriptions(c *fiber.Ctx) error {
	sync := payments.NewSubscriptionSync(payments.NewRepository(database.GetDB()))
	subs, err := sync.ListForUser(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		log.Errorf("[Billing] subscription listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Subscription listing failed",
		})
	}

	return c.JSON(fiber.Map{"subscriptions": subs})
}

// CreateCheckoutRequest is the body of POST /api/v1/billing/checkout.
type CreateCheckoutRequest struct {
	PlanID     uint   `json:"plan_id" validate:"required"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// HandleCreateCheckoutSession opens a provider checkout for a plan.
func HandleCreateCheckoutSession(c *fiber.Ctx) error {
	var req CreateCheckoutRequest
	if ok, err := parseAndValidate(c, &req); !ok {
		return err
	}

	plan, err := repository.GetGlobalFactory().GetPlanRepository().GetByID(req.PlanID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "Plan not found",
			})
		}
		log.Errorf("[Billing] plan lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Plan lookup failed",
		})
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(usercontext.GetUserID(c))
	if err != nil {
		log.Errorf("[Billing] user lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "User lookup failed",
		})
	}

	cfg := payments.ConfigFromEnv()
	checkout := payments.NewCheckoutService(cfg, payments.NewRepository(database.GetDB()))
	result, err := checkout.CreateSessionForPlan(c.UserContext(), user, plan, req.SuccessURL, req.CancelURL)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "service_unavailable",
				"message": "Payment provider not configured",
			})
		}
		log.Errorf("[Billing] checkout creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Checkout creation failed",
		})
	}

	return c.JSON(result)
}

// CreatePortalRequest is the body of POST /api/v1/billing/portal.
type CreatePortalRequest struct {
	ReturnURL string `json:"return_url" validate:"required,url"`
}

// HandleCreatePortalSession opens the provider billing portal.
func HandleCreatePortalSession(c *fiber.Ctx) error {
	var req CreatePortalRequest
	if ok, err := parseAndValidate(c, &req); !ok {
		return err
	}

	user, err := repository.GetGlobalFactory().GetUserRepository().GetByID(usercontext.GetUserID(c))
	if err != nil {
		log.Errorf("[Billing] user lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "User lookup failed",
		})
	}

	cfg := payments.ConfigFromEnv()
	checkout := payments.NewCheckoutService(cfg, payments.NewRepository(database.GetDB()))
	url, err := checkout.CreatePortalSession(c.UserContext(), user, req.ReturnURL)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "service_unavailable",
				"message": "Payment provider not configured",
			})
		}
		log.Errorf("[Billing] portal creation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Portal creation failed",
		})
	}

	return c.JSON(fiber.Map{"url": url})
}
