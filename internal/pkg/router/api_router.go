package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/quillforge/quillforge/app/controllers"
	"github.com/quillforge/quillforge/internal/pkg/env"
	"github.com/quillforge/quillforge/internal/pkg/middleware"
)

type ApiRouter struct {
}

// limiterStorage backs the API rate limiter with Redis so limits hold across
// instances. Database 1 keeps limiter keys out of the cache keyspace.
func limiterStorage() *redisstorage.Storage {
	port := 6379
	if v, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379")); err == nil {
		port = v
	}
	return redisstorage.New(redisstorage.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
		Reset:    false,
	})
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Storage:    limiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// Public catalog
	v1.Get("/plans", controllers.HandleListPlans)

	// API-key protected routes
	auth := v1.Group("", middleware.APIKeyAuthMiddleware())
	auth.Post("/jobs", controllers.HandleCreateJob)
	auth.Get("/jobs", controllers.HandleListJobs)
	auth.Get("/jobs/:id", controllers.HandleGetJob)
	auth.Get("/jobs/:id/output", controllers.HandleGetJobOutput)
	auth.Get("/credits", controllers.HandleGetCredits)
	auth.Get("/transactions", controllers.HandleListTransactions)
	auth.Get("/subscriptions", controllers.HandleListSubscriptions)
	auth.Post("/billing/checkout", controllers.HandleCreateCheckoutSession)
	auth.Post("/billing/portal", controllers.HandleCreatePortalSession)

	// Operational queue inspection, admin only
	admin := auth.Group("/admin", middleware.AdminRequiredMiddleware())
	admin.Get("/queue", controllers.HandleQueueStats)
	admin.Get("/queue/jobs/:id", controllers.HandleGetQueueJob)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
