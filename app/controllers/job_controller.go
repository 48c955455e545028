package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/quillforge/quillforge/app/repository"
	"github.com/quillforge/quillforge/internal/pkg/credits"
	"github.com/quillforge/quillforge/internal/pkg/database"
	"github.com/quillforge/quillforge/internal/pkg/humanize"
	"github.com/quillforge/quillforge/internal/pkg/jobqueue"
	"github.com/quillforge/quillforge/internal/pkg/textstore"
	"github.com/quillforge/quillforge/internal/pkg/usercontext"
)

// CreateJobRequest is the body of POST /api/v1/jobs.
type CreateJobRequest struct {
	Text        string `json:"text" validate:"required,min=1,max=100000"`
	Readability string `json:"readability" validate:"omitempty,oneof=high_school university doctorate journalist marketing"`
	Tone        string `json:"tone" validate:"omitempty,oneof=formal casual professional friendly"`
}

func humanizeService() (*humanize.Service, error) {
	store, err := textstore.GetClient()
	if err != nil {
		return nil, err
	}
	db := database.GetDB()
	return humanize.NewService(
		repository.GetGlobalFactory().GetJobRepository(),
		credits.NewLedger(credits.NewRepository(db)),
		store,
		jobqueue.GetManager(nil).GetQueue(),
	), nil
}

// HandleCreateJob submits a humanization job for the authenticated user.
func HandleCreateJob(c *fiber.Ctx) error {
	var req CreateJobRequest
	if ok, err := parseAndValidate(c, &req); !ok {
		return err
	}

	svc, err := humanizeService()
	if err != nil {
		log.Errorf("[Jobs] service unavailable: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "service_unavailable",
			"message": "Job submission is temporarily unavailable",
		})
	}

	job, err := svc.SubmitJob(c.UserContext(), humanize.SubmitInput{
		UserID:      usercontext.GetUserID(c),
		Text:        req.Text,
		Readability: req.Readability,
		Tone:        req.Tone,
	})
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrInsufficientCredits):
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error":   "insufficient_credits",
				"message": "Not enough credits to submit this job",
			})
		case errors.Is(err, humanize.ErrEnqueueFailed):
			log.Errorf("[Jobs] enqueue failed: %v", err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "service_unavailable",
				"message": "Job queue is temporarily unavailable, credit refunded",
			})
		default:
			log.Errorf("[Jobs] submission failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "Job submission failed",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

// HandleGetJob returns one of the user's jobs by ID.
func HandleGetJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Missing job ID",
		})
	}

	repo := repository.GetGlobalFactory().GetJobRepository()
	job, err := repo.GetByIDForUser(jobID, usercontext.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "Job not found",
			})
		}
		log.Errorf("[Jobs] lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Job lookup failed",
		})
	}

	return c.JSON(job)
}

// HandleListJobs returns the user's newest jobs.
func HandleListJobs(c *fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	repo := repository.GetGlobalFactory().GetJobRepository()
	jobs, err := repo.ListByUser(usercontext.GetUserID(c), limit)
	if err != nil {
		log.Errorf("[Jobs] listing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Job listing failed",
		})
	}

	return c.JSON(fiber.Map{"jobs": jobs})
}

// HandleGetJobOutput returns the transformed text of a completed job.
func HandleGetJobOutput(c *fiber.Ctx) error {
	jobID := c.Params("id")

	repo := repository.GetGlobalFactory().GetJobRepository()
	job, err := repo.GetByIDForUser(jobID, usercontext.GetUserID(c))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "Job not found",
			})
		}
		log.Errorf("[Jobs] lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Job lookup failed",
		})
	}
	if job.OutputRef == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":   "not_ready",
			"message": "Job has no output yet",
			"status":  job.Status,
		})
	}

	store, err := textstore.GetClient()
	if err != nil {
		log.Errorf("[Jobs] text store unavailable: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "service_unavailable",
			"message": "Output storage is temporarily unavailable",
		})
	}

	text, err := store.GetText(c.UserContext(), job.OutputRef)
	if err != nil {
		log.Errorf("[Jobs] output download failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Output download failed",
		})
	}

	return c.JSON(fiber.Map{
		"job_id": job.ID,
		"status": job.Status,
		"text":   text,
	})
}

// HandleGetCredits returns the user's current credit balance.
func HandleGetCredits(c *fiber.Ctx) error {
	db := database.GetDB()
	ledger := credits.NewLedger(credits.NewRepository(db))

	balance, err := ledger.Balance(c.UserContext(), usercontext.GetUserID(c))
	if err != nil {
		log.Errorf("[Credits] balance lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Balance lookup failed",
		})
	}

	return c.JSON(fiber.Map{"balance": balance})
}
