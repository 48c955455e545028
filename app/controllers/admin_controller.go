package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/quillforge/quillforge/internal/pkg/jobqueue"
)

// HandleQueueStats returns queue depth and per-status job counters.
func HandleQueueStats(c *fiber.Ctx) error {
	queue := jobqueue.GetManager(nil).GetQueue()
	ctx := c.UserContext()

	stats, err := queue.GetJobStats(ctx)
	if err != nil {
		log.Errorf("[Admin] queue stats lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Queue stats lookup failed",
		})
	}
	pending, err := queue.GetQueueSize(ctx)
	if err != nil {
		log.Errorf("[Admin] queue size lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Queue stats lookup failed",
		})
	}
	processing, err := queue.GetProcessingSize(ctx)
	if err != nil {
		log.Errorf("[Admin] processing size lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Queue stats lookup failed",
		})
	}

	return c.JSON(fiber.Map{
		"pending":    pending,
		"processing": processing,
		"stats":      stats,
	})
}

// HandleGetQueueJob returns a queue envelope by its queue job ID.
func HandleGetQueueJob(c *fiber.Ctx) error {
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "bad_request",
			"message": "Missing job ID",
		})
	}

	queue := jobqueue.GetManager(nil).GetQueue()
	job, err := queue.GetJob(c.UserContext(), jobID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   "not_found",
				"message": "Queue job not found or expired",
			})
		}
		log.Errorf("[Admin] queue job lookup failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "internal_server_error",
			"message": "Queue job lookup failed",
		})
	}

	return c.JSON(job)
}
