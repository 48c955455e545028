package humanize

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/quillforge/quillforge/app/models"
	"github.com/quillforge/quillforge/internal/pkg/credits"
	"github.com/quillforge/quillforge/internal/pkg/jobqueue"
)

// DefaultJobCost is the credit price of one humanization run.
const DefaultJobCost = 1

// ErrEnqueueFailed wraps queue errors after the pipeline rolled back, so the
// API layer can answer with a retryable server error.
var ErrEnqueueFailed = errors.New("failed to enqueue job")

// JobRepository persists humanization job rows.
type JobRepository interface {
	Create(job *models.HumanizationJob) error
	GetByIDForUser(id string, userID uint) (*models.HumanizationJob, error)
	ListByUser(userID uint, limit int) ([]models.HumanizationJob, error)
	MarkFailed(id string, errorMsg string) error
}

// TextStore writes job input texts to object storage.
type TextStore interface {
	PutText(ctx context.Context, key, text string) (string, error)
}

// Enqueuer hands jobs to the background queue.
type Enqueuer interface {
	EnqueueHumanizeJob(jobID string) (*jobqueue.Job, error)
}

// Service runs the submission pipeline: deduct the credit, persist the input
// text, create the job row, enqueue. The deduction comes first so a user can
// never get free work out of a race; everything after it must either succeed
// or give the credit back.
type Service struct {
	jobs    JobRepository
	credits *credits.Ledger
	store   TextStore
	queue   Enqueuer
}

// NewService wires the submission pipeline.
func NewService(jobs JobRepository, ledger *credits.Ledger, store TextStore, queue Enqueuer) *Service {
	return &Service{jobs: jobs, credits: ledger, store: store, queue: queue}
}

// SubmitInput describes one submission.
type SubmitInput struct {
	UserID      uint
	Text        string
	Readability string
	Tone        string
}

// SubmitJob runs the pipeline and returns the pending job row.
func (s *Service) SubmitJob(ctx context.Context, in SubmitInput) (*models.HumanizationJob, error) {
	cost := int64(DefaultJobCost)

	if err := s.credits.DeductCredits(ctx, in.UserID, cost); err != nil {
		return nil, err
	}

	jobID := uuid.New().String()

	inputRef, err := s.store.PutText(ctx, fmt.Sprintf("jobs/%s/input.txt", jobID), in.Text)
	if err != nil {
		// No job row exists yet, only the credit needs to come back.
		s.refund(ctx, in.UserID, cost)
		return nil, fmt.Errorf("failed to store input text: %w", err)
	}

	job := &models.HumanizationJob{
		ID:          jobID,
		UserID:      in.UserID,
		InputRef:    inputRef,
		Cost:        cost,
		Readability: in.Readability,
		Tone:        in.Tone,
		Status:      models.JobStatusPending,
	}
	if err := s.jobs.Create(job); err != nil {
		s.refund(ctx, in.UserID, cost)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if _, err := s.queue.EnqueueHumanizeJob(jobID); err != nil {
		s.rollbackEnqueueFailure(ctx, job)
		return nil, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}

	log.Infof("[Humanize] submitted job %s for user %d", job.ID, in.UserID)
	return job, nil
}

// rollbackEnqueueFailure runs the two compensation steps independently; one
// failing must not stop the other. Their errors are logged, never returned,
// so the caller still sees the enqueue failure.
func (s *Service) rollbackEnqueueFailure(ctx context.Context, job *models.HumanizationJob) {
	if err := s.jobs.MarkFailed(job.ID, "failed to enqueue"); err != nil {
		log.Errorf("[Humanize] rollback: failed to mark job %s failed: %v", job.ID, err)
	}
	s.refund(ctx, job.UserID, job.Cost)
}

func (s *Service) refund(ctx context.Context, userID uint, cost int64) {
	if err := s.credits.AddCredits(ctx, userID, cost); err != nil {
		log.Errorf("[Humanize] failed to refund %d credits to user %d: %v", cost, userID, err)
	}
}

// GetJobForUser returns one of the user's jobs.
func (s *Service) GetJobForUser(ctx context.Context, jobID string, userID uint) (*models.HumanizationJob, error) {
	_ = ctx
	return s.jobs.GetByIDForUser(jobID, userID)
}

// ListJobsForUser returns the user's newest jobs.
func (s *Service) ListJobsForUser(ctx context.Context, userID uint, limit int) ([]models.HumanizationJob, error) {
	_ = ctx
	return s.jobs.ListByUser(userID, limit)
}
