package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillforge/quillforge/app/models"
	"github.com/quillforge/quillforge/internal/pkg/transformer"
)

// JobStore persists humanization job rows.
type JobStore interface {
	GetByID(id string) (*models.HumanizationJob, error)
	MarkProcessing(id string) error
	MarkCompleted(id string, outputRef string, tokensUsed int) error
	MarkFailed(id string, errorMsg string) error
}

// TextStore reads and writes job texts in object storage.
type TextStore interface {
	PutText(ctx context.Context, key, text string) (string, error)
	GetText(ctx context.Context, ref string) (string, error)
}

// Transformer rewrites text.
type Transformer interface {
	Humanize(ctx context.Context, text, readability, tone string) (*transformer.Result, error)
}

// HumanizeProcessor executes one humanization run: load the input text,
// transform it, store the output and finalize the job row. Once the row is
// marked processing the credit is spent; failures from here on are terminal
// and are not refunded.
type HumanizeProcessor struct {
	jobs        JobStore
	store       TextStore
	transformer Transformer
}

// NewHumanizeProcessor creates the processor.
func NewHumanizeProcessor(jobs JobStore, store TextStore, tf Transformer) *HumanizeProcessor {
	return &HumanizeProcessor{jobs: jobs, store: store, transformer: tf}
}

// Process handles one queue delivery.
func (p *HumanizeProcessor) Process(ctx context.Context, job *Job) error {
	payload, err := HumanizeJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("invalid humanize payload: %w", err)
	}

	entity, err := p.jobs.GetByID(payload.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", payload.JobID, err)
	}

	// Queue delivery is at-least-once; a finished row means this is a
	// duplicate delivery.
	if entity.IsTerminal() {
		log.Infof("[Humanize] job %s already %s, skipping", entity.ID, entity.Status)
		return nil
	}

	if err := p.jobs.MarkProcessing(entity.ID); err != nil {
		return fmt.Errorf("failed to mark job %s processing: %w", entity.ID, err)
	}

	input, err := p.store.GetText(ctx, entity.InputRef)
	if err != nil {
		return p.fail(entity.ID, fmt.Errorf("failed to load input text: %w", err))
	}

	result, err := p.transformer.Humanize(ctx, input, entity.Readability, entity.Tone)
	if err != nil {
		return p.fail(entity.ID, fmt.Errorf("transform failed: %w", err))
	}

	outputKey := fmt.Sprintf("jobs/%s/output.txt", entity.ID)
	outputRef, err := p.store.PutText(ctx, outputKey, result.Text)
	if err != nil {
		return p.fail(entity.ID, fmt.Errorf("failed to store output text: %w", err))
	}

	if err := p.jobs.MarkCompleted(entity.ID, outputRef, result.TokensUsed); err != nil {
		return fmt.Errorf("failed to mark job %s completed: %w", entity.ID, err)
	}

	log.Infof("[Humanize] job %s completed (%d tokens)", entity.ID, result.TokensUsed)
	return nil
}

func (p *HumanizeProcessor) fail(jobID string, cause error) error {
	if err := p.jobs.MarkFailed(jobID, cause.Error()); err != nil {
		log.Errorf("[Humanize] failed to mark job %s failed: %v", jobID, err)
	}
	return cause
}
