package humanize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/quillforge/quillforge/app/models"
	"github.com/quillforge/quillforge/internal/pkg/credits"
	"github.com/quillforge/quillforge/internal/pkg/jobqueue"
	"github.com/stretchr/testify/assert"
)

type fakeJobRepo struct {
	jobs      map[string]*models.HumanizationJob
	createErr error
	failed    map[string]string
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:   make(map[string]*models.HumanizationJob),
		failed: make(map[string]string),
	}
}

func (f *fakeJobRepo) Create(job *models.HumanizationJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobRepo) GetByIDForUser(id string, userID uint) (*models.HumanizationJob, error) {
	job, ok := f.jobs[id]
	if !ok || job.UserID != userID {
		return nil, errors.New("not found")
	}
	return job, nil
}

func (f *fakeJobRepo) ListByUser(userID uint, limit int) ([]models.HumanizationJob, error) {
	var out []models.HumanizationJob
	for _, job := range f.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) MarkFailed(id string, errorMsg string) error {
	f.failed[id] = errorMsg
	if job, ok := f.jobs[id]; ok {
		job.Status = models.JobStatusFailed
		job.ErrorMsg = errorMsg
	}
	return nil
}

type fakeTextStore struct {
	texts  map[string]string
	putErr error
}

func newFakeTextStore() *fakeTextStore {
	return &fakeTextStore{texts: make(map[string]string)}
}

func (f *fakeTextStore) PutText(ctx context.Context, key, text string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.texts[key] = text
	return "s3://bucket/" + key, nil
}

type fakeEnqueuer struct {
	enqueued []string
	err      error
}

func (f *fakeEnqueuer) EnqueueHumanizeJob(jobID string) (*jobqueue.Job, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.enqueued = append(f.enqueued, jobID)
	return &jobqueue.Job{ID: jobID}, nil
}

type fakeCreditRepo struct {
	balances map[uint]int64
}

func (f *fakeCreditRepo) GetAccount(userID uint) (*models.CreditAccount, error) {
	balance, ok := f.balances[userID]
	if !ok {
		return nil, nil
	}
	return &models.CreditAccount{UserID: userID, Balance: balance}, nil
}

func (f *fakeCreditRepo) DeductBalance(userID uint, cost int64) (bool, error) {
	if f.balances[userID] < cost {
		return false, nil
	}
	f.balances[userID] -= cost
	return true, nil
}

func (f *fakeCreditRepo) AddBalance(userID uint, amount int64) error {
	f.balances[userID] += amount
	return nil
}

type pipeline struct {
	service *Service
	jobs    *fakeJobRepo
	store   *fakeTextStore
	queue   *fakeEnqueuer
	credits *fakeCreditRepo
}

func newPipeline(balance int64) *pipeline {
	p := &pipeline{
		jobs:    newFakeJobRepo(),
		store:   newFakeTextStore(),
		queue:   &fakeEnqueuer{},
		credits: &fakeCreditRepo{balances: map[uint]int64{1: balance}},
	}
	p.service = NewService(p.jobs, credits.NewLedger(p.credits), p.store, p.queue)
	return p
}

func TestSubmitJob(t *testing.T) {
	p := newPipeline(5)

	job, err := p.service.SubmitJob(context.Background(), SubmitInput{
		UserID:      1,
		Text:        "Sample text to humanize.",
		Readability: "university",
		Tone:        "casual",
	})
	assert.NoError(t, err)

	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, int64(DefaultJobCost), job.Cost)
	assert.Equal(t, "university", job.Readability)
	assert.True(t, strings.HasPrefix(job.InputRef, "s3://bucket/jobs/"))

	assert.Equal(t, int64(4), p.credits.balances[1])
	assert.Equal(t, []string{job.ID}, p.queue.enqueued)
	assert.Contains(t, p.store.texts, "jobs/"+job.ID+"/input.txt")
}

func TestSubmitJobInsufficientCredits(t *testing.T) {
	p := newPipeline(0)

	_, err := p.service.SubmitJob(context.Background(), SubmitInput{UserID: 1, Text: "text"})
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)

	// Nothing downstream must have run.
	assert.Empty(t, p.jobs.jobs)
	assert.Empty(t, p.store.texts)
	assert.Empty(t, p.queue.enqueued)
}

func TestSubmitJobStoreFailureRefunds(t *testing.T) {
	p := newPipeline(5)
	p.store.putErr = errors.New("bucket unreachable")

	_, err := p.service.SubmitJob(context.Background(), SubmitInput{UserID: 1, Text: "text"})
	assert.Error(t, err)

	assert.Equal(t, int64(5), p.credits.balances[1])
	assert.Empty(t, p.jobs.jobs)
	assert.Empty(t, p.queue.enqueued)
}

func TestSubmitJobCreateFailureRefunds(t *testing.T) {
	p := newPipeline(5)
	p.jobs.createErr = errors.New("insert failed")

	_, err := p.service.SubmitJob(context.Background(), SubmitInput{UserID: 1, Text: "text"})
	assert.Error(t, err)

	assert.Equal(t, int64(5), p.credits.balances[1])
	assert.Empty(t, p.queue.enqueued)
}

func TestSubmitJobEnqueueFailureRollsBack(t *testing.T) {
	p := newPipeline(5)
	p.queue.err = errors.New("redis down")

	_, err := p.service.SubmitJob(context.Background(), SubmitInput{UserID: 1, Text: "text"})
	assert.ErrorIs(t, err, ErrEnqueueFailed)

	// The credit comes back and the row is marked failed.
	assert.Equal(t, int64(5), p.credits.balances[1])
	if len(p.jobs.failed) != 1 {
		t.Fatalf("expected 1 failed job, got %d", len(p.jobs.failed))
	}
	for _, job := range p.jobs.jobs {
		assert.Equal(t, models.JobStatusFailed, job.Status)
	}
}

func TestGetJobForUserScopesByOwner(t *testing.T) {
	p := newPipeline(5)

	job, err := p.service.SubmitJob(context.Background(), SubmitInput{UserID: 1, Text: "text"})
	assert.NoError(t, err)

	got, err := p.service.GetJobForUser(context.Background(), job.ID, 1)
	assert.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)

	_, err = p.service.GetJobForUser(context.Background(), job.ID, 2)
	assert.Error(t, err)
}
