package repository

import (
	"time"

	"github.com/quillforge/quillforge/app/models"
	"gorm.io/gorm"
)

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *models.HumanizationJob) error {
	return r.db.Create(job).Error
}

func (r *jobRepository) GetByID(id string) (*models.HumanizationJob, error) {
	var job models.HumanizationJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) GetByIDForUser(id string, userID uint) (*models.HumanizationJob, error) {
	var job models.HumanizationJob
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) ListByUser(userID uint, limit int) ([]models.HumanizationJob, error) {
	var jobs []models.HumanizationJob
	q := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&jobs).Error
	return jobs, err
}

func (r *jobRepository) MarkProcessing(id string) error {
	return r.db.Model(&models.HumanizationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status": models.JobStatusProcessing,
		}).Error
}

func (r *jobRepository) MarkCompleted(id string, outputRef string, tokensUsed int) error {
	now := time.Now()
	return r.db.Model(&models.HumanizationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"output_ref":   outputRef,
			"tokens_used":  tokensUsed,
			"error_msg":    "",
			"processed_at": &now,
		}).Error
}

func (r *jobRepository) MarkFailed(id string, errorMsg string) error {
	now := time.Now()
	return r.db.Model(&models.HumanizationJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.JobStatusFailed,
			"error_msg":    errorMsg,
			"processed_at": &now,
		}).Error
}
