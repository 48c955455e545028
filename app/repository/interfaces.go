package repository

import (
	"github.com/quillforge/quillforge/app/models"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	GetByStripeCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	TouchAPIKeyUsage(id uint) error
}

// JobRepository defines the interface for humanization job rows
type JobRepository interface {
	Create(job *models.HumanizationJob) error
	GetByID(id string) (*models.HumanizationJob, error)
	GetByIDForUser(id string, userID uint) (*models.HumanizationJob, error)
	ListByUser(userID uint, limit int) ([]models.HumanizationJob, error)
	MarkProcessing(id string) error
	MarkCompleted(id string, outputRef string, tokensUsed int) error
	MarkFailed(id string, errorMsg string) error
}

// PlanRepository defines the interface for the plan catalog
type PlanRepository interface {
	ListActive() ([]models.Plan, error)
	GetByID(id uint) (*models.Plan, error)
	GetByPriceRef(priceRef string) (*models.Plan, error)
}

// Repositories holds all repository instances
type Repositories struct {
	User UserRepository
	Job  JobRepository
	Plan PlanRepository
}
