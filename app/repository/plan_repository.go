package repository

import (
	"github.com/quillforge/quillforge/app/models"
	"gorm.io/gorm"
)

type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

func (r *planRepository) ListActive() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Where("is_active = ?", true).
		Order("sort_order ASC, amount ASC").
		Find(&plans).Error
	return plans, err
}

func (r *planRepository) GetByID(id uint) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.First(&plan, id).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) GetByPriceRef(priceRef string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("provider_price_ref = ?", priceRef).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
