package credits

import (
	"errors"

	"github.com/quillforge/quillforge/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the credit ledger.
type Repository interface {
	// GetAccount returns the account row, or nil when the user has none.
	GetAccount(userID uint) (*models.CreditAccount, error)
	// DeductBalance subtracts cost if and only if the balance covers it,
	// in a single atomic statement. Returns whether a row was changed.
	DeductBalance(userID uint, cost int64) (bool, error)
	// AddBalance adds amount, creating the account row when absent.
	AddBalance(userID uint, amount int64) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a credits repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetAccount(userID uint) (*models.CreditAccount, error) {
	var account models.CreditAccount
	err := r.db.Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *gormRepository) DeductBalance(userID uint, cost int64) (bool, error) {
	// Guard and decrement in one UPDATE so concurrent deductions serialize
	// on the row and can never drive the balance negative.
	tx := r.db.Model(&models.CreditAccount{}).
		Where("user_id = ? AND balance >= ?", userID, cost).
		UpdateColumn("balance", gorm.Expr("balance - ?", cost))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) AddBalance(userID uint, amount int64) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
		}),
	}).Create(&models.CreditAccount{
		UserID:  userID,
		Balance: amount,
	}).Error
}
