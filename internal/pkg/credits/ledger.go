package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
)

// ErrInsufficientCredits is returned when a deduction would take the balance
// below zero.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger manages per-user credit balances. Deductions are atomic at the
// storage layer so concurrent submissions can never overspend a balance.
type Ledger struct {
	repo Repository
}

// NewLedger creates the credit ledger service.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// Balance returns the user's current balance. Users without an account row
// have a balance of zero.
func (l *Ledger) Balance(ctx context.Context, userID uint) (int64, error) {
	_ = ctx
	account, err := l.repo.GetAccount(userID)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

// HasSufficientCredits reports whether the balance covers the cost. This is
// advisory only; DeductCredits re-checks atomically.
func (l *Ledger) HasSufficientCredits(ctx context.Context, userID uint, cost int64) (bool, error) {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= cost, nil
}

// DeductCredits atomically subtracts cost from the balance. The check and the
// subtraction happen in one statement; when the balance does not cover the
// cost nothing changes and ErrInsufficientCredits is returned.
func (l *Ledger) DeductCredits(ctx context.Context, userID uint, cost int64) error {
	_ = ctx
	if cost <= 0 {
		return fmt.Errorf("deduction cost must be positive, got %d", cost)
	}

	deducted, err := l.repo.DeductBalance(userID, cost)
	if err != nil {
		return fmt.Errorf("failed to deduct credits for user %d: %w", userID, err)
	}
	if !deducted {
		return ErrInsufficientCredits
	}

	log.Debugf("[Credits] deducted %d credits from user %d", cost, userID)
	return nil
}

// AddCredits adds amount to the balance, creating the account row if the
// user has none yet.
func (l *Ledger) AddCredits(ctx context.Context, userID uint, amount int64) error {
	_ = ctx
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}

	if err := l.repo.AddBalance(userID, amount); err != nil {
		return fmt.Errorf("failed to add credits for user %d: %w", userID, err)
	}

	log.Infof("[Credits] added %d credits to user %d", amount, userID)
	return nil
}
