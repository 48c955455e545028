package credits

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/quillforge/quillforge/app/models"
	"github.com/stretchr/testify/assert"
)

// fakeRepo is an in-memory Repository with the same atomicity contract as the
// GORM implementation.
type fakeRepo struct {
	mu       sync.Mutex
	balances map[uint]int64
	err      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{balances: make(map[uint]int64)}
}

func (f *fakeRepo) GetAccount(userID uint) (*models.CreditAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	balance, ok := f.balances[userID]
	if !ok {
		return nil, nil
	}
	return &models.CreditAccount{UserID: userID, Balance: balance}, nil
}

func (f *fakeRepo) DeductBalance(userID uint, cost int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.balances[userID] < cost {
		return false, nil
	}
	f.balances[userID] -= cost
	return true, nil
}

func (f *fakeRepo) AddBalance(userID uint, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.balances[userID] += amount
	return nil
}

func TestBalanceWithoutAccountIsZero(t *testing.T) {
	ledger := NewLedger(newFakeRepo())

	balance, err := ledger.Balance(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestAddAndDeduct(t *testing.T) {
	repo := newFakeRepo()
	ledger := NewLedger(repo)
	ctx := context.Background()

	assert.NoError(t, ledger.AddCredits(ctx, 1, 10))
	assert.NoError(t, ledger.DeductCredits(ctx, 1, 3))

	balance, err := ledger.Balance(ctx, 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), balance)
}

func TestDeductInsufficientBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 2
	ledger := NewLedger(repo)

	err := ledger.DeductCredits(context.Background(), 1, 3)
	assert.ErrorIs(t, err, ErrInsufficientCredits)
	assert.Equal(t, int64(2), repo.balances[1])
}

func TestDeductExactBalance(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 3
	ledger := NewLedger(repo)

	assert.NoError(t, ledger.DeductCredits(context.Background(), 1, 3))
	assert.Equal(t, int64(0), repo.balances[1])
}

func TestConcurrentDeductsSpendBalanceOnce(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 3
	ledger := NewLedger(repo)
	ctx := context.Background()

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ledger.DeductCredits(ctx, 1, 3)
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrInsufficientCredits)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, int64(0), repo.balances[1])
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	ledger := NewLedger(newFakeRepo())
	ctx := context.Background()

	assert.Error(t, ledger.DeductCredits(ctx, 1, 0))
	assert.Error(t, ledger.DeductCredits(ctx, 1, -5))
	assert.Error(t, ledger.AddCredits(ctx, 1, 0))
	assert.Error(t, ledger.AddCredits(ctx, 1, -5))
}

func TestHasSufficientCredits(t *testing.T) {
	repo := newFakeRepo()
	repo.balances[1] = 5
	ledger := NewLedger(repo)
	ctx := context.Background()

	ok, err := ledger.HasSufficientCredits(ctx, 1, 5)
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.HasSufficientCredits(ctx, 1, 6)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestRepositoryErrorsPropagate(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("connection lost")
	ledger := NewLedger(repo)
	ctx := context.Background()

	_, err := ledger.Balance(ctx, 1)
	assert.Error(t, err)
	assert.Error(t, ledger.DeductCredits(ctx, 1, 1))
	assert.Error(t, ledger.AddCredits(ctx, 1, 1))
}
