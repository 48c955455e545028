package payments

import (
	"context"
	"testing"

	"github.com/quillforge/quillforge/app/models"
	"github.com/stretchr/testify/assert"
)

func subscriptionEvent(id, customer, status string) SubscriptionPayload {
	p := SubscriptionPayload{
		ID:       id,
		Customer: customer,
		Status:   status,
		Created:  1700000000,
	}
	p.Items.Data = []SubscriptionItemPayload{
		{
			CurrentPeriodStart: 1700000000,
			CurrentPeriodEnd:   1702592000,
			Price: PricePayload{
				ID:         "price_pro",
				Nickname:   "Pro",
				UnitAmount: 1999,
				Currency:   "usd",
				Recurring: &struct {
					Interval      string `json:"interval"`
					IntervalCount int    `json:"interval_count"`
				}{Interval: "month", IntervalCount: 1},
			},
		},
	}
	return p
}

func TestSubscriptionCreated(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 7}
	sync := NewSubscriptionSync(repo)

	err := sync.HandleCreated(context.Background(), subscriptionEvent("sub_1", "cus_1", "trialing"))
	assert.NoError(t, err)

	sub := repo.subsByRef["sub_1"]
	if sub == nil {
		t.Fatal("expected subscription row")
	}
	assert.Equal(t, uint(7), sub.UserID)
	assert.Equal(t, models.SubscriptionStatusTrialing, sub.Status)
	assert.Equal(t, "price_pro", sub.PlanRef)
	assert.Equal(t, "Pro", sub.PlanName)
	assert.Equal(t, "19.99", sub.Amount.String())
	assert.Equal(t, "month", sub.Interval)
	if sub.CurrentPeriodStart == nil || sub.CurrentPeriodEnd == nil {
		t.Fatal("expected period timestamps")
	}
}

func TestSubscriptionCreatedUnknownCustomerIsAcked(t *testing.T) {
	repo := newFakeRepo()
	sync := NewSubscriptionSync(repo)

	err := sync.HandleCreated(context.Background(), subscriptionEvent("sub_1", "cus_missing", "active"))
	assert.NoError(t, err)
	assert.Empty(t, repo.subsByRef)
}

func TestSubscriptionCreatedTwiceKeepsOneRow(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 7}
	sync := NewSubscriptionSync(repo)

	event := subscriptionEvent("sub_1", "cus_1", "active")
	assert.NoError(t, sync.HandleCreated(context.Background(), event))
	assert.NoError(t, sync.HandleCreated(context.Background(), event))

	assert.Len(t, repo.subsByRef, 1)
}

func TestSubscriptionRecoveryResetsFailureCount(t *testing.T) {
	repo := newFakeRepo()
	repo.subsByRef["sub_1"] = &models.Subscription{
		UserID:                  7,
		ProviderSubscriptionRef: "sub_1",
		Status:                  models.SubscriptionStatusPastDue,
		FailedPaymentCount:      2,
	}
	sync := NewSubscriptionSync(repo)

	err := sync.HandleUpdated(context.Background(), subscriptionEvent("sub_1", "cus_1", "active"))
	assert.NoError(t, err)

	sub := repo.subsByRef["sub_1"]
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, 0, sub.FailedPaymentCount)
}

func TestSubscriptionUpdateWithoutRecoveryKeepsFailureCount(t *testing.T) {
	repo := newFakeRepo()
	repo.subsByRef["sub_1"] = &models.Subscription{
		ProviderSubscriptionRef: "sub_1",
		Status:                  models.SubscriptionStatusActive,
		FailedPaymentCount:      1,
	}
	sync := NewSubscriptionSync(repo)

	err := sync.HandleUpdated(context.Background(), subscriptionEvent("sub_1", "cus_1", "active"))
	assert.NoError(t, err)
	assert.Equal(t, 1, repo.subsByRef["sub_1"].FailedPaymentCount)
}

func TestSubscriptionUpdatedUnknownIsAcked(t *testing.T) {
	repo := newFakeRepo()
	sync := NewSubscriptionSync(repo)

	err := sync.HandleUpdated(context.Background(), subscriptionEvent("sub_missing", "cus_1", "active"))
	assert.NoError(t, err)
}

func TestSubscriptionDeletedStampsProcessingTime(t *testing.T) {
	repo := newFakeRepo()
	repo.subsByRef["sub_1"] = &models.Subscription{
		ProviderSubscriptionRef: "sub_1",
		Status:                  models.SubscriptionStatusActive,
	}
	sync := NewSubscriptionSync(repo)

	// Payload without canceled_at/ended_at
	err := sync.HandleDeleted(context.Background(), SubscriptionPayload{ID: "sub_1", Status: "canceled"})
	assert.NoError(t, err)

	sub := repo.subsByRef["sub_1"]
	assert.Equal(t, models.SubscriptionStatusCanceled, sub.Status)
	if sub.CanceledAt == nil || sub.EndedAt == nil {
		t.Fatal("expected cancellation timestamps to be stamped")
	}
}

func TestSubscriptionDeletedKeepsProviderTimestamps(t *testing.T) {
	repo := newFakeRepo()
	repo.subsByRef["sub_1"] = &models.Subscription{
		ProviderSubscriptionRef: "sub_1",
		Status:                  models.SubscriptionStatusActive,
	}
	sync := NewSubscriptionSync(repo)

	err := sync.HandleDeleted(context.Background(), SubscriptionPayload{
		ID:         "sub_1",
		Status:     "canceled",
		CanceledAt: 1700000000,
		EndedAt:    1700000100,
	})
	assert.NoError(t, err)

	sub := repo.subsByRef["sub_1"]
	assert.Equal(t, int64(1700000000), sub.CanceledAt.Unix())
	assert.Equal(t, int64(1700000100), sub.EndedAt.Unix())
}

func TestFirstInvoiceFailureForcesPastDue(t *testing.T) {
	repo := newFakeRepo()
	repo.subsByRef["sub_1"] = &models.Subscription{
		ProviderSubscriptionRef: "sub_1",
		Status:                  models.SubscriptionStatusActive,
	}
	sync := NewSubscriptionSync(repo)

	inv := InvoicePayload{ID: "in_1", Subscription: "sub_1"}
	err := sync.HandleInvoicePaymentFailed(context.Background(), inv)
	assert.NoError(t, err)

	sub := repo.subsByRef["sub_1"]
	assert.Equal(t, 1, sub.FailedPaymentCount)
	assert.Equal(t, models.SubscriptionStatusPastDue, sub.Status)
}

func TestLaterInvoiceFailuresOnlyIncrement(t *testing.T) {
	repo := newFakeRepo()
	repo.subsByRef["sub_1"] = &models.Subscription{
		ProviderSubscriptionRef: "sub_1",
		Status:                  models.SubscriptionStatusUnpaid,
		FailedPaymentCount:      2,
	}
	sync := NewSubscriptionSync(repo)

	inv := InvoicePayload{ID: "in_3", Subscription: "sub_1"}
	err := sync.HandleInvoicePaymentFailed(context.Background(), inv)
	assert.NoError(t, err)

	sub := repo.subsByRef["sub_1"]
	assert.Equal(t, 3, sub.FailedPaymentCount)
	// Status is left to the provider's own lifecycle after the first strike.
	assert.Equal(t, models.SubscriptionStatusUnpaid, sub.Status)
}

func TestInvoiceFailureWithoutSubscriptionIsAcked(t *testing.T) {
	repo := newFakeRepo()
	sync := NewSubscriptionSync(repo)

	assert.NoError(t, sync.HandleInvoicePaymentFailed(context.Background(), InvoicePayload{ID: "in_1"}))
	assert.NoError(t, sync.HandleInvoicePaymentFailed(context.Background(), InvoicePayload{ID: "in_2", Subscription: "sub_missing"}))
}
