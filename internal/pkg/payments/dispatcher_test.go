package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/quillforge/quillforge/app/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v82"
)

const testWebhookSecret = "whsec_test"

func testConfig() Config {
	return Config{SecretKey: "sk_test", WebhookSecret: testWebhookSecret, LogEvents: true}
}

// signPayload produces a valid Stripe-Signature header for the payload.
func signPayload(payload []byte, secret string) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventID, eventType, objectJSON string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":%q,"api_version":%q,"data":{"object":%s}}`,
		eventID, eventType, stripe.APIVersion, objectJSON,
	))
}

type fakeGranter struct {
	grants map[uint]int64
	err    error
}

func newFakeGranter() *fakeGranter {
	return &fakeGranter{grants: make(map[uint]int64)}
}

func (f *fakeGranter) AddCredits(ctx context.Context, userID uint, amount int64) error {
	if f.err != nil {
		return f.err
	}
	f.grants[userID] += amount
	return nil
}

func TestDispatcherNotConfigured(t *testing.T) {
	d := NewDispatcher(Config{}, newFakeRepo(), newFakeGranter())

	err := d.Handle(context.Background(), []byte("{}"), "sig")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDispatcherRejectsBadSignature(t *testing.T) {
	repo := newFakeRepo()
	d := NewDispatcher(testConfig(), repo, newFakeGranter())

	payload := eventPayload("evt_1", "payment_intent.created", `{"id":"pi_1"}`)
	err := d.Handle(context.Background(), payload, signPayload(payload, "whsec_wrong"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Empty(t, repo.events)
}

func TestDispatcherProcessesSubscriptionCreated(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 3}
	d := NewDispatcher(testConfig(), repo, newFakeGranter())

	payload := eventPayload("evt_1", "customer.subscription.created",
		`{"id":"sub_1","customer":"cus_1","status":"active","created":1700000000}`)
	err := d.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret))
	assert.NoError(t, err)

	assert.NotNil(t, repo.subsByRef["sub_1"])

	event := repo.events["evt_1"]
	if event == nil {
		t.Fatal("expected ledger row for evt_1")
	}
	assert.Equal(t, models.WebhookStatusCompleted, event.ProcessingStatus)
	assert.NotNil(t, event.ProcessedAt)
}

func TestDispatcherSkipsCompletedDuplicate(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 3}
	d := NewDispatcher(testConfig(), repo, newFakeGranter())

	payload := eventPayload("evt_1", "customer.subscription.created",
		`{"id":"sub_1","customer":"cus_1","status":"active","created":1700000000}`)
	sig := signPayload(payload, testWebhookSecret)

	assert.NoError(t, d.Handle(context.Background(), payload, sig))

	// Second delivery must not reach the handlers again.
	repo.failCreateSubscription = true
	assert.NoError(t, d.Handle(context.Background(), payload, sig))
	assert.Len(t, repo.subsByRef, 1)
	assert.Equal(t, 0, repo.events["evt_1"].RetryCount)
}

func TestDispatcherMarksHandlerFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 3}
	repo.failCreateSubscription = true
	d := NewDispatcher(testConfig(), repo, newFakeGranter())

	payload := eventPayload("evt_1", "customer.subscription.created",
		`{"id":"sub_1","customer":"cus_1","status":"active","created":1700000000}`)
	err := d.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret))
	if err == nil {
		t.Fatal("expected handler error to propagate")
	}

	event := repo.events["evt_1"]
	assert.Equal(t, models.WebhookStatusFailed, event.ProcessingStatus)
	assert.Equal(t, 1, event.RetryCount)
	assert.Contains(t, event.ErrorMessage, "subscription insert failed")
}

func TestDispatcherRetriesFailedDelivery(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 3}
	repo.failCreateSubscription = true
	d := NewDispatcher(testConfig(), repo, newFakeGranter())

	payload := eventPayload("evt_1", "customer.subscription.created",
		`{"id":"sub_1","customer":"cus_1","status":"active","created":1700000000}`)
	sig := signPayload(payload, testWebhookSecret)

	assert.Error(t, d.Handle(context.Background(), payload, sig))

	// Provider re-delivery after the transient failure clears up.
	repo.failCreateSubscription = false
	assert.NoError(t, d.Handle(context.Background(), payload, sig))

	event := repo.events["evt_1"]
	assert.Equal(t, models.WebhookStatusCompleted, event.ProcessingStatus)
	assert.Equal(t, "", event.ErrorMessage)
	assert.NotNil(t, repo.subsByRef["sub_1"])
}

func TestDispatcherAcksUnknownEventType(t *testing.T) {
	repo := newFakeRepo()
	d := NewDispatcher(testConfig(), repo, newFakeGranter())

	payload := eventPayload("evt_1", "account.updated", `{"id":"acct_1"}`)
	err := d.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret))
	assert.NoError(t, err)
	assert.Equal(t, models.WebhookStatusCompleted, repo.events["evt_1"].ProcessingStatus)
}

func TestDispatcherWithLedgerDisabled(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 3}
	cfg := testConfig()
	cfg.LogEvents = false
	d := NewDispatcher(cfg, repo, newFakeGranter())

	payload := eventPayload("evt_1", "customer.subscription.created",
		`{"id":"sub_1","customer":"cus_1","status":"active","created":1700000000}`)
	err := d.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret))
	assert.NoError(t, err)

	// Processing still happens, only the ledger is bypassed.
	assert.NotNil(t, repo.subsByRef["sub_1"])
	assert.Empty(t, repo.events)
}

func TestDispatcherGrantsCreditsOnPaymentCheckout(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 3}
	repo.plansByPrice["price_pack"] = &models.Plan{
		ID:               1,
		Name:             "Starter Pack",
		ProviderPriceRef: "price_pack",
		CreditsGranted:   500,
	}
	granter := newFakeGranter()
	d := NewDispatcher(testConfig(), repo, granter)

	object := `{
		"id": "cs_1",
		"customer": "cus_1",
		"mode": "payment",
		"amount_total": 999,
		"currency": "usd",
		"payment_intent": "pi_1",
		"metadata": {"price_id": "price_pack"}
	}`
	payload := eventPayload("evt_1", "checkout.session.completed", object)
	err := d.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret))
	assert.NoError(t, err)

	assert.Equal(t, int64(500), granter.grants[3])

	if len(repo.txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(repo.txs))
	}
	tx := repo.txs[0]
	assert.Equal(t, "pi_1", tx.ProviderPaymentRef)
	assert.Equal(t, models.TransactionStatusCompleted, tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromFloat(9.99)))
}

func TestDispatcherSubscriptionCheckoutDoesNotGrant(t *testing.T) {
	repo := newFakeRepo()
	repo.usersByCustomer["cus_1"] = &models.User{ID: 3}
	repo.plansByPrice["price_pro"] = &models.Plan{
		ID:               2,
		Name:             "Pro",
		ProviderPriceRef: "price_pro",
		CreditsGranted:   1000,
	}
	granter := newFakeGranter()
	d := NewDispatcher(testConfig(), repo, granter)

	object := `{
		"id": "cs_2",
		"customer": "cus_1",
		"mode": "subscription",
		"amount_total": 1999,
		"currency": "usd",
		"subscription": "sub_1",
		"metadata": {"price_id": "price_pro"}
	}`
	payload := eventPayload("evt_2", "checkout.session.completed", object)
	err := d.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret))
	assert.NoError(t, err)

	assert.Empty(t, granter.grants)
	assert.Equal(t, models.TransactionKindSubscription, repo.txs[0].Kind)
	assert.Equal(t, "sub_1", repo.txs[0].ProviderPaymentRef)
}

func TestDispatcherMalformedObjectFailsEvent(t *testing.T) {
	repo := newFakeRepo()
	d := NewDispatcher(testConfig(), repo, newFakeGranter())

	payload := eventPayload("evt_1", "customer.subscription.created", `"not an object"`)
	err := d.Handle(context.Background(), payload, signPayload(payload, testWebhookSecret))
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, models.WebhookStatusFailed, repo.events["evt_1"].ProcessingStatus)
}
