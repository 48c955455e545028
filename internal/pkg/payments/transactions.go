package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillforge/quillforge/app/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionLedger records money movement reported by the provider and
// serves the transaction history API.
type TransactionLedger struct {
	repo Repository
}

// NewTransactionLedger creates the transaction ledger service.
func NewTransactionLedger(repo Repository) *TransactionLedger {
	return &TransactionLedger{repo: repo}
}

// RecordInput describes one transaction to append to the ledger.
type RecordInput struct {
	UserID             uint
	ProviderPaymentRef string
	ProviderSessionRef string
	Amount             decimal.Decimal
	Currency           string
	Status             string
	Kind               string
	Description        string
	FailureReason      string
	Metadata           map[string]string
}

// Record appends a transaction row.
func (t *TransactionLedger) Record(ctx context.Context, in RecordInput) (*models.Transaction, error) {
	_ = ctx

	tx := &models.Transaction{
		UserID:             in.UserID,
		ProviderPaymentRef: in.ProviderPaymentRef,
		ProviderSessionRef: in.ProviderSessionRef,
		Amount:             in.Amount,
		Currency:           strings.ToUpper(in.Currency),
		Status:             in.Status,
		Kind:               in.Kind,
		Description:        in.Description,
		FailureReason:      in.FailureReason,
		NetAmount:          in.Amount,
	}
	if tx.Status == "" {
		tx.Status = models.TransactionStatusPending
	}
	if tx.Kind == "" {
		tx.Kind = models.TransactionKindPayment
	}
	if tx.Status == models.TransactionStatusCompleted {
		now := time.Now()
		tx.ProcessedAt = &now
	}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err == nil {
			tx.MetadataJSON = string(raw)
		}
	}

	if err := t.repo.CreateTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return tx, nil
}

// UpdateStatusByPaymentRef updates the most recent transaction with the given
// provider payment reference. Missing rows are logged and ignored so that
// status events arriving before their transaction do not fail the webhook.
func (t *TransactionLedger) UpdateStatusByPaymentRef(ctx context.Context, paymentRef, status, failureReason string) error {
	_ = ctx

	tx, err := t.repo.GetLatestTransactionByPaymentRef(paymentRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnf("[Transactions] no transaction found for payment ref %s, skipping status update", paymentRef)
			return nil
		}
		return err
	}

	tx.Status = status
	if failureReason != "" {
		tx.FailureReason = failureReason
	}
	if status == models.TransactionStatusCompleted && tx.ProcessedAt == nil {
		now := time.Now()
		tx.ProcessedAt = &now
	}
	return t.repo.SaveTransaction(tx)
}

// ListForUser returns the newest transactions for a user.
func (t *TransactionLedger) ListForUser(ctx context.Context, userID uint, limit int) ([]models.Transaction, error) {
	_ = ctx
	return t.repo.ListTransactionsByUser(userID, limit)
}

// userForCustomer resolves the provider customer reference to a user. Events
// for unknown customers are acknowledged without side effects.
func (t *TransactionLedger) userForCustomer(customerRef string) (*models.User, error) {
	if customerRef == "" {
		return nil, nil
	}
	user, err := t.repo.GetUserByCustomerRef(customerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// HandleCheckoutSessionCompleted records the completed checkout payment.
func (t *TransactionLedger) HandleCheckoutSessionCompleted(ctx context.Context, s CheckoutSessionPayload) error {
	user, err := t.userForCustomer(s.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Transactions] checkout session %s for unknown customer %s", s.ID, s.Customer)
		return nil
	}

	kind := models.TransactionKindPayment
	paymentRef := s.PaymentIntent
	if s.Mode == "subscription" {
		kind = models.TransactionKindSubscription
		paymentRef = s.Subscription
	}
	if paymentRef == "" {
		paymentRef = s.ID
	}

	_, err = t.Record(ctx, RecordInput{
		UserID:             user.ID,
		ProviderPaymentRef: paymentRef,
		ProviderSessionRef: s.ID,
		Amount:             amountFromCents(s.AmountTotal),
		Currency:           s.Currency,
		Status:             models.TransactionStatusCompleted,
		Kind:               kind,
		Description:        fmt.Sprintf("Checkout session %s", s.ID),
		Metadata:           s.Metadata,
	})
	return err
}

// HandleInvoicePaymentSucceeded records a successful subscription invoice.
func (t *TransactionLedger) HandleInvoicePaymentSucceeded(ctx context.Context, inv InvoicePayload) error {
	user, err := t.userForCustomer(inv.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Transactions] invoice %s for unknown customer %s", inv.ID, inv.Customer)
		return nil
	}

	paymentRef := inv.PaymentIntent
	if paymentRef == "" {
		paymentRef = inv.ID
	}
	description := fmt.Sprintf("Invoice %s", inv.ID)
	if inv.Number != "" {
		description = fmt.Sprintf("Invoice %s", inv.Number)
	}

	_, err = t.Record(ctx, RecordInput{
		UserID:             user.ID,
		ProviderPaymentRef: paymentRef,
		Amount:             amountFromCents(inv.AmountPaid),
		Currency:           inv.Currency,
		Status:             models.TransactionStatusCompleted,
		Kind:               models.TransactionKindSubscription,
		Description:        description,
	})
	return err
}

// HandleInvoicePaymentFailed records the failed invoice attempt.
func (t *TransactionLedger) HandleInvoicePaymentFailed(ctx context.Context, inv InvoicePayload) error {
	user, err := t.userForCustomer(inv.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Transactions] failed invoice %s for unknown customer %s", inv.ID, inv.Customer)
		return nil
	}

	paymentRef := inv.PaymentIntent
	if paymentRef == "" {
		paymentRef = inv.ID
	}

	_, err = t.Record(ctx, RecordInput{
		UserID:             user.ID,
		ProviderPaymentRef: paymentRef,
		Amount:             amountFromCents(inv.AmountDue),
		Currency:           inv.Currency,
		Status:             models.TransactionStatusFailed,
		Kind:               models.TransactionKindSubscription,
		Description:        fmt.Sprintf("Invoice %s", inv.ID),
		FailureReason:      fmt.Sprintf("payment attempt %d failed", inv.AttemptCount),
	})
	return err
}

// HandlePaymentIntentSucceeded records a standalone successful payment.
// Intents attached to an invoice are skipped because the invoice event
// already records the same money movement.
func (t *TransactionLedger) HandlePaymentIntentSucceeded(ctx context.Context, pi PaymentIntentPayload) error {
	if pi.Invoice != "" {
		log.Infof("[Transactions] payment intent %s belongs to invoice %s, skipping", pi.ID, pi.Invoice)
		return nil
	}

	user, err := t.userForCustomer(pi.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Transactions] payment intent %s for unknown customer %s", pi.ID, pi.Customer)
		return nil
	}

	_, err = t.Record(ctx, RecordInput{
		UserID:             user.ID,
		ProviderPaymentRef: pi.ID,
		Amount:             amountFromCents(pi.Amount),
		Currency:           pi.Currency,
		Status:             models.TransactionStatusCompleted,
		Kind:               models.TransactionKindPayment,
		Description:        pi.Description,
		Metadata:           pi.Metadata,
	})
	return err
}

// HandlePaymentIntentFailed records the failed payment attempt.
func (t *TransactionLedger) HandlePaymentIntentFailed(ctx context.Context, pi PaymentIntentPayload) error {
	user, err := t.userForCustomer(pi.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Transactions] failed payment intent %s for unknown customer %s", pi.ID, pi.Customer)
		return nil
	}

	reason := "payment failed"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Message != "" {
		reason = pi.LastPaymentError.Message
	}

	_, err = t.Record(ctx, RecordInput{
		UserID:             user.ID,
		ProviderPaymentRef: pi.ID,
		Amount:             amountFromCents(pi.Amount),
		Currency:           pi.Currency,
		Status:             models.TransactionStatusFailed,
		Kind:               models.TransactionKindPayment,
		Description:        pi.Description,
		FailureReason:      reason,
		Metadata:           pi.Metadata,
	})
	return err
}

// HandlePaymentIntentCanceled records the cancellation.
func (t *TransactionLedger) HandlePaymentIntentCanceled(ctx context.Context, pi PaymentIntentPayload) error {
	user, err := t.userForCustomer(pi.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Transactions] canceled payment intent %s for unknown customer %s", pi.ID, pi.Customer)
		return nil
	}

	_, err = t.Record(ctx, RecordInput{
		UserID:             user.ID,
		ProviderPaymentRef: pi.ID,
		Amount:             amountFromCents(pi.Amount),
		Currency:           pi.Currency,
		Status:             models.TransactionStatusCancelled,
		Kind:               models.TransactionKindPayment,
		Description:        pi.Description,
		FailureReason:      pi.CancellationReason,
		Metadata:           pi.Metadata,
	})
	return err
}

// HandleChargeRefunded records the refund. The refunded amount comes from the
// first refund entry, falling back to the charge's aggregate amount_refunded.
func (t *TransactionLedger) HandleChargeRefunded(ctx context.Context, ch ChargePayload) error {
	user, err := t.userForCustomer(ch.Customer)
	if err != nil {
		return err
	}
	if user == nil {
		log.Warnf("[Transactions] refunded charge %s for unknown customer %s", ch.ID, ch.Customer)
		return nil
	}

	refunded := ch.AmountRefunded
	reason := ""
	if len(ch.Refunds.Data) > 0 {
		refunded = ch.Refunds.Data[0].Amount
		reason = ch.Refunds.Data[0].Reason
	}

	paymentRef := ch.PaymentIntent
	if paymentRef == "" {
		paymentRef = ch.ID
	}

	_, err = t.Record(ctx, RecordInput{
		UserID:             user.ID,
		ProviderPaymentRef: paymentRef,
		Amount:             amountFromCents(refunded),
		Currency:           ch.Currency,
		Status:             models.TransactionStatusRefunded,
		Kind:               models.TransactionKindRefund,
		Description:        fmt.Sprintf("Refund for charge %s", ch.ID),
		FailureReason:      reason,
	})
	return err
}
