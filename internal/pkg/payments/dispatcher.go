package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillforge/quillforge/app/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

// Dispatcher verifies, deduplicates and routes incoming webhook events.
//
// For each delivery it: checks configuration, verifies the signature, records
// the event in the idempotency ledger, short-circuits completed duplicates,
// routes the event to its handlers and finally marks the ledger row completed
// or failed. Handler errors propagate to the caller so the provider retries
// the delivery.
type Dispatcher struct {
	cfg           Config
	ledger        *WebhookLedger
	transactions  *TransactionLedger
	subscriptions *SubscriptionSync
	grants        *CreditGrants
}

// NewDispatcher wires the dispatcher from an explicit config.
func NewDispatcher(cfg Config, repo Repository, credits CreditGranter) *Dispatcher {
	return &Dispatcher{
		cfg:           cfg,
		ledger:        NewWebhookLedger(repo, cfg.LogEvents),
		transactions:  NewTransactionLedger(repo),
		subscriptions: NewSubscriptionSync(repo),
		grants:        NewCreditGrants(repo, credits),
	}
}

// NewDispatcherFromDB is a convenience constructor for request handlers.
func NewDispatcherFromDB(cfg Config, db *gorm.DB, credits CreditGranter) *Dispatcher {
	return NewDispatcher(cfg, NewRepository(db), credits)
}

// Handle processes one raw webhook delivery.
func (d *Dispatcher) Handle(ctx context.Context, payload []byte, signature string) error {
	if !d.cfg.IsConfigured() {
		return ErrNotConfigured
	}

	event, err := webhook.ConstructEvent(payload, signature, d.cfg.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	record, created, err := d.ledger.LogEvent(ctx, event.ID, string(event.Type), payload)
	if err != nil {
		return fmt.Errorf("failed to record webhook event %s: %w", event.ID, err)
	}
	if record != nil && !created {
		if record.ProcessingStatus == models.WebhookStatusCompleted {
			log.Infof("[Webhook] duplicate delivery of %s, already completed", event.ID)
			return nil
		}
		// Earlier attempt did not complete; the provider's re-delivery is
		// our retry path.
		if err := d.ledger.UpdateStatus(ctx, event.ID, models.WebhookStatusRetrying, nil); err != nil {
			return err
		}
	}

	if err := d.route(ctx, event); err != nil {
		if markErr := d.ledger.UpdateStatus(ctx, event.ID, models.WebhookStatusFailed, err); markErr != nil {
			log.Errorf("[Webhook] failed to mark event %s failed: %v", event.ID, markErr)
		}
		return err
	}

	return d.ledger.UpdateStatus(ctx, event.ID, models.WebhookStatusCompleted, nil)
}

func (d *Dispatcher) route(ctx context.Context, event stripe.Event) error {
	kind := KindOf(string(event.Type))
	log.Infof("[Webhook] processing event %s (%s)", event.ID, event.Type)

	switch kind {
	case KindCheckoutSessionCompleted:
		var s CheckoutSessionPayload
		if err := decodeObject(event, &s); err != nil {
			return err
		}
		if err := d.transactions.HandleCheckoutSessionCompleted(ctx, s); err != nil {
			return err
		}
		return d.grants.HandleCheckoutSessionCompleted(ctx, s)

	case KindInvoicePaymentSucceeded:
		var inv InvoicePayload
		if err := decodeObject(event, &inv); err != nil {
			return err
		}
		return d.transactions.HandleInvoicePaymentSucceeded(ctx, inv)

	case KindInvoicePaymentFailed:
		var inv InvoicePayload
		if err := decodeObject(event, &inv); err != nil {
			return err
		}
		if err := d.transactions.HandleInvoicePaymentFailed(ctx, inv); err != nil {
			return err
		}
		return d.subscriptions.HandleInvoicePaymentFailed(ctx, inv)

	case KindInvoiceUpcoming:
		var inv InvoicePayload
		if err := decodeObject(event, &inv); err != nil {
			return err
		}
		log.Infof("[Webhook] upcoming invoice for customer %s, amount due %d", inv.Customer, inv.AmountDue)
		return nil

	case KindPaymentIntentSucceeded:
		var pi PaymentIntentPayload
		if err := decodeObject(event, &pi); err != nil {
			return err
		}
		return d.transactions.HandlePaymentIntentSucceeded(ctx, pi)

	case KindPaymentIntentCreated:
		var pi PaymentIntentPayload
		if err := decodeObject(event, &pi); err != nil {
			return err
		}
		log.Infof("[Webhook] payment intent %s created", pi.ID)
		return nil

	case KindPaymentIntentFailed:
		var pi PaymentIntentPayload
		if err := decodeObject(event, &pi); err != nil {
			return err
		}
		return d.transactions.HandlePaymentIntentFailed(ctx, pi)

	case KindPaymentIntentCanceled:
		var pi PaymentIntentPayload
		if err := decodeObject(event, &pi); err != nil {
			return err
		}
		return d.transactions.HandlePaymentIntentCanceled(ctx, pi)

	case KindChargeRefunded:
		var ch ChargePayload
		if err := decodeObject(event, &ch); err != nil {
			return err
		}
		return d.transactions.HandleChargeRefunded(ctx, ch)

	case KindSubscriptionCreated:
		var sub SubscriptionPayload
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		return d.subscriptions.HandleCreated(ctx, sub)

	case KindSubscriptionUpdated:
		var sub SubscriptionPayload
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		return d.subscriptions.HandleUpdated(ctx, sub)

	case KindSubscriptionDeleted:
		var sub SubscriptionPayload
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		return d.subscriptions.HandleDeleted(ctx, sub)

	case KindSubscriptionTrialWillEnd:
		var sub SubscriptionPayload
		if err := decodeObject(event, &sub); err != nil {
			return err
		}
		return d.subscriptions.HandleTrialWillEnd(ctx, sub)

	case KindPaymentMethodAttached:
		log.Infof("[Webhook] payment method attached (%s)", event.ID)
		return nil

	default:
		log.Warnf("[Webhook] unhandled event type %s (%s), acknowledging", event.Type, event.ID)
		return nil
	}
}

func decodeObject(event stripe.Event, v interface{}) error {
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: event %s: %v", ErrMalformedPayload, event.ID, err)
	}
	return nil
}
