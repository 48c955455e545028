package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind is the closed set of webhook event categories the dispatcher
// understands. Everything else maps to KindUnhandled, which is acknowledged
// to the provider without side effects.
type EventKind int

const (
	KindUnhandled EventKind = iota
	KindCheckoutSessionCompleted
	KindInvoicePaymentSucceeded
	KindInvoicePaymentFailed
	KindInvoiceUpcoming
	KindPaymentMethodAttached
	KindPaymentIntentSucceeded
	KindPaymentIntentCreated
	KindPaymentIntentFailed
	KindPaymentIntentCanceled
	KindChargeRefunded
	KindSubscriptionCreated
	KindSubscriptionUpdated
	KindSubscriptionDeleted
	KindSubscriptionTrialWillEnd
)

// KindOf maps a provider event type string to its EventKind.
func KindOf(eventType string) EventKind {
	switch eventType {
	case "checkout.session.completed":
		return KindCheckoutSessionCompleted
	case "invoice.payment_succeeded":
		return KindInvoicePaymentSucceeded
	case "invoice.payment_failed":
		return KindInvoicePaymentFailed
	case "invoice.upcoming":
		return KindInvoiceUpcoming
	case "payment_method.attached":
		return KindPaymentMethodAttached
	case "payment_intent.succeeded":
		return KindPaymentIntentSucceeded
	case "payment_intent.created":
		return KindPaymentIntentCreated
	case "payment_intent.payment_failed":
		return KindPaymentIntentFailed
	case "payment_intent.canceled":
		return KindPaymentIntentCanceled
	case "charge.refunded":
		return KindChargeRefunded
	case "customer.subscription.created":
		return KindSubscriptionCreated
	case "customer.subscription.updated":
		return KindSubscriptionUpdated
	case "customer.subscription.deleted":
		return KindSubscriptionDeleted
	case "customer.subscription.trial_will_end":
		return KindSubscriptionTrialWillEnd
	default:
		return KindUnhandled
	}
}

func (k EventKind) String() string {
	switch k {
	case KindCheckoutSessionCompleted:
		return "checkout.session.completed"
	case KindInvoicePaymentSucceeded:
		return "invoice.payment_succeeded"
	case KindInvoicePaymentFailed:
		return "invoice.payment_failed"
	case KindInvoiceUpcoming:
		return "invoice.upcoming"
	case KindPaymentMethodAttached:
		return "payment_method.attached"
	case KindPaymentIntentSucceeded:
		return "payment_intent.succeeded"
	case KindPaymentIntentCreated:
		return "payment_intent.created"
	case KindPaymentIntentFailed:
		return "payment_intent.payment_failed"
	case KindPaymentIntentCanceled:
		return "payment_intent.canceled"
	case KindChargeRefunded:
		return "charge.refunded"
	case KindSubscriptionCreated:
		return "customer.subscription.created"
	case KindSubscriptionUpdated:
		return "customer.subscription.updated"
	case KindSubscriptionDeleted:
		return "customer.subscription.deleted"
	case KindSubscriptionTrialWillEnd:
		return "customer.subscription.trial_will_end"
	default:
		return "unhandled"
	}
}

// The payload structs below are decoded from the raw event object JSON. We
// keep our own types instead of the SDK object structs so that a field moving
// between API versions only breaks in one place.

// CheckoutSessionPayload is the object of checkout.session.completed.
type CheckoutSessionPayload struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	CustomerEmail     string            `json:"customer_email"`
	Mode              string            `json:"mode"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency"`
	PaymentIntent     string            `json:"payment_intent"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// InvoicePayload is the object of invoice.* events.
type InvoicePayload struct {
	ID                 string `json:"id"`
	Number             string `json:"number"`
	Customer           string `json:"customer"`
	AmountPaid         int64  `json:"amount_paid"`
	AmountDue          int64  `json:"amount_due"`
	Currency           string `json:"currency"`
	PaymentIntent      string `json:"payment_intent"`
	AttemptCount       int    `json:"attempt_count"`
	NextPaymentAttempt int64  `json:"next_payment_attempt"`
	// Newer API versions nest the subscription reference under parent; the
	// top-level field is kept as a fallback for older payloads.
	Subscription string `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// SubscriptionRef returns the subscription ID the invoice belongs to, or ""
// for one-off invoices.
func (p *InvoicePayload) SubscriptionRef() string {
	if p.Parent != nil && p.Parent.SubscriptionDetails != nil && p.Parent.SubscriptionDetails.Subscription != "" {
		return p.Parent.SubscriptionDetails.Subscription
	}
	return p.Subscription
}

// PaymentIntentPayload is the object of payment_intent.* events.
type PaymentIntentPayload struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Amount             int64             `json:"amount"`
	Currency           string            `json:"currency"`
	Description        string            `json:"description"`
	Invoice            string            `json:"invoice"`
	CancellationReason string            `json:"cancellation_reason"`
	Metadata           map[string]string `json:"metadata"`
	LastPaymentError   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_payment_error"`
}

// ChargePayload is the object of charge.refunded.
type ChargePayload struct {
	ID             string `json:"id"`
	Customer       string `json:"customer"`
	Amount         int64  `json:"amount"`
	AmountRefunded int64  `json:"amount_refunded"`
	Currency       string `json:"currency"`
	PaymentIntent  string `json:"payment_intent"`
	Refunds        struct {
		Data []RefundPayload `json:"data"`
	} `json:"refunds"`
}

// RefundPayload is one entry of a charge's refund list.
type RefundPayload struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	Status string `json:"status"`
}

// SubscriptionPayload is the object of customer.subscription.* events.
type SubscriptionPayload struct {
	ID                 string `json:"id"`
	Customer           string `json:"customer"`
	Status             string `json:"status"`
	Created            int64  `json:"created"`
	BillingCycleAnchor int64  `json:"billing_cycle_anchor"`
	TrialStart         int64  `json:"trial_start"`
	TrialEnd           int64  `json:"trial_end"`
	CanceledAt         int64  `json:"canceled_at"`
	EndedAt            int64  `json:"ended_at"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	Items              struct {
		Data []SubscriptionItemPayload `json:"data"`
	} `json:"items"`
	Metadata map[string]string `json:"metadata"`
}

// SubscriptionItemPayload carries the price and, on newer API versions, the
// current billing period of a subscription item.
type SubscriptionItemPayload struct {
	CurrentPeriodStart int64        `json:"current_period_start"`
	CurrentPeriodEnd   int64        `json:"current_period_end"`
	Price              PricePayload `json:"price"`
}

// PricePayload is the nested price of a subscription item.
type PricePayload struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Product    string `json:"product"`
	Recurring  *struct {
		Interval      string `json:"interval"`
		IntervalCount int    `json:"interval_count"`
	} `json:"recurring"`
}

// PeriodStart returns the current period start of the first item, falling
// back to the billing cycle anchor and then the creation time.
func (p *SubscriptionPayload) PeriodStart() int64 {
	if len(p.Items.Data) > 0 && p.Items.Data[0].CurrentPeriodStart > 0 {
		return p.Items.Data[0].CurrentPeriodStart
	}
	if p.BillingCycleAnchor > 0 {
		return p.BillingCycleAnchor
	}
	return p.Created
}

// PeriodEnd returns the current period end of the first item, or 0 when the
// payload does not carry one.
func (p *SubscriptionPayload) PeriodEnd() int64 {
	if len(p.Items.Data) > 0 {
		return p.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

// unixToTime converts a provider unix timestamp to *time.Time, treating 0 as
// absent.
func unixToTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0)
	return &t
}

// amountFromCents converts a provider minor-unit amount to a decimal major
// unit value.
func amountFromCents(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Shift(-2)
}
