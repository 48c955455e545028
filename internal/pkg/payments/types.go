package payments

import (
	"context"
	"errors"

	"github.com/quillforge/quillforge/internal/pkg/env"
)

var (
	// ErrNotConfigured is returned when webhook credentials are missing.
	ErrNotConfigured = errors.New("payment provider is not configured")
	// ErrInvalidSignature is returned when signature verification fails.
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrMalformedPayload is returned when an event object cannot be decoded.
	ErrMalformedPayload = errors.New("malformed webhook payload")
)

// Config carries the provider credentials and feature switches. It is passed
// explicitly to the dispatcher so behavior is fixed at construction time
// instead of read from the environment on every call.
type Config struct {
	SecretKey     string
	WebhookSecret string
	// LogEvents controls the webhook idempotency ledger. When false the
	// ledger is bypassed entirely and duplicate suppression is off.
	LogEvents bool
}

// ConfigFromEnv builds a Config from STRIPE_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		SecretKey:     env.GetEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret: env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		LogEvents:     env.GetEnv("STRIPE_WEBHOOK_LOGGING_ENABLED", "true") == "true",
	}
}

// IsConfigured reports whether webhook processing can run at all.
func (c Config) IsConfigured() bool {
	return c.SecretKey != "" && c.WebhookSecret != ""
}

// CreditGranter adds credits to a user account. Satisfied by credits.Ledger.
type CreditGranter interface {
	AddCredits(ctx context.Context, userID uint, amount int64) error
}
