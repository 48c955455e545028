package payments

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/quillforge/quillforge/app/models"
)

// WebhookLedger records every received webhook event and its processing
// outcome. When disabled it becomes a no-op and callers get a nil record,
// which also disables duplicate suppression.
type WebhookLedger struct {
	repo    Repository
	enabled bool
}

// NewWebhookLedger creates the ledger. enabled mirrors Config.LogEvents.
func NewWebhookLedger(repo Repository, enabled bool) *WebhookLedger {
	return &WebhookLedger{repo: repo, enabled: enabled}
}

// LogEvent inserts the event in pending state if it has not been seen before.
// It returns the stored record and whether this call created it. With the
// ledger disabled it returns (nil, false, nil).
func (l *WebhookLedger) LogEvent(ctx context.Context, providerEventID, eventType string, rawPayload []byte) (*models.WebhookEvent, bool, error) {
	_ = ctx
	if !l.enabled {
		return nil, false, nil
	}

	event := &models.WebhookEvent{
		ProviderEventID:  providerEventID,
		EventType:        eventType,
		ProcessingStatus: models.WebhookStatusPending,
		RawPayload:       string(rawPayload),
	}
	created, stored, err := l.repo.CreateWebhookEventIfNotExists(event)
	if err != nil {
		return nil, false, err
	}
	if !created {
		log.Infof("[WebhookLedger] event %s already recorded (status=%s)", providerEventID, stored.ProcessingStatus)
	}
	return stored, created, nil
}

// UpdateStatus moves the event to the given processing status. Completed
// stamps processed_at; failed and retrying increment the retry counter and
// capture the error message.
func (l *WebhookLedger) UpdateStatus(ctx context.Context, providerEventID, status string, procErr error) error {
	_ = ctx
	if !l.enabled {
		return nil
	}

	updates := map[string]interface{}{
		"processing_status": status,
	}
	switch status {
	case models.WebhookStatusCompleted:
		now := time.Now()
		updates["processed_at"] = &now
		updates["error_message"] = ""
	case models.WebhookStatusFailed, models.WebhookStatusRetrying:
		if procErr != nil {
			updates["error_message"] = procErr.Error()
		}
		if err := l.repo.IncrementWebhookRetryCount(providerEventID); err != nil {
			return err
		}
	}

	return l.repo.UpdateWebhookEventStatus(providerEventID, updates)
}
