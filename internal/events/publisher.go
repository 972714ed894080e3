// Package events announces per-job sync outcomes on the message bus.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/grow-sync/internal/domain"
)

// Routing keys, one per outcome
const (
	EventSyncCompleted = "sync.completed"
	EventSyncFailed    = "sync.failed"
)

const contentTypeJSON = "application/json"

// Broker publishes raw messages under a routing key
type Broker interface {
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// SyncEvent is the message body for one job outcome
type SyncEvent struct {
	Event           string    `json:"event"`
	BatchID         string    `json:"batch_id"`
	PhotoPageURL    string    `json:"photo_page_url"`
	Date            string    `json:"date"`
	IdempotencyKey  string    `json:"idempotency_key"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	Health          *int      `json:"health,omitempty"`
	HistoryRecordID string    `json:"history_record_id,omitempty"`
	ProcessedAt     time.Time `json:"processed_at"`
}

type Publisher struct {
	broker Broker
	logger *slog.Logger
}

func NewPublisher(broker Broker, logger *slog.Logger) *Publisher {
	return &Publisher{
		broker: broker,
		logger: logger,
	}
}

// PublishResults sends one message per record. Every record is attempted;
// the returned error joins all publish failures.
func (p *Publisher) PublishResults(ctx context.Context, batchID string, records []domain.SyncRecord) error {
	var errs []error

	for _, r := range records {
		event := newSyncEvent(batchID, r)

		body, err := json.Marshal(event)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to marshal event for %s: %w", r.PhotoPageURL, err))
			continue
		}

		if err := p.broker.PublishWithRetry(ctx, event.Event, body, contentTypeJSON); err != nil {
			errs = append(errs, fmt.Errorf("failed to publish event for %s: %w", r.PhotoPageURL, err))
			continue
		}
	}

	p.logger.Debug("Sync events published",
		slog.String("batch_id", batchID),
		slog.Int("events", len(records)),
		slog.Int("failed", len(errs)),
	)

	return errors.Join(errs...)
}

func newSyncEvent(batchID string, r domain.SyncRecord) SyncEvent {
	name := EventSyncCompleted
	if r.Status != domain.JobStatusOK {
		name = EventSyncFailed
	}

	return SyncEvent{
		Event:           name,
		BatchID:         batchID,
		PhotoPageURL:    r.PhotoPageURL,
		Date:            r.Date,
		IdempotencyKey:  r.IdempotencyKey,
		Status:          r.Status,
		Error:           r.ErrorMessage,
		Health:          r.Health,
		HistoryRecordID: r.HistoryRecordID,
		ProcessedAt:     r.ProcessedAt,
	}
}
