package events

import (
	"context"
	"log/slog"
	"time"

	"StayEscrow/internal/repositories"
)

// OutboxWorker publishes outbox rows written alongside ledger changes.
type OutboxWorker struct {
	logger     *slog.Logger
	outbox     repositories.OutboxRepository
	publisher  Publisher
	interval   time.Duration
	batchSize  int
	maxRetries int
}

func NewOutboxWorker(
	logger *slog.Logger,
	outbox repositories.OutboxRepository,
	publisher Publisher,
	interval time.Duration,
	batchSize int,
	maxRetries int,
) *OutboxWorker {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &OutboxWorker{
		logger:     logger,
		outbox:     outbox,
		publisher:  publisher,
		interval:   interval,
		batchSize:  batchSize,
		maxRetries: maxRetries,
	}
}

// Run executes the periodic publish loop until context cancellation.
func (w *OutboxWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.ProcessOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "outbox iteration failed",
				"module", "events.outbox_worker",
				"operation", "outbox_process_once",
				"outcome", "failure",
				"error", err,
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessOnce publishes one batch and returns how many events were delivered.
func (w *OutboxWorker) ProcessOnce(ctx context.Context) (int, error) {
	records, err := w.outbox.FetchUnpublished(ctx, w.batchSize, w.maxRetries)
	if err != nil {
		return 0, err
	}

	published := 0
	failed := 0
	for _, rec := range records {
		now := time.Now().UTC()
		if err := w.publisher.Publish(ctx, rec.EventType, []byte(rec.Payload), rec.PartitionKey); err != nil {
			failed++
			w.logger.WarnContext(ctx, "outbox publish failed; retry scheduled",
				"module", "events.outbox_worker",
				"operation", "publish_event",
				"outcome", "failure",
				"outbox_id", rec.ID,
				"event_type", rec.EventType,
				"retry_count", rec.RetryCount+1,
				"error", err,
			)
			if markErr := w.outbox.MarkFailed(ctx, rec.ID, err.Error(), now); markErr != nil {
				w.logger.ErrorContext(ctx, "outbox failure not recorded",
					"module", "events.outbox_worker",
					"operation", "mark_failed",
					"outcome", "failure",
					"outbox_id", rec.ID,
					"event_type", rec.EventType,
					"error", markErr,
				)
			}
			continue
		}
		if err := w.outbox.MarkPublished(ctx, rec.ID, now); err != nil {
			return published, err
		}
		published++
	}

	if len(records) > 0 {
		w.logger.InfoContext(ctx, "outbox batch processed",
			"module", "events.outbox_worker",
			"operation", "outbox_process_once",
			"outcome", "success",
			"batch_size", len(records),
			"published_count", published,
			"failed_count", failed,
		)
	}
	return published, nil
}
