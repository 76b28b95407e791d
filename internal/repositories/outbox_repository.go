package repositories

import (
	"context"
	"time"

	"StayEscrow/internal/models"

	"gorm.io/gorm"
)

type OutboxRepository interface {
	Enqueue(ctx context.Context, event *models.OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit, maxRetries int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
	MarkFailed(ctx context.Context, id string, errMsg string, at time.Time) error
}

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Enqueue(ctx context.Context, event *models.OutboxEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// FetchUnpublished skips events that already failed maxRetries times; they stay in the table for inspection.
func (r *outboxRepository) FetchUnpublished(ctx context.Context, limit, maxRetries int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND retry_count < ?", maxRetries).
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", id).Update("published_at", at).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id string, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(map[string]any{
		"retry_count":   gorm.Expr("retry_count + 1"),
		"last_error":    errMsg,
		"last_error_at": at,
	}).Error
}
