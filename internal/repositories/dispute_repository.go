package repositories

import (
	"context"

	"StayEscrow/internal/models"

	"gorm.io/gorm"
)

type DisputeRepository interface {
	Create(ctx context.Context, dispute *models.Dispute) error
	Save(ctx context.Context, dispute *models.Dispute) error
	FindOpenByBooking(ctx context.Context, bookingID string) (*models.Dispute, error)
	FindLatestByBooking(ctx context.Context, bookingID string) (*models.Dispute, error)
	List(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error)
}

type disputeRepository struct {
	db *gorm.DB
}

func NewDisputeRepository(db *gorm.DB) DisputeRepository {
	return &disputeRepository{db: db}
}

func (r *disputeRepository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *disputeRepository) Save(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Omit("Booking").Save(dispute).Error
}

func (r *disputeRepository) FindOpenByBooking(ctx context.Context, bookingID string) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, models.DisputeOpen).
		Order("created_at DESC").
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepository) FindLatestByBooking(ctx context.Context, bookingID string) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).
		Preload("Booking").
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *disputeRepository) List(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Dispute{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var disputes []models.Dispute
	err := query.
		Preload("Booking").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&disputes).Error
	return disputes, total, err
}
