package repositories

import (
	"context"

	"StayEscrow/internal/models"

	"gorm.io/gorm"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Save(ctx context.Context, booking *models.Booking) error
	ListByPaymentStatus(ctx context.Context, status models.PaymentStatus) ([]models.Booking, error)
	ListAll(ctx context.Context) ([]models.Booking, error)
}

type bookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

// FindByID returns gorm.ErrRecordNotFound when the booking does not exist.
func (r *bookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&booking).Error; err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *bookingRepository) Save(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func (r *bookingRepository) ListByPaymentStatus(ctx context.Context, status models.PaymentStatus) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("payment_status = ?", status).
		Order("escrow_release_date asc").
		Find(&bookings).Error
	return bookings, err
}

func (r *bookingRepository) ListAll(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&bookings).Error
	return bookings, err
}
