package repositories

import (
	"context"

	"StayEscrow/internal/models"

	"gorm.io/gorm"
)

// TransactionRepository is the ledger store. It has no update or delete path.
type TransactionRepository interface {
	Append(ctx context.Context, txs ...*models.Transaction) error
	ListAll(ctx context.Context) ([]models.Transaction, error)
	ListByBooking(ctx context.Context, bookingID string) ([]models.Transaction, error)
	FindByBookingAndKind(ctx context.Context, bookingID string, kind models.TransactionKind) (*models.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error)
}

type TransactionFilter struct {
	BookingID string
	Kind      models.TransactionKind
	Limit     int
	Offset    int
}

type transactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Append(ctx context.Context, txs ...*models.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(txs).Error
}

func (r *transactionRepository) ListAll(ctx context.Context) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&txs).Error
	return txs, err
}

func (r *transactionRepository) ListByBooking(ctx context.Context, bookingID string) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at asc").
		Find(&txs).Error
	return txs, err
}

// FindByBookingAndKind returns gorm.ErrRecordNotFound when no such entry exists.
func (r *transactionRepository) FindByBookingAndKind(ctx context.Context, bookingID string, kind models.TransactionKind) (*models.Transaction, error) {
	var tx models.Transaction
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", models.IdempotencyKeyFor(bookingID, kind)).
		First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) List(ctx context.Context, filter TransactionFilter) ([]models.Transaction, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{})
	if filter.BookingID != "" {
		query = query.Where("booking_id = ?", filter.BookingID)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var txs []models.Transaction
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&txs).Error
	return txs, total, err
}
