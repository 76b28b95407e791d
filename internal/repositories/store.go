package repositories

import "gorm.io/gorm"

// Store bundles the repositories that share one database handle. Inside a gorm
// transaction, build a Store from the tx so every read and write joins it.
type Store struct {
	Transactions  TransactionRepository
	Bookings      BookingRepository
	Listings      ListingRepository
	Disputes      DisputeRepository
	Outbox        OutboxRepository
	Notifications NotificationRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		Transactions:  NewTransactionRepository(db),
		Bookings:      NewBookingRepository(db),
		Listings:      NewListingRepository(db),
		Disputes:      NewDisputeRepository(db),
		Outbox:        NewOutboxRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}
