package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"StayEscrow/internal/database"
	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type testEnv struct {
	db         *gorm.DB
	store      *repositories.Store
	mailer     *recordingMailer
	settlement *SettlementService
	disputes   *DisputeService
	financials *FinancialsService
	bookings   *BookingService
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *recordingMailer) Send(to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	store := repositories.NewStore(db)
	mailer := &recordingMailer{}
	logger := discardLogger()
	notifier := NewNotificationService(store.Notifications, mailer, logger)
	settlement := NewSettlementService(db, NewKeyedMutex(), DefaultReleasePolicy(), notifier, logger)

	return &testEnv{
		db:         db,
		store:      store,
		mailer:     mailer,
		settlement: settlement,
		disputes:   NewDisputeService(settlement, nil, notifier, logger),
		financials: NewFinancialsService(store.Transactions, store.Bookings),
		bookings:   NewBookingService(db),
	}
}

func (e *testEnv) seedListing(t *testing.T, hostID string) *models.Listing {
	t.Helper()
	listing := &models.Listing{HostID: hostID, HostEmail: hostID + "@example.com", Title: "Loft", PricingUnit: models.PricingDaily}
	if err := e.store.Listings.Create(context.Background(), listing); err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return listing
}

// seedBooking stores a daily booking on 2024-01-01 for two days.
func (e *testEnv) seedBooking(t *testing.T, listingID string, total, fee, caution int64) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		ListingID:    listingID,
		GuestID:      "guest-1",
		GuestEmail:   "guest-1@example.com",
		BookingDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationDays: 2,
		TotalPrice:   decimal.NewFromInt(total),
		ServiceFee:   decimal.NewFromInt(fee),
		CautionFee:   decimal.NewFromInt(caution),
	}
	if err := e.store.Bookings.Create(context.Background(), booking); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return booking
}

// paidBooking returns a booking that has gone through ConfirmPayment.
func (e *testEnv) paidBooking(t *testing.T, listingID string, total, fee, caution int64) *models.Booking {
	t.Helper()
	booking := e.seedBooking(t, listingID, total, fee, caution)
	paid, err := e.settlement.ConfirmPayment(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	return paid
}

func (e *testEnv) ledger(t *testing.T, bookingID string) []models.Transaction {
	t.Helper()
	txs, err := e.store.Transactions.ListByBooking(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	return txs
}

func (e *testEnv) reload(t *testing.T, bookingID string) *models.Booking {
	t.Helper()
	booking, err := e.store.Bookings.FindByID(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("reload booking: %v", err)
	}
	return booking
}

func (e *testEnv) outboxTypes(t *testing.T) []string {
	t.Helper()
	rows, err := e.store.Outbox.FetchUnpublished(context.Background(), 100, 100)
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	types := make([]string, 0, len(rows))
	for _, r := range rows {
		types = append(types, r.EventType)
	}
	return types
}

func countKind(txs []models.Transaction, kind models.TransactionKind) int {
	n := 0
	for _, tx := range txs {
		if tx.Kind == kind {
			n++
		}
	}
	return n
}

func findKind(t *testing.T, txs []models.Transaction, kind models.TransactionKind) models.Transaction {
	t.Helper()
	for _, tx := range txs {
		if tx.Kind == kind {
			return tx
		}
	}
	t.Fatalf("no %s entry in ledger", kind)
	return models.Transaction{}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
