package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"StayEscrow/internal/database"
	"StayEscrow/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*gorm.DB, *Store) {
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
	return db, NewStore(db)
}

func seedBooking(t *testing.T, store *Store) *models.Booking {
	t.Helper()
	booking := &models.Booking{
		ListingID:    "listing-1",
		GuestID:      "guest-1",
		BookingDate:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DurationDays: 2,
		TotalPrice:   decimal.NewFromInt(1000),
		ServiceFee:   decimal.NewFromInt(100),
		CautionFee:   decimal.NewFromInt(200),
	}
	if err := store.Bookings.Create(context.Background(), booking); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return booking
}

func paymentRow(bookingID string, kind models.TransactionKind, amount int64, ref string) *models.Transaction {
	guest := "guest-1"
	return &models.Transaction{
		BookingID:         bookingID,
		Kind:              kind,
		Amount:            decimal.NewFromInt(amount),
		ExternalReference: ref,
		IdempotencyKey:    models.IdempotencyKeyFor(bookingID, kind),
		FromUserID:        &guest,
		Metadata:          models.TransactionMetadata{Payment: &models.PaymentMetadata{ListingID: "listing-1"}},
	}
}

func TestAppendAndFindByBookingAndKind(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	booking := seedBooking(t, store)

	err := store.Transactions.Append(ctx,
		paymentRow(booking.ID, models.TransactionGuestPayment, 1000, "PAY-1"),
		paymentRow(booking.ID, models.TransactionServiceFee, 100, "FEE-1"),
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := store.Transactions.FindByBookingAndKind(ctx, booking.ID, models.TransactionServiceFee)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected fee 100, got %s", got.Amount)
	}
	if got.Metadata.Payment == nil || got.Metadata.Payment.ListingID != "listing-1" {
		t.Fatalf("metadata did not round-trip: %#v", got.Metadata)
	}

	_, err = store.Transactions.FindByBookingAndKind(ctx, booking.ID, models.TransactionHostPayout)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record not found, got %v", err)
	}
}

func TestAppendRejectsDuplicateIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	booking := seedBooking(t, store)

	if err := store.Transactions.Append(ctx, paymentRow(booking.ID, models.TransactionGuestPayment, 1000, "PAY-1")); err != nil {
		t.Fatalf("first append: %v", err)
	}
	err := store.Transactions.Append(ctx, paymentRow(booking.ID, models.TransactionGuestPayment, 1000, "PAY-2"))
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("expected duplicated key error, got %v", err)
	}

	txs, err := store.Transactions.ListByBooking(ctx, booking.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected exactly one ledger row, got %d", len(txs))
	}
}

func TestAppendRejectsMismatchedMetadata(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	booking := seedBooking(t, store)

	row := paymentRow(booking.ID, models.TransactionRefund, 50, "RFD-1")
	if err := store.Transactions.Append(ctx, row); err == nil {
		t.Fatalf("expected refund with payment metadata to be rejected")
	}
}

func TestTransactionListFiltersAndCounts(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)
	first := seedBooking(t, store)
	second := seedBooking(t, store)

	for i, b := range []*models.Booking{first, second} {
		ref := []string{"A", "B"}[i]
		if err := store.Transactions.Append(ctx,
			paymentRow(b.ID, models.TransactionGuestPayment, 1000, "PAY-"+ref),
			paymentRow(b.ID, models.TransactionServiceFee, 100, "FEE-"+ref),
		); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	fees, total, err := store.Transactions.List(ctx, TransactionFilter{Kind: models.TransactionServiceFee})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(fees) != 2 {
		t.Fatalf("expected 2 fee rows, got total=%d len=%d", total, len(fees))
	}

	one, total, err := store.Transactions.List(ctx, TransactionFilter{BookingID: second.ID, Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(one) != 1 {
		t.Fatalf("expected limit 1 of 2 rows, got total=%d len=%d", total, len(one))
	}
}

func TestOutboxLifecycle(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)

	event := &models.OutboxEvent{EventType: models.EventPayoutReleased, PartitionKey: "b-1", Payload: `{"booking_id":"b-1"}`}
	if err := store.Outbox.Enqueue(ctx, event); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := store.Outbox.FetchUnpublished(ctx, 10, 5)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending event, got %d (%v)", len(pending), err)
	}

	if err := store.Outbox.MarkFailed(ctx, event.ID, "broker down", time.Now()); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	pending, _ = store.Outbox.FetchUnpublished(ctx, 10, 5)
	if len(pending) != 1 || pending[0].RetryCount != 1 || pending[0].LastError != "broker down" {
		t.Fatalf("unexpected failed event state: %#v", pending)
	}

	exhausted, _ := store.Outbox.FetchUnpublished(ctx, 10, 1)
	if len(exhausted) != 0 {
		t.Fatalf("expected event past its retry budget to be skipped, got %d", len(exhausted))
	}

	if err := store.Outbox.MarkPublished(ctx, event.ID, time.Now()); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	pending, _ = store.Outbox.FetchUnpublished(ctx, 10, 5)
	if len(pending) != 0 {
		t.Fatalf("expected no pending events, got %d", len(pending))
	}
}

func TestNotificationReadFlow(t *testing.T) {
	ctx := context.Background()
	_, store := newTestStore(t)

	for _, title := range []string{"one", "two"} {
		if err := store.Notifications.Create(ctx, &models.Notification{
			UserID: "host-1", Type: models.NotificationBookingPaid, Title: title, Message: title,
		}); err != nil {
			t.Fatalf("create notification: %v", err)
		}
	}

	list, err := store.Notifications.ListByUser(ctx, "host-1", true, 0, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 unread notifications, got %d (%v)", len(list), err)
	}

	if _, err := store.Notifications.MarkRead(ctx, list[0].ID, "someone-else"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected not found for a foreign user, got %v", err)
	}
	if _, err := store.Notifications.MarkRead(ctx, list[0].ID, "host-1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, _ := store.Notifications.CountUnread(ctx, "host-1")
	if unread != 1 {
		t.Fatalf("expected 1 unread, got %d", unread)
	}

	if err := store.Notifications.MarkAllRead(ctx, "host-1"); err != nil {
		t.Fatalf("mark all read: %v", err)
	}
	if err := store.Notifications.DeleteAllRead(ctx, "host-1"); err != nil {
		t.Fatalf("delete all read: %v", err)
	}
	list, _ = store.Notifications.ListByUser(ctx, "host-1", false, 0, 0)
	if len(list) != 0 {
		t.Fatalf("expected notifications to be deleted, got %d", len(list))
	}
}
