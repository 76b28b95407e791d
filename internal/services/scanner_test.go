package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"StayEscrow/internal/models"
)

func escrowBooking(id string, handshake models.HandshakeStatus, release *time.Time) models.Booking {
	return models.Booking{
		ID:                id,
		PaymentStatus:     models.PaymentEscrow,
		HandshakeStatus:   handshake,
		DisputeStatus:     models.BookingDisputeNone,
		EscrowReleaseDate: release,
	}
}

func TestIsEligible(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	longAgo := now.AddDate(-1, 0, 0)
	future := now.Add(time.Hour)

	disputed := escrowBooking("disputed", models.HandshakeVerified, &past)
	disputed.DisputeStatus = models.BookingDisputeOpen
	released := escrowBooking("released", models.HandshakeVerified, &past)
	released.PaymentStatus = models.PaymentReleased

	tests := []struct {
		name    string
		booking models.Booking
		want    bool
	}{
		{"verified and due", escrowBooking("a", models.HandshakeVerified, &past), true},
		{"due exactly now", escrowBooking("b", models.HandshakeVerified, &now), true},
		{"not yet due", escrowBooking("c", models.HandshakeVerified, &future), false},
		{"pending handshake long overdue", escrowBooking("d", models.HandshakePending, &longAgo), false},
		{"no release date", escrowBooking("e", models.HandshakeVerified, nil), false},
		{"not in escrow", released, false},
		{"open dispute is not part of the predicate", disputed, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEligible(tt.booking, now); got != tt.want {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSweepCountsOnlySuccessfulCallbacks(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	bookings := []models.Booking{
		escrowBooking("ok-1", models.HandshakeVerified, &past),
		escrowBooking("pending", models.HandshakePending, &past),
		escrowBooking("skip", models.HandshakeVerified, &past),
		escrowBooking("boom", models.HandshakeVerified, &past),
		escrowBooking("ok-2", models.HandshakeVerified, &past),
	}

	var called []string
	boom := errors.New("boom")
	count, err := Sweep(context.Background(), bookings, now, func(_ context.Context, b models.Booking) error {
		called = append(called, b.ID)
		switch b.ID {
		case "skip":
			return ErrReleaseSkipped
		case "boom":
			return boom
		}
		return nil
	})

	if count != 2 {
		t.Fatalf("expected 2 releases, got %d", count)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error to be reported, got %v", err)
	}
	if errors.Is(err, ErrReleaseSkipped) {
		t.Fatalf("skipped bookings must not be reported")
	}
	if contains(called, "pending") {
		t.Fatalf("pending handshake must never reach the callback")
	}
	if len(called) != 4 {
		t.Fatalf("expected 4 callbacks, got %v", called)
	}
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := Sweep(ctx, []models.Booking{escrowBooking("a", models.HandshakeVerified, &past)}, now, func(context.Context, models.Booking) error {
		t.Fatalf("callback must not run after cancellation")
		return nil
	})
	if count != 0 || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got count=%d err=%v", count, err)
	}
}
