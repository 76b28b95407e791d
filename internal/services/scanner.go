package services

import (
	"context"
	"errors"
	"time"

	"StayEscrow/internal/models"
)

// IsEligible reports whether a booking's escrowed funds may be auto-released at now:
// held in escrow, handshake verified, and the release date reached. The dispute status
// is not part of the predicate; callers that must respect disputes do so in their guard.
func IsEligible(booking models.Booking, now time.Time) bool {
	if booking.PaymentStatus != models.PaymentEscrow {
		return false
	}
	if booking.HandshakeStatus != models.HandshakeVerified {
		return false
	}
	if booking.EscrowReleaseDate == nil {
		return false
	}
	return !booking.EscrowReleaseDate.After(now)
}

// Sweep calls onEligible for every eligible booking and returns how many calls succeeded.
// Sweep itself writes nothing. A callback returning ErrReleaseSkipped is neither counted
// nor reported; other callback errors are joined and returned with the count.
func Sweep(ctx context.Context, bookings []models.Booking, now time.Time, onEligible func(context.Context, models.Booking) error) (int, error) {
	count := 0
	var errs []error
	for _, booking := range bookings {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !IsEligible(booking, now) {
			continue
		}
		if err := onEligible(ctx, booking); err != nil {
			if errors.Is(err, ErrReleaseSkipped) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}
