package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"
)

// AutoReleaseWorker periodically pays hosts for bookings whose escrow period has ended.
type AutoReleaseWorker struct {
	logger           *slog.Logger
	bookings         repositories.BookingRepository
	settlement       *SettlementService
	interval         time.Duration
	skipOpenDisputes bool
	now              func() time.Time
}

func NewAutoReleaseWorker(
	logger *slog.Logger,
	bookings repositories.BookingRepository,
	settlement *SettlementService,
	interval time.Duration,
	skipOpenDisputes bool,
) *AutoReleaseWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &AutoReleaseWorker{
		logger:           logger,
		bookings:         bookings,
		settlement:       settlement,
		interval:         interval,
		skipOpenDisputes: skipOpenDisputes,
		now:              time.Now,
	}
}

// Run executes the periodic sweep until context cancellation.
func (w *AutoReleaseWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "auto-release sweep failed",
				"module", "services.auto_release_worker",
				"operation", "sweep",
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

// RunOnce sweeps every booking held in escrow and releases the eligible ones.
func (w *AutoReleaseWorker) RunOnce(ctx context.Context) (int, error) {
	held, err := w.bookings.ListByPaymentStatus(ctx, models.PaymentEscrow)
	if err != nil {
		return 0, fmt.Errorf("list escrow bookings: %w", err)
	}

	released, err := Sweep(ctx, held, w.now(), func(ctx context.Context, booking models.Booking) error {
		_, err := w.settlement.ReleaseBooking(ctx, booking.ID, w.guard)
		return err
	})

	if released > 0 || err != nil {
		w.logger.InfoContext(ctx, "auto-release sweep processed",
			"module", "services.auto_release_worker",
			"operation", "sweep",
			"outcome", outcome(err),
			"scanned_count", len(held),
			"released_count", released,
		)
	}
	return released, err
}

// guard re-checks the booking as it stands under the lock; the listed copy may be stale.
func (w *AutoReleaseWorker) guard(booking models.Booking) error {
	if !IsEligible(booking, w.now()) {
		return ErrReleaseSkipped
	}
	if w.skipOpenDisputes && booking.DisputeStatus == models.BookingDisputeOpen {
		return ErrReleaseSkipped
	}
	return nil
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
