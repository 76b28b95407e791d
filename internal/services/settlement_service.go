package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"StayEscrow/internal/events"
	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReleaseGuard re-validates a booking under its lock just before a payout is written.
// Returning ErrReleaseSkipped declines the release without reporting a failure.
type ReleaseGuard func(booking models.Booking) error

// SettlementService moves money through the escrow ledger. Every operation on a booking
// holds that booking's lock and runs as a single database transaction.
type SettlementService struct {
	db       *gorm.DB
	locker   Locker
	policy   ReleasePolicy
	notifier *NotificationService
	logger   *slog.Logger
	now      func() time.Time
}

func NewSettlementService(db *gorm.DB, locker Locker, policy ReleasePolicy, notifier *NotificationService, logger *slog.Logger) *SettlementService {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	return &SettlementService{
		db:       db,
		locker:   locker,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// RecordGuestPayment appends the guest_payment and service_fee entries for a booking.
// The fee is recorded in addition to the payment, not deducted from it.
func (s *SettlementService) RecordGuestPayment(ctx context.Context, booking *models.Booking, guestID string) ([]string, error) {
	var ids []string
	err := s.withBookingTx(ctx, booking.ID, func(store *repositories.Store) error {
		ledger, err := loadLedger(ctx, store, booking.ID)
		if err != nil {
			return err
		}
		ids, err = s.recordGuestPayment(ctx, store, ledger, booking, guestID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ReleaseFundsToHost appends the host_payout entry: total price minus service fee minus caution fee.
func (s *SettlementService) ReleaseFundsToHost(ctx context.Context, booking *models.Booking, hostID string) (string, error) {
	var id string
	err := s.withBookingTx(ctx, booking.ID, func(store *repositories.Store) error {
		ledger, err := loadLedger(ctx, store, booking.ID)
		if err != nil {
			return err
		}
		tx, err := s.releaseFundsToHost(ctx, store, ledger, booking, hostID, "")
		if err != nil {
			return err
		}
		id = tx.ID
		return nil
	})
	return id, err
}

// ProcessRefund appends a refund entry of amount to the guest.
func (s *SettlementService) ProcessRefund(ctx context.Context, booking *models.Booking, guestID string, amount decimal.Decimal) (string, error) {
	var id string
	err := s.withBookingTx(ctx, booking.ID, func(store *repositories.Store) error {
		ledger, err := loadLedger(ctx, store, booking.ID)
		if err != nil {
			return err
		}
		tx, err := s.processRefund(ctx, store, ledger, booking, guestID, amount, "")
		if err != nil {
			return err
		}
		id = tx.ID
		return nil
	})
	return id, err
}

// ConfirmPayment records the guest's payment for a pending booking, moves the funds into
// escrow and fixes the date after which they may be released.
func (s *SettlementService) ConfirmPayment(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking *models.Booking
	err := s.withBookingTx(ctx, bookingID, func(store *repositories.Store) error {
		var err error
		booking, err = findBooking(ctx, store, bookingID)
		if err != nil {
			return err
		}
		if booking.Status == models.BookingCancelled {
			return newError(KindInvalidState, bookingID, "booking is cancelled", nil)
		}
		if booking.PaymentStatus != models.PaymentPending {
			return newError(KindAlreadySettled, bookingID, "booking has already been paid", nil)
		}

		ledger, err := loadLedger(ctx, store, bookingID)
		if err != nil {
			return err
		}
		ids, err := s.recordGuestPayment(ctx, store, ledger, booking, booking.GuestID)
		if err != nil {
			return err
		}

		now := s.now()
		release := s.policy.ComputeReleaseDate(booking.BookingDate, booking.BookedHours, booking.DurationDays)
		booking.PaymentStatus = models.PaymentEscrow
		booking.Status = models.BookingConfirmed
		booking.PaidAt = &now
		booking.EscrowReleaseDate = &release
		if err := store.Bookings.Save(ctx, booking); err != nil {
			return newError(KindLedgerWriteFailed, bookingID, "update booking", err)
		}

		return enqueue(ctx, store, models.EventPaymentRecorded, bookingID, events.PaymentRecorded{
			BookingID:         bookingID,
			ListingID:         booking.ListingID,
			GuestID:           booking.GuestID,
			Amount:            booking.TotalPrice,
			ServiceFee:        booking.ServiceFee,
			EscrowReleaseDate: booking.EscrowReleaseDate,
			TransactionIDs:    ids,
			OccurredAt:        now.UTC(),
		})
	})
	if err != nil {
		s.logOutcome(ctx, "confirm_payment", bookingID, err)
		return nil, err
	}
	s.logOutcome(ctx, "confirm_payment", bookingID, nil)

	if s.notifier != nil {
		if listing, err := repositories.NewListingRepository(s.db).FindByID(ctx, booking.ListingID); err == nil {
			s.notifier.NotifyBookingPaid(ctx, *listing, *booking)
		}
	}
	return booking, nil
}

// ReleaseBooking pays the host for a booking held in escrow. A non-nil guard runs under the
// booking lock after the booking is re-read; guarded releases are reported as automatic.
func (s *SettlementService) ReleaseBooking(ctx context.Context, bookingID string, guard ReleaseGuard) (*models.Transaction, error) {
	var (
		booking *models.Booking
		listing *models.Listing
		payout  *models.Transaction
	)
	err := s.withBookingTx(ctx, bookingID, func(store *repositories.Store) error {
		var err error
		booking, err = findBooking(ctx, store, bookingID)
		if err != nil {
			return err
		}
		if err := requireEscrow(booking); err != nil {
			return err
		}
		if guard != nil {
			if err := guard(*booking); err != nil {
				return err
			}
		} else if booking.DisputeStatus == models.BookingDisputeOpen {
			return newError(KindInvalidState, bookingID, "booking has an open dispute", nil)
		}

		listing, err = findListing(ctx, store, booking)
		if err != nil {
			return err
		}
		ledger, err := loadLedger(ctx, store, bookingID)
		if err != nil {
			return err
		}
		payout, err = s.releaseFundsToHost(ctx, store, ledger, booking, listing.HostID, "")
		if err != nil {
			return err
		}

		now := s.now()
		booking.PaymentStatus = models.PaymentReleased
		booking.Status = models.BookingCompleted
		booking.ReleasedAt = &now
		if err := store.Bookings.Save(ctx, booking); err != nil {
			return newError(KindLedgerWriteFailed, bookingID, "update booking", err)
		}

		return enqueue(ctx, store, models.EventPayoutReleased, bookingID, events.PayoutReleased{
			BookingID:      bookingID,
			HostID:         listing.HostID,
			Amount:         payout.Amount,
			CautionFeeHeld: booking.CautionFee,
			TransactionID:  payout.ID,
			Automatic:      guard != nil,
			OccurredAt:     now.UTC(),
		})
	})
	if err != nil {
		if !errors.Is(err, ErrReleaseSkipped) {
			s.logOutcome(ctx, "release_booking", bookingID, err)
		}
		return nil, err
	}
	s.logOutcome(ctx, "release_booking", bookingID, nil)

	if s.notifier != nil {
		s.notifier.NotifyPayoutReleased(ctx, *listing, bookingID, payout.Amount)
	}
	return payout, nil
}

// CancelBooking cancels a booking. A booking held in escrow is refunded refundAmount, or the
// full total price when refundAmount is nil. An unpaid booking is cancelled without a ledger entry.
func (s *SettlementService) CancelBooking(ctx context.Context, bookingID string, refundAmount *decimal.Decimal) (*models.Booking, *models.Transaction, error) {
	var (
		booking *models.Booking
		refund  *models.Transaction
	)
	err := s.withBookingTx(ctx, bookingID, func(store *repositories.Store) error {
		var err error
		booking, err = findBooking(ctx, store, bookingID)
		if err != nil {
			return err
		}
		now := s.now()

		if booking.PaymentStatus == models.PaymentPending {
			if booking.Status == models.BookingCancelled {
				return newError(KindInvalidState, bookingID, "booking is already cancelled", nil)
			}
			booking.Status = models.BookingCancelled
			booking.CancelledAt = &now
			if err := store.Bookings.Save(ctx, booking); err != nil {
				return newError(KindLedgerWriteFailed, bookingID, "update booking", err)
			}
			return nil
		}

		if err := requireEscrow(booking); err != nil {
			return err
		}
		if booking.DisputeStatus == models.BookingDisputeOpen {
			return newError(KindInvalidState, bookingID, "booking has an open dispute", nil)
		}

		amount := booking.TotalPrice
		if refundAmount != nil {
			amount = *refundAmount
		}
		ledger, err := loadLedger(ctx, store, bookingID)
		if err != nil {
			return err
		}
		refund, err = s.processRefund(ctx, store, ledger, booking, booking.GuestID, amount, "")
		if err != nil {
			return err
		}

		booking.PaymentStatus = models.PaymentRefunded
		booking.Status = models.BookingCancelled
		booking.CancelledAt = &now
		if err := store.Bookings.Save(ctx, booking); err != nil {
			return newError(KindLedgerWriteFailed, bookingID, "update booking", err)
		}

		return enqueue(ctx, store, models.EventRefundProcessed, bookingID, events.RefundProcessed{
			BookingID:     bookingID,
			GuestID:       booking.GuestID,
			Amount:        refund.Amount,
			TransactionID: refund.ID,
			OccurredAt:    now.UTC(),
		})
	})
	if err != nil {
		s.logOutcome(ctx, "cancel_booking", bookingID, err)
		return nil, nil, err
	}
	s.logOutcome(ctx, "cancel_booking", bookingID, nil)

	if s.notifier != nil && refund != nil {
		s.notifier.NotifyRefundProcessed(ctx, *booking, refund.Amount)
	}
	return booking, refund, nil
}

func (s *SettlementService) recordGuestPayment(ctx context.Context, store *repositories.Store, ledger ledgerState, booking *models.Booking, guestID string) ([]string, error) {
	if !booking.TotalPrice.IsPositive() {
		return nil, newError(KindInvalidAmount, booking.ID, "total price must be positive", nil)
	}
	if booking.ServiceFee.IsNegative() {
		return nil, newError(KindInvalidAmount, booking.ID, "service fee must not be negative", nil)
	}
	if ledger.payment != nil {
		return nil, newError(KindAlreadySettled, booking.ID, "guest payment already recorded", nil)
	}

	payer := guestID
	meta := models.TransactionMetadata{Payment: &models.PaymentMetadata{ListingID: booking.ListingID, Guests: booking.Guests}}
	payment := &models.Transaction{
		BookingID:         booking.ID,
		Kind:              models.TransactionGuestPayment,
		Amount:            booking.TotalPrice,
		ExternalReference: generateTransactionReference("PAY"),
		IdempotencyKey:    models.IdempotencyKeyFor(booking.ID, models.TransactionGuestPayment),
		FromUserID:        &payer,
		Metadata:          meta,
	}
	fee := &models.Transaction{
		BookingID:         booking.ID,
		Kind:              models.TransactionServiceFee,
		Amount:            booking.ServiceFee,
		ExternalReference: generateTransactionReference("FEE"),
		IdempotencyKey:    models.IdempotencyKeyFor(booking.ID, models.TransactionServiceFee),
		FromUserID:        &payer,
		Metadata:          meta,
	}
	if err := store.Transactions.Append(ctx, payment, fee); err != nil {
		return nil, appendError(booking.ID, err)
	}
	return []string{payment.ID, fee.ID}, nil
}

func (s *SettlementService) releaseFundsToHost(ctx context.Context, store *repositories.Store, ledger ledgerState, booking *models.Booking, hostID, adminNotes string) (*models.Transaction, error) {
	amount := booking.TotalPrice.Sub(booking.ServiceFee).Sub(booking.CautionFee)
	if amount.IsNegative() {
		return nil, newError(KindInvalidAmount, booking.ID, fmt.Sprintf("payout would be negative (%s)", amount.StringFixed(2)), nil)
	}
	if ledger.payment == nil {
		return nil, newError(KindPaymentMissing, booking.ID, "no guest payment recorded", nil)
	}
	if ledger.settled() {
		return nil, newError(KindAlreadySettled, booking.ID, "booking already settled", nil)
	}

	payee := hostID
	payout := &models.Transaction{
		BookingID:         booking.ID,
		Kind:              models.TransactionHostPayout,
		Amount:            amount,
		ExternalReference: generateTransactionReference("PYO"),
		IdempotencyKey:    models.IdempotencyKeyFor(booking.ID, models.TransactionHostPayout),
		ToUserID:          &payee,
		Metadata: models.TransactionMetadata{Payout: &models.PayoutMetadata{
			ListingID:      booking.ListingID,
			CautionFeeHeld: booking.CautionFee,
			AdminNotes:     adminNotes,
		}},
	}
	if err := store.Transactions.Append(ctx, payout); err != nil {
		return nil, appendError(booking.ID, err)
	}
	return payout, nil
}

func (s *SettlementService) processRefund(ctx context.Context, store *repositories.Store, ledger ledgerState, booking *models.Booking, guestID string, amount decimal.Decimal, adminNotes string) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, newError(KindInvalidAmount, booking.ID, "refund amount must be positive", nil)
	}
	if !wholeCents(amount) {
		return nil, newError(KindInvalidAmount, booking.ID, "refund amount must not have more than two decimal places", nil)
	}
	if ledger.payment == nil {
		return nil, newError(KindPaymentMissing, booking.ID, "no guest payment recorded", nil)
	}
	if ledger.settled() {
		return nil, newError(KindAlreadySettled, booking.ID, "booking already settled", nil)
	}
	if amount.GreaterThan(ledger.payment.Amount) {
		return nil, newError(KindInvalidAmount, booking.ID, fmt.Sprintf("refund %s exceeds payment %s", amount.StringFixed(2), ledger.payment.Amount.StringFixed(2)), nil)
	}

	payee := guestID
	refund := &models.Transaction{
		BookingID:         booking.ID,
		Kind:              models.TransactionRefund,
		Amount:            amount,
		ExternalReference: generateTransactionReference("RFD"),
		IdempotencyKey:    models.IdempotencyKeyFor(booking.ID, models.TransactionRefund),
		ToUserID:          &payee,
		Metadata: models.TransactionMetadata{Refund: &models.RefundMetadata{
			OriginalAmount: booking.TotalPrice,
			AdminNotes:     adminNotes,
		}},
	}
	if err := store.Transactions.Append(ctx, refund); err != nil {
		return nil, appendError(booking.ID, err)
	}
	return refund, nil
}

// withBookingTx holds the booking lock for the whole transaction, commit included.
func (s *SettlementService) withBookingTx(ctx context.Context, bookingID string, fn func(store *repositories.Store) error) error {
	unlock, err := s.locker.Lock(ctx, bookingLockKey(bookingID))
	if err != nil {
		return fmt.Errorf("lock booking %s: %w", bookingID, err)
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(repositories.NewStore(tx))
	})
	if err != nil {
		var se *SettlementError
		if errors.As(err, &se) || errors.Is(err, ErrReleaseSkipped) {
			return err
		}
		return newError(KindLedgerWriteFailed, bookingID, "commit", err)
	}
	return nil
}

func (s *SettlementService) logOutcome(ctx context.Context, operation, bookingID string, err error) {
	if s.logger == nil {
		return
	}
	if err != nil {
		s.logger.WarnContext(ctx, "settlement operation failed",
			"module", "services.settlement",
			"operation", operation,
			"outcome", "failure",
			"booking_id", bookingID,
			"error_kind", string(KindOf(err)),
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "settlement operation completed",
		"module", "services.settlement",
		"operation", operation,
		"outcome", "success",
		"booking_id", bookingID,
	)
}

// ledgerState indexes one booking's ledger entries by kind.
type ledgerState struct {
	payment *models.Transaction
	payout  *models.Transaction
	refund  *models.Transaction
}

func (l ledgerState) settled() bool {
	return l.payout != nil || l.refund != nil
}

func loadLedger(ctx context.Context, store *repositories.Store, bookingID string) (ledgerState, error) {
	txs, err := store.Transactions.ListByBooking(ctx, bookingID)
	if err != nil {
		return ledgerState{}, newError(KindLedgerWriteFailed, bookingID, "read ledger", err)
	}
	var state ledgerState
	for i := range txs {
		tx := &txs[i]
		if tx.Status != models.TransactionCompleted {
			continue
		}
		switch tx.Kind {
		case models.TransactionGuestPayment:
			state.payment = tx
		case models.TransactionHostPayout:
			state.payout = tx
		case models.TransactionRefund:
			state.refund = tx
		}
	}
	return state, nil
}

func findBooking(ctx context.Context, store *repositories.Store, bookingID string) (*models.Booking, error) {
	booking, err := store.Bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindBookingNotFound, bookingID, "booking not found", nil)
		}
		return nil, newError(KindLedgerWriteFailed, bookingID, "load booking", err)
	}
	return booking, nil
}

func findListing(ctx context.Context, store *repositories.Store, booking *models.Booking) (*models.Listing, error) {
	listing, err := store.Listings.FindByID(ctx, booking.ListingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindListingNotFound, booking.ID, "listing "+booking.ListingID+" not found", nil)
		}
		return nil, newError(KindLedgerWriteFailed, booking.ID, "load listing", err)
	}
	return listing, nil
}

func requireEscrow(booking *models.Booking) error {
	switch booking.PaymentStatus {
	case models.PaymentEscrow:
		return nil
	case models.PaymentReleased, models.PaymentRefunded:
		return newError(KindAlreadySettled, booking.ID, "booking already settled", nil)
	default:
		return newError(KindPaymentMissing, booking.ID, "booking is not held in escrow", nil)
	}
}

func enqueue(ctx context.Context, store *repositories.Store, eventType, bookingID string, payload any) error {
	event, err := events.NewOutboxEvent(eventType, bookingID, payload)
	if err != nil {
		return newError(KindLedgerWriteFailed, bookingID, "build event", err)
	}
	if err := store.Outbox.Enqueue(ctx, event); err != nil {
		return newError(KindLedgerWriteFailed, bookingID, "enqueue event", err)
	}
	return nil
}

func appendError(bookingID string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return newError(KindAlreadySettled, bookingID, "ledger entry already exists", err)
	}
	return newError(KindLedgerWriteFailed, bookingID, "append ledger entries", err)
}

// generateTransactionReference returns an opaque external reference such as PYO-1704067200-9F2C4A1B.
// wholeCents reports whether d fits the ledger's two-decimal columns without rounding.
func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func generateTransactionReference(prefix string) string {
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), strings.ToUpper(uuid.NewString()[:8]))
}
