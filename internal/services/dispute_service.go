package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"strings"

	"StayEscrow/internal/events"
	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"

	"gorm.io/gorm"
)

type DisputeService struct {
	settlement *SettlementService
	evidence   EvidenceStore
	notifier   *NotificationService
	logger     *slog.Logger
}

func NewDisputeService(settlement *SettlementService, evidence EvidenceStore, notifier *NotificationService, logger *slog.Logger) *DisputeService {
	return &DisputeService{
		settlement: settlement,
		evidence:   evidence,
		notifier:   notifier,
		logger:     logger,
	}
}

// OpenDispute records a dispute against a booking whose funds are still held in escrow.
// Only the guest or the host of the booking may raise it.
func (s *DisputeService) OpenDispute(ctx context.Context, bookingID, raisedBy string, reason models.DisputeReason, description string) (*models.Dispute, error) {
	var (
		dispute *models.Dispute
		booking *models.Booking
		listing *models.Listing
	)
	err := s.settlement.withBookingTx(ctx, bookingID, func(store *repositories.Store) error {
		var err error
		booking, err = findBooking(ctx, store, bookingID)
		if err != nil {
			return err
		}
		listing, err = findListing(ctx, store, booking)
		if err != nil {
			return err
		}
		if raisedBy != booking.GuestID && raisedBy != listing.HostID {
			return newError(KindInvalidState, bookingID, "only the guest or the host can raise a dispute", nil)
		}
		if !booking.HeldInEscrow() {
			return newError(KindInvalidState, bookingID, "disputes can only be raised while funds are held in escrow", nil)
		}
		if booking.DisputeStatus == models.BookingDisputeOpen {
			return newError(KindInvalidState, bookingID, "a dispute is already open for this booking", nil)
		}

		dispute = &models.Dispute{
			BookingID:   bookingID,
			RaisedBy:    raisedBy,
			Reason:      reason,
			Description: strings.TrimSpace(description),
		}
		if err := store.Disputes.Create(ctx, dispute); err != nil {
			return newError(KindLedgerWriteFailed, bookingID, "create dispute", err)
		}

		booking.DisputeStatus = models.BookingDisputeOpen
		if err := store.Bookings.Save(ctx, booking); err != nil {
			return newError(KindLedgerWriteFailed, bookingID, "update booking", err)
		}

		return enqueue(ctx, store, models.EventDisputeOpened, bookingID, events.DisputeOpened{
			BookingID:  bookingID,
			DisputeID:  dispute.ID,
			RaisedBy:   raisedBy,
			Reason:     reason,
			OccurredAt: dispute.CreatedAt.UTC(),
		})
	})
	if err != nil {
		s.settlement.logOutcome(ctx, "open_dispute", bookingID, err)
		return nil, err
	}
	s.settlement.logOutcome(ctx, "open_dispute", bookingID, nil)

	if s.notifier != nil {
		if raisedBy == booking.GuestID {
			s.notifier.NotifyDisputeOpened(ctx, listing.HostID, listing.HostEmail, *dispute)
		} else {
			s.notifier.NotifyDisputeOpened(ctx, booking.GuestID, booking.GuestEmail, *dispute)
		}
	}
	return dispute, nil
}

// AttachEvidence uploads a file and records it on the booking's open dispute.
func (s *DisputeService) AttachEvidence(ctx context.Context, bookingID, userID string, file *multipart.FileHeader) (*models.Dispute, error) {
	if s.evidence == nil {
		return nil, fmt.Errorf("evidence uploads are not configured")
	}

	store := repositories.NewStore(s.settlement.db)
	dispute, err := store.Disputes.FindOpenByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindDisputeNotFound, bookingID, "no open dispute for booking", nil)
		}
		return nil, fmt.Errorf("load dispute: %w", err)
	}
	if dispute.RaisedBy != userID {
		return nil, newError(KindInvalidState, bookingID, "only the party who raised the dispute can attach evidence", nil)
	}

	result, err := s.evidence.UploadEvidence(ctx, file, bookingID)
	if err != nil {
		return nil, err
	}

	previous := dispute.EvidencePublicID
	dispute.EvidenceURL = result.SecureURL
	dispute.EvidencePublicID = result.PublicID
	if err := store.Disputes.Save(ctx, dispute); err != nil {
		_ = s.evidence.DeleteFile(ctx, result.PublicID)
		return nil, fmt.Errorf("save dispute evidence: %w", err)
	}
	if previous != "" {
		if err := s.evidence.DeleteFile(ctx, previous); err != nil {
			s.logger.WarnContext(ctx, "previous evidence not deleted",
				"module", "services.disputes",
				"operation", "attach_evidence",
				"outcome", "failure",
				"booking_id", bookingID,
				"error", err,
			)
		}
	}
	return dispute, nil
}

// ResolveDispute settles a disputed booking by admin decision, bypassing release eligibility.
// RefundGuest refunds the full total price and cancels the booking; ReleaseToHost pays the
// host and completes it. Nothing is written when the listing cannot be found.
func (s *DisputeService) ResolveDispute(ctx context.Context, bookingID string, decision models.DisputeDecision, adminID, adminNotes string) (*models.Dispute, error) {
	if !models.ValidDecision(decision) {
		return nil, newError(KindInvalidState, bookingID, fmt.Sprintf("unknown decision %q", decision), nil)
	}

	var (
		booking *models.Booking
		listing *models.Listing
		dispute *models.Dispute
		settled *models.Transaction
	)
	err := s.settlement.withBookingTx(ctx, bookingID, func(store *repositories.Store) error {
		var err error
		booking, err = findBooking(ctx, store, bookingID)
		if err != nil {
			return err
		}
		if booking.DisputeStatus != models.BookingDisputeOpen {
			return newError(KindInvalidState, bookingID, "booking has no open dispute", nil)
		}

		// A missing listing only blocks the release path, and it is detected before any write.
		listing, err = findListing(ctx, store, booking)
		if err != nil && (decision == models.DecisionReleaseToHost || KindOf(err) != KindListingNotFound) {
			return err
		}

		ledger, err := loadLedger(ctx, store, bookingID)
		if err != nil {
			return err
		}

		now := s.settlement.now()
		switch decision {
		case models.DecisionRefundGuest:
			settled, err = s.settlement.processRefund(ctx, store, ledger, booking, booking.GuestID, booking.TotalPrice, adminNotes)
			if err != nil {
				return err
			}
			booking.PaymentStatus = models.PaymentRefunded
			booking.Status = models.BookingCancelled
			booking.CancelledAt = &now
		case models.DecisionReleaseToHost:
			settled, err = s.settlement.releaseFundsToHost(ctx, store, ledger, booking, listing.HostID, adminNotes)
			if err != nil {
				return err
			}
			booking.PaymentStatus = models.PaymentReleased
			booking.Status = models.BookingCompleted
			booking.ReleasedAt = &now
		}
		booking.DisputeStatus = models.BookingDisputeResolved
		if err := store.Bookings.Save(ctx, booking); err != nil {
			return newError(KindLedgerWriteFailed, bookingID, "update booking", err)
		}

		dispute, err = store.Disputes.FindOpenByBooking(ctx, bookingID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return newError(KindLedgerWriteFailed, bookingID, "load dispute", err)
		}
		if dispute == nil {
			// Bookings flagged as disputed without a dispute record still get an audit row.
			dispute = &models.Dispute{BookingID: bookingID, RaisedBy: adminID, Reason: models.ReasonOther, Description: "opened by admin"}
			if err := store.Disputes.Create(ctx, dispute); err != nil {
				return newError(KindLedgerWriteFailed, bookingID, "create dispute", err)
			}
		}
		resolver := adminID
		dispute.Status = models.DisputeResolved
		dispute.Decision = decision
		dispute.Resolution = adminNotes
		dispute.ResolvedBy = &resolver
		dispute.ResolvedAt = &now
		if err := store.Disputes.Save(ctx, dispute); err != nil {
			return newError(KindLedgerWriteFailed, bookingID, "resolve dispute", err)
		}

		return enqueue(ctx, store, models.EventDisputeResolved, bookingID, events.DisputeResolved{
			BookingID:     bookingID,
			DisputeID:     dispute.ID,
			Decision:      decision,
			AdminID:       adminID,
			TransactionID: settled.ID,
			OccurredAt:    now.UTC(),
		})
	})
	if err != nil {
		s.settlement.logOutcome(ctx, "resolve_dispute", bookingID, err)
		return nil, err
	}
	s.settlement.logOutcome(ctx, "resolve_dispute", bookingID, nil)

	if s.notifier != nil {
		s.notifier.NotifyDisputeResolved(ctx, booking.GuestID, booking.GuestEmail, *dispute)
		if listing != nil {
			s.notifier.NotifyDisputeResolved(ctx, listing.HostID, listing.HostEmail, *dispute)
			if decision == models.DecisionReleaseToHost {
				s.notifier.NotifyPayoutReleased(ctx, *listing, bookingID, settled.Amount)
			}
		}
		if decision == models.DecisionRefundGuest {
			s.notifier.NotifyRefundProcessed(ctx, *booking, settled.Amount)
		}
	}
	return dispute, nil
}

// GetDispute returns the most recent dispute of a booking. Admins may read any dispute;
// other users only disputes on bookings they are a party to.
func (s *DisputeService) GetDispute(ctx context.Context, bookingID, userID string, isAdmin bool) (*models.Dispute, error) {
	store := repositories.NewStore(s.settlement.db)
	dispute, err := store.Disputes.FindLatestByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindDisputeNotFound, bookingID, "no dispute for booking", nil)
		}
		return nil, fmt.Errorf("load dispute: %w", err)
	}
	if isAdmin {
		return dispute, nil
	}

	booking, err := findBooking(ctx, store, bookingID)
	if err != nil {
		return nil, err
	}
	if userID == booking.GuestID {
		return dispute, nil
	}
	listing, err := store.Listings.FindByID(ctx, booking.ListingID)
	if err == nil && listing.HostID == userID {
		return dispute, nil
	}
	return nil, newError(KindDisputeNotFound, bookingID, "no dispute for booking", nil)
}

func (s *DisputeService) ListDisputes(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]models.Dispute, int64, error) {
	disputes, total, err := repositories.NewDisputeRepository(s.settlement.db).List(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list disputes: %w", err)
	}
	return disputes, total, nil
}
