package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"

	"github.com/shopspring/decimal"
)

// NotificationService writes in-app notifications and, when a mailer and address are
// available, sends the matching e-mail.
type NotificationService struct {
	notifications repositories.NotificationRepository
	mailer        Mailer
	logger        *slog.Logger
}

func NewNotificationService(notifications repositories.NotificationRepository, mailer Mailer, logger *slog.Logger) *NotificationService {
	return &NotificationService{notifications: notifications, mailer: mailer, logger: logger}
}

// CreateNotification creates a new notification
func (s *NotificationService) CreateNotification(ctx context.Context, userID string, notifType models.NotificationType, title, message string, data map[string]interface{}) error {
	var dataJSON string
	if data != nil {
		jsonBytes, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		dataJSON = string(jsonBytes)
	}

	notification := models.Notification{
		UserID:  userID,
		Type:    notifType,
		Title:   title,
		Message: message,
		Data:    dataJSON,
		IsRead:  false,
	}

	if err := s.notifications.Create(ctx, &notification); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// NotifyBookingPaid tells the host that a guest's payment is now held in escrow
func (s *NotificationService) NotifyBookingPaid(ctx context.Context, listing models.Listing, booking models.Booking) {
	message := fmt.Sprintf("A guest paid %s for \"%s\". Funds are held in escrow until %s.",
		naira(booking.TotalPrice), listing.Title, formatRelease(booking))
	s.deliver(ctx, listing.HostID, listing.HostEmail, models.NotificationBookingPaid, "New Paid Booking", message,
		map[string]interface{}{
			"booking_id": booking.ID,
			"listing_id": listing.ID,
			"amount":     booking.TotalPrice.StringFixed(2),
		},
		naira(booking.TotalPrice),
	)
}

// NotifyPayoutReleased tells the host their payout has been released
func (s *NotificationService) NotifyPayoutReleased(ctx context.Context, listing models.Listing, bookingID string, amount decimal.Decimal) {
	s.deliver(ctx, listing.HostID, listing.HostEmail, models.NotificationPayoutReleased, "Payout Released",
		fmt.Sprintf("%s has been released to you for booking %s", naira(amount), bookingID),
		map[string]interface{}{
			"booking_id": bookingID,
			"amount":     amount.StringFixed(2),
		},
		naira(amount),
	)
}

// NotifyRefundProcessed tells the guest their refund has been processed
func (s *NotificationService) NotifyRefundProcessed(ctx context.Context, booking models.Booking, amount decimal.Decimal) {
	s.deliver(ctx, booking.GuestID, booking.GuestEmail, models.NotificationRefundProcessed, "Refund Processed",
		fmt.Sprintf("%s has been refunded for booking %s", naira(amount), booking.ID),
		map[string]interface{}{
			"booking_id": booking.ID,
			"amount":     amount.StringFixed(2),
		},
		naira(amount),
	)
}

// NotifyDisputeOpened notifies the other party when a dispute is raised
func (s *NotificationService) NotifyDisputeOpened(ctx context.Context, userID, email string, dispute models.Dispute) {
	s.deliver(ctx, userID, email, models.NotificationDisputeOpened, "Dispute Raised",
		fmt.Sprintf("A dispute has been raised on booking %s: %s", dispute.BookingID, dispute.Reason),
		map[string]interface{}{
			"booking_id": dispute.BookingID,
			"dispute_id": dispute.ID,
			"raised_by":  dispute.RaisedBy,
			"reason":     dispute.Reason,
		},
		string(dispute.Reason),
	)
}

// NotifyDisputeResolved notifies a party when a dispute is resolved
func (s *NotificationService) NotifyDisputeResolved(ctx context.Context, userID, email string, dispute models.Dispute) {
	winner := "host"
	if dispute.Decision == models.DecisionRefundGuest {
		winner = "guest"
	}
	s.deliver(ctx, userID, email, models.NotificationDisputeResolved, "Dispute Resolved",
		fmt.Sprintf("The dispute on booking %s has been resolved in favor of the %s. %s", dispute.BookingID, winner, dispute.Resolution),
		map[string]interface{}{
			"booking_id": dispute.BookingID,
			"dispute_id": dispute.ID,
			"decision":   dispute.Decision,
			"resolution": dispute.Resolution,
		},
		"Resolved in favor of the "+winner,
	)
}

// deliver never fails the caller: the ledger change it reports has already committed.
func (s *NotificationService) deliver(ctx context.Context, userID, email string, notifType models.NotificationType, title, message string, data map[string]interface{}, highlight string) {
	if err := s.CreateNotification(ctx, userID, notifType, title, message, data); err != nil {
		s.logger.WarnContext(ctx, "notification not stored",
			"module", "services.notifications",
			"operation", string(notifType),
			"outcome", "failure",
			"user_id", userID,
			"error", err,
		)
	}

	if s.mailer == nil || email == "" {
		return
	}
	body := emailTemplate(title, message, highlight, "You can view the details in your StayEscrow dashboard.")
	if err := s.mailer.Send(email, "StayEscrow - "+title, body); err != nil {
		s.logger.WarnContext(ctx, "notification e-mail not sent",
			"module", "services.notifications",
			"operation", string(notifType),
			"outcome", "failure",
			"user_id", userID,
			"error", err,
		)
	}
}

func naira(amount decimal.Decimal) string {
	return "₦" + amount.StringFixed(2)
}

func formatRelease(b models.Booking) string {
	if b.EscrowReleaseDate == nil {
		return "the stay is complete"
	}
	return b.EscrowReleaseDate.Format("Jan 2, 2006 15:04 MST")
}
