package events

import (
	"encoding/json"
	"fmt"
	"time"

	"StayEscrow/internal/models"

	"github.com/shopspring/decimal"
)

type PaymentRecorded struct {
	BookingID         string          `json:"booking_id"`
	ListingID         string          `json:"listing_id"`
	GuestID           string          `json:"guest_id"`
	Amount            decimal.Decimal `json:"amount"`
	ServiceFee        decimal.Decimal `json:"service_fee"`
	EscrowReleaseDate *time.Time      `json:"escrow_release_date,omitempty"`
	TransactionIDs    []string        `json:"transaction_ids"`
	OccurredAt        time.Time       `json:"occurred_at"`
}

type PayoutReleased struct {
	BookingID      string          `json:"booking_id"`
	HostID         string          `json:"host_id"`
	Amount         decimal.Decimal `json:"amount"`
	CautionFeeHeld decimal.Decimal `json:"caution_fee_held"`
	TransactionID  string          `json:"transaction_id"`
	Automatic      bool            `json:"automatic"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

type RefundProcessed struct {
	BookingID     string          `json:"booking_id"`
	GuestID       string          `json:"guest_id"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type DisputeOpened struct {
	BookingID  string               `json:"booking_id"`
	DisputeID  string               `json:"dispute_id"`
	RaisedBy   string               `json:"raised_by"`
	Reason     models.DisputeReason `json:"reason"`
	OccurredAt time.Time            `json:"occurred_at"`
}

type DisputeResolved struct {
	BookingID     string                 `json:"booking_id"`
	DisputeID     string                 `json:"dispute_id"`
	Decision      models.DisputeDecision `json:"decision"`
	AdminID       string                 `json:"admin_id"`
	TransactionID string                 `json:"transaction_id"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// NewOutboxEvent serializes payload into an outbox row keyed by booking id.
func NewOutboxEvent(eventType, bookingID string, payload any) (*models.OutboxEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &models.OutboxEvent{
		EventType:    eventType,
		PartitionKey: bookingID,
		Payload:      string(raw),
		CreatedAt:    time.Now().UTC(),
	}, nil
}
