package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionKind string
type TransactionStatus string

const (
	TransactionGuestPayment TransactionKind = "guest_payment"
	TransactionServiceFee   TransactionKind = "service_fee"
	TransactionHostPayout   TransactionKind = "host_payout"
	TransactionRefund       TransactionKind = "refund"
)

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is a ledger record. Rows are written once and never updated or deleted.
type Transaction struct {
	ID                string              `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BookingID         string              `gorm:"type:varchar(36);not null;index" json:"booking_id"`
	Kind              TransactionKind     `gorm:"type:varchar(20);not null;index" json:"kind"`
	Amount            decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"amount"`
	Status            TransactionStatus   `gorm:"type:varchar(20);not null;default:'completed'" json:"status"`
	ExternalReference string              `gorm:"uniqueIndex;not null" json:"external_reference"`
	IdempotencyKey    string              `gorm:"uniqueIndex;not null" json:"-"`
	FromUserID        *string             `gorm:"type:varchar(64);index" json:"from_user_id,omitempty"`
	ToUserID          *string             `gorm:"type:varchar(64);index" json:"to_user_id,omitempty"`
	Metadata          TransactionMetadata `gorm:"type:text;serializer:json" json:"metadata"`
	CreatedAt         time.Time           `json:"created_at"`
}

func (Transaction) TableName() string {
	return "ledger_transactions"
}

// BeforeCreate assigns the primary key when the caller did not.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = TransactionCompleted
	}
	return t.Metadata.Validate(t.Kind)
}

// IdempotencyKeyFor is the ledger-level uniqueness key: one row per booking and kind.
func IdempotencyKeyFor(bookingID string, kind TransactionKind) string {
	return bookingID + ":" + string(kind)
}

// TransactionMetadata carries exactly one variant, selected by the transaction kind.
type TransactionMetadata struct {
	Payment *PaymentMetadata `json:"payment,omitempty"`
	Payout  *PayoutMetadata  `json:"payout,omitempty"`
	Refund  *RefundMetadata  `json:"refund,omitempty"`
}

// PaymentMetadata is attached to guest_payment and service_fee rows.
type PaymentMetadata struct {
	ListingID string `json:"listing_id"`
	Guests    int    `json:"guests,omitempty"`
}

// PayoutMetadata is attached to host_payout rows.
type PayoutMetadata struct {
	ListingID      string          `json:"listing_id"`
	CautionFeeHeld decimal.Decimal `json:"caution_fee_held"`
	AdminNotes     string          `json:"admin_notes,omitempty"`
}

// RefundMetadata is attached to refund rows.
type RefundMetadata struct {
	OriginalAmount decimal.Decimal `json:"original_amount"`
	AdminNotes     string          `json:"admin_notes,omitempty"`
}

func (m TransactionMetadata) Validate(kind TransactionKind) error {
	set := 0
	for _, present := range []bool{m.Payment != nil, m.Payout != nil, m.Refund != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("transaction metadata must carry exactly one variant, got %d", set)
	}
	switch kind {
	case TransactionGuestPayment, TransactionServiceFee:
		if m.Payment == nil {
			return fmt.Errorf("%s transaction requires payment metadata", kind)
		}
	case TransactionHostPayout:
		if m.Payout == nil {
			return fmt.Errorf("%s transaction requires payout metadata", kind)
		}
	case TransactionRefund:
		if m.Refund == nil {
			return fmt.Errorf("%s transaction requires refund metadata", kind)
		}
	default:
		return fmt.Errorf("unknown transaction kind %q", kind)
	}
	return nil
}
