package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string
type PaymentStatus string
type HandshakeStatus string
type BookingDisputeStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

const (
	PaymentPending PaymentStatus = "pending"
	// PaymentEscrow means the guest has paid and the funds are held by the platform.
	PaymentEscrow   PaymentStatus = "escrow"
	PaymentReleased PaymentStatus = "released"
	PaymentRefunded PaymentStatus = "refunded"
)

const (
	HandshakePending  HandshakeStatus = "pending"
	HandshakeVerified HandshakeStatus = "verified"
)

const (
	BookingDisputeNone     BookingDisputeStatus = "none"
	BookingDisputeOpen     BookingDisputeStatus = "open"
	BookingDisputeResolved BookingDisputeStatus = "resolved"
)

type Booking struct {
	ID           string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ListingID    string          `gorm:"type:varchar(36);not null;index" json:"listing_id"`
	GuestID      string          `gorm:"type:varchar(64);not null;index" json:"guest_id"`
	GuestEmail   string          `gorm:"type:varchar(255)" json:"guest_email,omitempty"`
	Guests       int             `gorm:"default:1" json:"guests"`
	BookingDate  time.Time       `gorm:"not null" json:"booking_date"`
	BookedHours  []int           `gorm:"type:text;serializer:json" json:"booked_hours,omitempty"`
	DurationDays int             `gorm:"default:1" json:"duration_days"`
	TotalPrice   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_price"`
	ServiceFee   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"service_fee"`
	CautionFee   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:0" json:"caution_fee"`

	Status              BookingStatus        `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	PaymentStatus       PaymentStatus        `gorm:"type:varchar(20);not null;default:'pending';index" json:"payment_status"`
	HandshakeStatus     HandshakeStatus      `gorm:"type:varchar(20);not null;default:'pending'" json:"handshake_status"`
	HandshakeCode       string               `gorm:"type:varchar(6)" json:"-"`
	HandshakeVerifiedAt *time.Time           `json:"handshake_verified_at,omitempty"`
	HandshakeAttempts   int                  `gorm:"not null;default:0" json:"-"`
	DisputeStatus       BookingDisputeStatus `gorm:"type:varchar(20);not null;default:'none'" json:"dispute_status"`
	EscrowReleaseDate   *time.Time           `json:"escrow_release_date,omitempty"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// BeforeCreate fills in the identifier and the initial lifecycle states.
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.Status == "" {
		b.Status = BookingPending
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentPending
	}
	if b.HandshakeStatus == "" {
		b.HandshakeStatus = HandshakePending
	}
	if b.DisputeStatus == "" {
		b.DisputeStatus = BookingDisputeNone
	}
	return nil
}

// HeldInEscrow reports whether the guest's funds are currently held by the platform.
func (b *Booking) HeldInEscrow() bool {
	return b.PaymentStatus == PaymentEscrow
}
