package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	EventPaymentRecorded = "booking.payment_recorded"
	EventPayoutReleased  = "escrow.payout_released"
	EventRefundProcessed = "escrow.refund_processed"
	EventDisputeOpened   = "dispute.opened"
	EventDisputeResolved = "dispute.resolved"
)

// OutboxEvent is written in the same database transaction as the ledger change it describes.
type OutboxEvent struct {
	ID           string     `gorm:"primaryKey;type:varchar(36)"`
	EventType    string     `gorm:"type:varchar(100);not null;index"`
	PartitionKey string     `gorm:"type:varchar(64);not null"`
	Payload      string     `gorm:"type:text;not null"`
	RetryCount   int        `gorm:"not null;default:0"`
	LastError    string     `gorm:"type:text"`
	LastErrorAt  *time.Time
	PublishedAt  *time.Time `gorm:"index"`
	CreatedAt    time.Time
}

func (OutboxEvent) TableName() string {
	return "outbox_events"
}

func (e *OutboxEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
