package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DisputeStatus string
type DisputeReason string
type DisputeDecision string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
)

const (
	ReasonDamage         DisputeReason = "damage"
	ReasonNotAsDescribed DisputeReason = "not_as_described"
	ReasonAccessDenied   DisputeReason = "access_denied"
	ReasonSafety         DisputeReason = "safety"
	ReasonOther          DisputeReason = "other"
)

const (
	DecisionRefundGuest   DisputeDecision = "refund_guest"
	DecisionReleaseToHost DisputeDecision = "release_to_host"
)

type Dispute struct {
	ID               string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BookingID        string          `gorm:"type:varchar(36);not null;index" json:"booking_id"`
	RaisedBy         string          `gorm:"type:varchar(64);not null;index" json:"raised_by"`
	Reason           DisputeReason   `gorm:"type:varchar(50);not null" json:"reason"`
	Description      string          `gorm:"type:text;not null" json:"description"`
	EvidenceURL      string          `gorm:"type:text" json:"evidence_url,omitempty"`
	EvidencePublicID string          `gorm:"type:text" json:"evidence_public_id,omitempty"`
	Status           DisputeStatus   `gorm:"type:varchar(20);not null;default:'open'" json:"status"`
	Decision         DisputeDecision `gorm:"type:varchar(20)" json:"decision,omitempty"`
	Resolution       string          `gorm:"type:text" json:"resolution,omitempty"`
	ResolvedBy       *string         `gorm:"type:varchar(64);index" json:"resolved_by,omitempty"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

func (Dispute) TableName() string {
	return "disputes"
}

func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = DisputeOpen
	}
	return nil
}

// ValidDecision reports whether the decision is one the resolver understands.
func ValidDecision(d DisputeDecision) bool {
	return d == DecisionRefundGuest || d == DecisionReleaseToHost
}
