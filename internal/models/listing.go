package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PricingUnit string

const (
	PricingHourly PricingUnit = "hourly"
	PricingDaily  PricingUnit = "daily"
)

type Listing struct {
	ID          string      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	HostID      string      `gorm:"type:varchar(64);not null;index" json:"host_id"`
	HostEmail   string      `gorm:"type:varchar(255)" json:"host_email,omitempty"`
	Title       string      `gorm:"type:varchar(255);not null" json:"title"`
	PricingUnit PricingUnit `gorm:"type:varchar(10);not null;default:'daily'" json:"pricing_unit"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (Listing) TableName() string {
	return "listings"
}

func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.PricingUnit == "" {
		l.PricingUnit = PricingDaily
	}
	return nil
}
