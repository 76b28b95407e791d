package database

import (
	"fmt"
	"log"

	"StayEscrow/internal/models"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	log.Printf("Attempting to migrate database models: Listing, Booking, Transaction, Dispute, Notification, OutboxEvent")
	err := db.AutoMigrate(
		&models.Listing{},
		&models.Booking{},
		&models.Transaction{},
		&models.Dispute{},
		&models.Notification{},
		&models.OutboxEvent{},
	)

	if err != nil {
		log.Printf("Error migrating database: %v", err)
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	log.Println("Database migration completed successfully")
	return nil
}
