package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateBookingInput struct {
	ListingID    string
	GuestID      string
	GuestEmail   string
	Guests       int
	BookingDate  time.Time
	BookedHours  []int
	DurationDays int
	TotalPrice   decimal.Decimal
	ServiceFee   decimal.Decimal
	CautionFee   decimal.Decimal
}

// MaxHandshakeAttempts is how many wrong check-in codes a booking accepts before verification locks.
const MaxHandshakeAttempts = 5

type BookingService struct {
	db *gorm.DB
}

func NewBookingService(db *gorm.DB) *BookingService {
	return &BookingService{db: db}
}

// CreateListing stores a listing owned by hostID.
func (s *BookingService) CreateListing(ctx context.Context, listing *models.Listing) error {
	if listing.PricingUnit != "" && listing.PricingUnit != models.PricingHourly && listing.PricingUnit != models.PricingDaily {
		return fmt.Errorf("unknown pricing unit %q", listing.PricingUnit)
	}
	if err := repositories.NewListingRepository(s.db).Create(ctx, listing); err != nil {
		return fmt.Errorf("failed to create listing: %w", err)
	}
	return nil
}

func (s *BookingService) GetListing(ctx context.Context, id string) (*models.Listing, error) {
	listing, err := repositories.NewListingRepository(s.db).FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindListingNotFound, "", "listing "+id+" not found", nil)
		}
		return nil, fmt.Errorf("load listing: %w", err)
	}
	return listing, nil
}

// CreateBooking validates the charge breakdown against the listing and stores a pending
// booking with a fresh handshake code.
func (s *BookingService) CreateBooking(ctx context.Context, in CreateBookingInput) (*models.Booking, error) {
	listing, err := s.GetListing(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.HostID == in.GuestID {
		return nil, newError(KindInvalidState, "", "hosts cannot book their own listing", nil)
	}

	hours, err := normalizeHours(in.BookedHours)
	if err != nil {
		return nil, newError(KindInvalidState, "", err.Error(), nil)
	}
	switch listing.PricingUnit {
	case models.PricingHourly:
		if len(hours) == 0 {
			return nil, newError(KindInvalidState, "", "hourly listings require booked hours", nil)
		}
	case models.PricingDaily:
		if len(hours) > 0 {
			return nil, newError(KindInvalidState, "", "daily listings are booked by the day, not by the hour", nil)
		}
	}

	if !in.TotalPrice.IsPositive() {
		return nil, newError(KindInvalidAmount, "", "total price must be positive", nil)
	}
	if in.ServiceFee.IsNegative() || in.CautionFee.IsNegative() {
		return nil, newError(KindInvalidAmount, "", "fees must not be negative", nil)
	}
	if !wholeCents(in.TotalPrice) || !wholeCents(in.ServiceFee) || !wholeCents(in.CautionFee) {
		return nil, newError(KindInvalidAmount, "", "amounts must not have more than two decimal places", nil)
	}
	if in.ServiceFee.Add(in.CautionFee).GreaterThan(in.TotalPrice) {
		return nil, newError(KindInvalidAmount, "", "service and caution fees exceed the total price", nil)
	}

	code, err := GenerateHandshakeCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate handshake code: %w", err)
	}

	durationDays := in.DurationDays
	if durationDays < 1 {
		durationDays = 1
	}
	guests := in.Guests
	if guests < 1 {
		guests = 1
	}

	booking := &models.Booking{
		ListingID:     listing.ID,
		GuestID:       in.GuestID,
		GuestEmail:    in.GuestEmail,
		Guests:        guests,
		BookingDate:   in.BookingDate,
		BookedHours:   hours,
		DurationDays:  durationDays,
		TotalPrice:    in.TotalPrice,
		ServiceFee:    in.ServiceFee,
		CautionFee:    in.CautionFee,
		HandshakeCode: code,
	}
	if err := repositories.NewBookingRepository(s.db).Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return findBooking(ctx, repositories.NewStore(s.db), id)
}

// IsParty reports whether userID is the guest or the host of the booking.
func (s *BookingService) IsParty(ctx context.Context, booking *models.Booking, userID string) bool {
	if booking.GuestID == userID {
		return true
	}
	listing, err := repositories.NewListingRepository(s.db).FindByID(ctx, booking.ListingID)
	return err == nil && listing.HostID == userID
}

// VerifyHandshake confirms the guest's check-in. The host enters the code the guest shows on arrival.
func (s *BookingService) VerifyHandshake(ctx context.Context, bookingID, hostID, code string) (*models.Booking, error) {
	var (
		booking  *models.Booking
		mismatch bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := repositories.NewStore(tx)
		var err error
		booking, err = findBooking(ctx, store, bookingID)
		if err != nil {
			return err
		}
		listing, err := findListing(ctx, store, booking)
		if err != nil {
			return err
		}
		if listing.HostID != hostID {
			return newError(KindInvalidState, bookingID, "only the host can verify the check-in", nil)
		}
		if !booking.HeldInEscrow() {
			return newError(KindPaymentMissing, bookingID, "booking is not paid", nil)
		}
		if booking.HandshakeStatus == models.HandshakeVerified {
			return nil
		}
		if booking.HandshakeAttempts >= MaxHandshakeAttempts {
			return newError(KindInvalidState, bookingID, "handshake locked after too many failed attempts", nil)
		}
		if booking.HandshakeCode == "" || booking.HandshakeCode != code {
			// The failed attempt must be committed, so the error is returned after the transaction.
			booking.HandshakeAttempts++
			if err := store.Bookings.Save(ctx, booking); err != nil {
				return fmt.Errorf("failed to record handshake attempt: %w", err)
			}
			mismatch = true
			return nil
		}

		now := time.Now()
		booking.HandshakeStatus = models.HandshakeVerified
		booking.HandshakeVerifiedAt = &now
		if err := store.Bookings.Save(ctx, booking); err != nil {
			return fmt.Errorf("failed to verify handshake: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if mismatch {
		return nil, newError(KindInvalidState, bookingID,
			fmt.Sprintf("invalid handshake code (%d of %d attempts used)", booking.HandshakeAttempts, MaxHandshakeAttempts), nil)
	}
	return booking, nil
}

// GenerateHandshakeCode generates a 6-digit check-in code
func GenerateHandshakeCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeHours(hours []int) ([]int, error) {
	if len(hours) == 0 {
		return nil, nil
	}
	seen := make(map[int]bool, len(hours))
	out := make([]int, 0, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("booked hour %d out of range 0-23", h)
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		out = append(out, h)
	}
	sort.Ints(out)
	return out, nil
}
