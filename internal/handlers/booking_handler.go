package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"StayEscrow/internal/middleware"
	"StayEscrow/internal/models"
	"StayEscrow/internal/services"
)

type CreateBookingRequest struct {
	ListingID    string          `json:"listing_id" validate:"required"`
	Guests       int             `json:"guests" validate:"omitempty,min=1"`
	BookingDate  string          `json:"booking_date" validate:"required,datetime=2006-01-02"`
	BookedHours  []int           `json:"booked_hours" validate:"omitempty,dive,min=0,max=23"`
	DurationDays int             `json:"duration_days" validate:"omitempty,min=1"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	ServiceFee   decimal.Decimal `json:"service_fee"`
	CautionFee   decimal.Decimal `json:"caution_fee"`
}

type VerifyHandshakeRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type BookingHandler struct {
	bookings   *services.BookingService
	settlement *services.SettlementService
	loc        *time.Location
}

// NewBookingHandler parses booking dates in loc; nil means UTC.
func NewBookingHandler(bookings *services.BookingService, settlement *services.SettlementService, loc *time.Location) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingHandler{bookings: bookings, settlement: settlement, loc: loc}
}

// CreateBooking books a listing for the authenticated guest. The check-in code is returned once here
// and afterwards only to the guest.
func (h *BookingHandler) CreateBooking(c *fiber.Ctx) error {
	req := new(CreateBookingRequest)
	if err := bindJSON(c, req); err != nil {
		return respondError(c, err)
	}

	date, err := time.ParseInLocation("2006-01-02", req.BookingDate, h.loc)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "booking_date must be YYYY-MM-DD",
		})
	}

	guestEmail, _ := c.Locals("email").(string)
	booking, err := h.bookings.CreateBooking(c.UserContext(), services.CreateBookingInput{
		ListingID:    req.ListingID,
		GuestID:      middleware.UserID(c),
		GuestEmail:   guestEmail,
		Guests:       req.Guests,
		BookingDate:  date,
		BookedHours:  req.BookedHours,
		DurationDays: req.DurationDays,
		TotalPrice:   req.TotalPrice,
		ServiceFee:   req.ServiceFee,
		CautionFee:   req.CautionFee,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":        "Booking created successfully",
		"booking":        booking,
		"handshake_code": booking.HandshakeCode,
	})
}

// GetBooking returns a booking to its guest, its host or an admin
func (h *BookingHandler) GetBooking(c *fiber.Ctx) error {
	booking, err := h.bookings.GetBooking(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}

	userID := middleware.UserID(c)
	if !middleware.IsAdmin(c) && !h.bookings.IsParty(c.UserContext(), booking, userID) {
		return forbidden(c, "You don't have access to this booking")
	}

	resp := fiber.Map{
		"booking": booking,
	}
	if booking.GuestID == userID && booking.HandshakeStatus == models.HandshakePending {
		resp["handshake_code"] = booking.HandshakeCode
	}
	return c.JSON(resp)
}

// PayBooking confirms the guest's payment and moves the funds into escrow
func (h *BookingHandler) PayBooking(c *fiber.Ctx) error {
	booking, err := h.bookings.GetBooking(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	if booking.GuestID != middleware.UserID(c) {
		return forbidden(c, "Only the guest can pay for this booking")
	}

	booking, err = h.settlement.ConfirmPayment(c.UserContext(), booking.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Payment received and held in escrow",
		"booking": booking,
	})
}

// VerifyHandshake lets the host confirm the guest's check-in code
func (h *BookingHandler) VerifyHandshake(c *fiber.Ctx) error {
	req := new(VerifyHandshakeRequest)
	if err := bindJSON(c, req); err != nil {
		return respondError(c, err)
	}

	booking, err := h.bookings.VerifyHandshake(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Code)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Check-in verified",
		"booking": booking,
	})
}
