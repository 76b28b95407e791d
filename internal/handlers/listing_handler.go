package handlers

import (
	"github.com/gofiber/fiber/v2"

	"StayEscrow/internal/middleware"
	"StayEscrow/internal/models"
	"StayEscrow/internal/services"
)

type CreateListingRequest struct {
	Title       string `json:"title" validate:"required,max=255"`
	PricingUnit string `json:"pricing_unit" validate:"omitempty,oneof=hourly daily"`
	HostEmail   string `json:"host_email" validate:"omitempty,email"`
}

type ListingHandler struct {
	bookings *services.BookingService
}

func NewListingHandler(bookings *services.BookingService) *ListingHandler {
	return &ListingHandler{bookings: bookings}
}

// CreateListing registers a listing hosted by the authenticated user
func (h *ListingHandler) CreateListing(c *fiber.Ctx) error {
	req := new(CreateListingRequest)
	if err := bindJSON(c, req); err != nil {
		return respondError(c, err)
	}

	hostEmail := req.HostEmail
	if hostEmail == "" {
		hostEmail, _ = c.Locals("email").(string)
	}

	listing := &models.Listing{
		HostID:      middleware.UserID(c),
		HostEmail:   hostEmail,
		Title:       req.Title,
		PricingUnit: models.PricingUnit(req.PricingUnit),
	}
	if err := h.bookings.CreateListing(c.UserContext(), listing); err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Listing created successfully",
		"listing": listing,
	})
}

func (h *ListingHandler) GetListing(c *fiber.Ctx) error {
	listing, err := h.bookings.GetListing(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"listing": listing,
	})
}
