package handlers

import (
	"github.com/gofiber/fiber/v2"

	"StayEscrow/internal/middleware"
	"StayEscrow/internal/models"
	"StayEscrow/internal/services"
)

type RaiseDisputeRequest struct {
	BookingID   string `json:"booking_id" validate:"required"`
	Reason      string `json:"reason" validate:"required,oneof=damage not_as_described access_denied safety other"`
	Description string `json:"description" validate:"required,max=2000"`
}

type DisputeHandler struct {
	disputes *services.DisputeService
}

func NewDisputeHandler(disputes *services.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// RaiseDispute allows the guest or host to dispute a booking while funds are in escrow
func (h *DisputeHandler) RaiseDispute(c *fiber.Ctx) error {
	req := new(RaiseDisputeRequest)
	if err := bindJSON(c, req); err != nil {
		return respondError(c, err)
	}

	dispute, err := h.disputes.OpenDispute(c.UserContext(), req.BookingID, middleware.UserID(c),
		models.DisputeReason(req.Reason), req.Description)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Dispute raised successfully. Payout is on hold until an admin reviews it.",
		"dispute": dispute,
	})
}

// UploadDisputeEvidence attaches a file to the open dispute of a booking
func (h *DisputeHandler) UploadDisputeEvidence(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No file uploaded",
		})
	}

	dispute, err := h.disputes.AttachEvidence(c.UserContext(), c.Params("bookingId"), middleware.UserID(c), file)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Evidence uploaded successfully",
		"dispute": dispute,
	})
}

func (h *DisputeHandler) GetDispute(c *fiber.Ctx) error {
	dispute, err := h.disputes.GetDispute(c.UserContext(), c.Params("bookingId"), middleware.UserID(c), middleware.IsAdmin(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"dispute": dispute,
	})
}
