package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"StayEscrow/internal/middleware"
	"StayEscrow/internal/models"
	"StayEscrow/internal/repositories"
	"StayEscrow/internal/services"
)

// Sweeper runs one auto-release pass and reports how many bookings were paid out.
type Sweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

type ResolveDisputeRequest struct {
	Decision   string `json:"decision" validate:"required,oneof=refund_guest release_to_host"`
	AdminNotes string `json:"admin_notes" validate:"max=2000"`
}

type CancelBookingRequest struct {
	RefundAmount *decimal.Decimal `json:"refund_amount"`
}

type AdminHandler struct {
	settlement   *services.SettlementService
	disputes     *services.DisputeService
	financials   *services.FinancialsService
	transactions repositories.TransactionRepository
	sweeper      Sweeper
}

func NewAdminHandler(
	settlement *services.SettlementService,
	disputes *services.DisputeService,
	financials *services.FinancialsService,
	transactions repositories.TransactionRepository,
	sweeper Sweeper,
) *AdminHandler {
	return &AdminHandler{
		settlement:   settlement,
		disputes:     disputes,
		financials:   financials,
		transactions: transactions,
		sweeper:      sweeper,
	}
}

// GetFinancials reports platform-wide escrow totals derived from the ledger
func (h *AdminHandler) GetFinancials(c *fiber.Ctx) error {
	f, err := h.financials.PlatformFinancials(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute financials",
		})
	}

	return c.JSON(fiber.Map{
		"financials": f,
		"consistent": f.Consistent(),
	})
}

// RunEscrowSweep releases every booking whose escrow period has ended
func (h *AdminHandler) RunEscrowSweep(c *fiber.Ctx) error {
	released, err := h.sweeper.RunOnce(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":          err.Error(),
			"released_count": released,
		})
	}

	return c.JSON(fiber.Map{
		"message":        "Escrow sweep completed",
		"released_count": released,
	})
}

// GetAllTransactions lists ledger entries, optionally filtered by booking and kind
func (h *AdminHandler) GetAllTransactions(c *fiber.Ctx) error {
	page, limit, offset := pageParams(c)

	transactions, total, err := h.transactions.List(c.UserContext(), repositories.TransactionFilter{
		BookingID: c.Query("booking_id"),
		Kind:      models.TransactionKind(c.Query("kind")),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve transactions",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// GetBookingTransactions lists a booking's ledger entries, or the single entry of ?kind=
func (h *AdminHandler) GetBookingTransactions(c *fiber.Ctx) error {
	if kind := c.Query("kind"); kind != "" {
		tx, err := h.transactions.FindByBookingAndKind(c.UserContext(), c.Params("id"), models.TransactionKind(kind))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Transaction not found",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to retrieve transaction",
			})
		}
		return c.JSON(fiber.Map{
			"transaction": tx,
		})
	}

	transactions, err := h.transactions.ListByBooking(c.UserContext(), c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve transactions",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetAllDisputes retrieves all disputes with filters
func (h *AdminHandler) GetAllDisputes(c *fiber.Ctx) error {
	page, limit, offset := pageParams(c)

	disputes, total, err := h.disputes.ListDisputes(c.UserContext(), models.DisputeStatus(c.Query("status")), limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve disputes",
		})
	}

	return c.JSON(fiber.Map{
		"disputes": disputes,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// ResolveDispute settles a booking's dispute by refunding the guest or paying the host
func (h *AdminHandler) ResolveDispute(c *fiber.Ctx) error {
	req := new(ResolveDisputeRequest)
	if err := bindJSON(c, req); err != nil {
		return respondError(c, err)
	}

	dispute, err := h.disputes.ResolveDispute(c.UserContext(), c.Params("bookingId"),
		models.DisputeDecision(req.Decision), middleware.UserID(c), req.AdminNotes)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Dispute resolved successfully",
		"dispute": dispute,
	})
}

// ReleaseBooking pays the host ahead of the scheduled release
func (h *AdminHandler) ReleaseBooking(c *fiber.Ctx) error {
	payout, err := h.settlement.ReleaseBooking(c.UserContext(), c.Params("id"), nil)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"message":     "Funds released to host",
		"transaction": payout,
	})
}

// CancelBooking cancels a booking, refunding the guest when funds are held in escrow
func (h *AdminHandler) CancelBooking(c *fiber.Ctx) error {
	req := new(CancelBookingRequest)
	if len(c.Body()) > 0 {
		if err := bindJSON(c, req); err != nil {
			return respondError(c, err)
		}
	}

	booking, refund, err := h.settlement.CancelBooking(c.UserContext(), c.Params("id"), req.RefundAmount)
	if err != nil {
		return respondError(c, err)
	}

	resp := fiber.Map{
		"message": "Booking cancelled",
		"booking": booking,
	}
	if refund != nil {
		resp["transaction"] = refund
	}
	return c.JSON(resp)
}
