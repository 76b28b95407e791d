package routes

import (
	"github.com/gofiber/fiber/v2"

	"StayEscrow/internal/handlers"
	"StayEscrow/internal/middleware"
)

func SetupAdminRoutes(app *fiber.App, jwtSecret string, adminHandler *handlers.AdminHandler) {
	admin := app.Group("/api/admin", middleware.Protected(jwtSecret), middleware.AdminOnly())

	// Dashboard
	admin.Get("/financials", adminHandler.GetFinancials)

	// Escrow
	admin.Post("/escrow/sweep", adminHandler.RunEscrowSweep)
	admin.Post("/bookings/:id/release", adminHandler.ReleaseBooking)
	admin.Post("/bookings/:id/cancel", adminHandler.CancelBooking)

	// Ledger
	admin.Get("/transactions", adminHandler.GetAllTransactions)
	admin.Get("/bookings/:id/transactions", adminHandler.GetBookingTransactions)

	// Disputes
	admin.Get("/disputes", adminHandler.GetAllDisputes)
	admin.Post("/disputes/:bookingId/resolve", adminHandler.ResolveDispute)
}
