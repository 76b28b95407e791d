package routes

import (
	"github.com/gofiber/fiber/v2"

	"StayEscrow/internal/handlers"
	"StayEscrow/internal/middleware"
)

func SetupDisputeRoutes(app *fiber.App, jwtSecret string, disputeHandler *handlers.DisputeHandler) {
	dispute := app.Group("/api/disputes", middleware.Protected(jwtSecret))

	// Raise a dispute
	dispute.Post("/raise", disputeHandler.RaiseDispute)

	// Upload evidence file
	dispute.Post("/:bookingId/evidence", disputeHandler.UploadDisputeEvidence)

	// Latest dispute of a booking
	dispute.Get("/:bookingId", disputeHandler.GetDispute)
}
