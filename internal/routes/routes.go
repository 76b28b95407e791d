package routes

import (
	"github.com/gofiber/fiber/v2"

	"StayEscrow/internal/handlers"
)

// Handlers bundles every HTTP handler the API exposes.
type Handlers struct {
	Listings      *handlers.ListingHandler
	Bookings      *handlers.BookingHandler
	Disputes      *handlers.DisputeHandler
	Notifications *handlers.NotificationHandler
	Admin         *handlers.AdminHandler
}

func SetupRoutes(app *fiber.App, serviceName, jwtSecret string, h Handlers) {
	// Health check routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to " + serviceName,
			"status":  "running",
		})
	})

	app.Get("/api/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": serviceName,
		})
	})

	SetupBookingRoutes(app, jwtSecret, h.Listings, h.Bookings)
	SetupDisputeRoutes(app, jwtSecret, h.Disputes)
	SetupNotificationRoutes(app, jwtSecret, h.Notifications)
	SetupAdminRoutes(app, jwtSecret, h.Admin)
}
