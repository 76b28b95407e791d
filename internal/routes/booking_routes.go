package routes

import (
	"github.com/gofiber/fiber/v2"

	"StayEscrow/internal/handlers"
	"StayEscrow/internal/middleware"
)

func SetupBookingRoutes(app *fiber.App, jwtSecret string, listingHandler *handlers.ListingHandler, bookingHandler *handlers.BookingHandler) {
	listings := app.Group("/api/listings", middleware.Protected(jwtSecret))
	listings.Post("/", listingHandler.CreateListing)
	listings.Get("/:id", listingHandler.GetListing)

	bookings := app.Group("/api/bookings", middleware.Protected(jwtSecret))
	bookings.Post("/", bookingHandler.CreateBooking)
	bookings.Get("/:id", bookingHandler.GetBooking)

	// Guest pays, funds go into escrow
	bookings.Post("/:id/pay", bookingHandler.PayBooking)

	// Host confirms the guest's check-in code
	bookings.Post("/:id/handshake", bookingHandler.VerifyHandshake)
}
