package routes

import (
	"github.com/gofiber/fiber/v2"

	"StayEscrow/internal/handlers"
	"StayEscrow/internal/middleware"
)

func SetupNotificationRoutes(app *fiber.App, jwtSecret string, notificationHandler *handlers.NotificationHandler) {
	// Notification routes (all require authentication)
	notifications := app.Group("/api/notifications", middleware.Protected(jwtSecret))

	// Get all notifications
	notifications.Get("/", notificationHandler.GetNotifications)

	// Get unread count
	notifications.Get("/unread-count", notificationHandler.GetUnreadCount)

	// Mark all notifications as read
	notifications.Put("/read-all", notificationHandler.MarkAllAsRead)

	// Mark specific notification as read
	notifications.Put("/:id/read", notificationHandler.MarkAsRead)

	// Delete all read notifications; registered before /:id so it is not captured as an id
	notifications.Delete("/read-all", notificationHandler.DeleteAllRead)

	// Delete specific notification
	notifications.Delete("/:id", notificationHandler.DeleteNotification)
}
