package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/talentnest-graph/src/controllers"
)

// NotificationRoutes sets up notification routes for listing, counting, marking as read, and deleting notifications
func NotificationRoutes(app *fiber.App, protect fiber.Handler, ctl *controllers.NotificationController) {
	notification := app.Group("/api/v1/notifications", protect)

	notification.Get("/", ctl.GetUserNotifications)
	notification.Get("/unread-count", ctl.GetUnreadCount)
	notification.Put("/read-all", ctl.MarkAllNotificationsAsRead)
	notification.Put("/:id/read", ctl.MarkNotificationAsRead)
	notification.Delete("/:id", ctl.DeleteNotification)
}
