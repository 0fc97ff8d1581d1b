package controllers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/lib"
	"github.com/theleywin/talentnest-graph/src/middleware"
	"github.com/theleywin/talentnest-graph/src/notifications"
)

type NotificationController struct {
	notifications *notifications.Service
	log           *zap.Logger
}

func NewNotificationController(svc *notifications.Service, log *zap.Logger) *NotificationController {
	return &NotificationController{notifications: svc, log: log}
}

// GetUserNotifications returns a page of the authenticated user's notifications, most recent first
func (ctl *NotificationController) GetUserNotifications(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", notifications.DefaultPageSize)
	offset := c.QueryInt("offset", 0)

	list, err := ctl.notifications.List(c.UserContext(), middleware.UserID(c), limit, offset)
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(list)
}

// GetUnreadCount returns how many notifications the authenticated user has not read
func (ctl *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	count, err := ctl.notifications.UnreadCount(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"unread": count})
}

// MarkNotificationAsRead marks a notification as read; marking it again is a no-op
func (ctl *NotificationController) MarkNotificationAsRead(c *fiber.Ctx) error {
	if err := ctl.notifications.MarkRead(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Notification marked as read"))
}

// MarkAllNotificationsAsRead marks every unread notification of the authenticated user as read
func (ctl *NotificationController) MarkAllNotificationsAsRead(c *fiber.Ctx) error {
	updated, err := ctl.notifications.MarkAllRead(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Notifications marked as read",
		"updated": updated,
	})
}

// DeleteNotification deletes a notification owned by the authenticated user
func (ctl *NotificationController) DeleteNotification(c *fiber.Ctx) error {
	if err := ctl.notifications.Delete(c.UserContext(), middleware.UserID(c), c.Params("id")); err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(lib.MessageResponse("Notification deleted successfully"))
}
