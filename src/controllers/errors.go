package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/connections"
	"github.com/theleywin/talentnest-graph/src/lib"
	"github.com/theleywin/talentnest-graph/src/notifications"
)

// respondError translates a domain error into its HTTP status and stable code.
// Anything unrecognised is logged and reported as a 500.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, connections.ErrSelfReference):
		return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse("self_reference", "You can't target yourself"))
	case errors.Is(err, connections.ErrInvalidUser):
		return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse("invalid_user", "Invalid user ID"))
	case errors.Is(err, connections.ErrAlreadyConnected):
		return c.Status(fiber.StatusConflict).JSON(lib.ErrorResponse("already_connected", "You are already connected with this user"))
	case errors.Is(err, connections.ErrDuplicateRequest):
		return c.Status(fiber.StatusConflict).JSON(lib.ErrorResponse("duplicate_request", "A connection request already exists"))
	case errors.Is(err, connections.ErrNoSuchRequest):
		return c.Status(fiber.StatusNotFound).JSON(lib.ErrorResponse("no_such_request", "Connection request not found"))
	case errors.Is(err, connections.ErrConflict):
		body := lib.ErrorResponse("conflict", "Connection state changed, reload and try again")
		body["retry"] = true
		return c.Status(fiber.StatusConflict).JSON(body)
	case errors.Is(err, notifications.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(lib.ErrorResponse("not_found", "Notification not found"))
	}

	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(lib.ErrorResponse("internal_error", "Server error"))
}
