package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/talentnest-graph/src/delivery"
)

// HealthRoutes exposes liveness together with this node's live push channel count
func HealthRoutes(app *fiber.App, nodeID string, hub *delivery.Hub) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status":   "ok",
			"node":     nodeID,
			"channels": hub.Count(),
		})
	})
}
