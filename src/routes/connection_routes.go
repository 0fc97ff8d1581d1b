package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/theleywin/talentnest-graph/src/controllers"
)

// ConnectionRoutes sets up connection routes for requests, responses, removal, status, listings and history
func ConnectionRoutes(app *fiber.App, protect fiber.Handler, ctl *controllers.ConnectionController) {
	connection := app.Group("/api/v1/connections", protect)

	connection.Post("/request/:userId", ctl.SendConnectionRequest)
	connection.Put("/accept/:userId", ctl.AcceptConnectionRequest)
	connection.Put("/reject/:userId", ctl.RejectConnectionRequest)
	connection.Delete("/request/:userId", ctl.CancelConnectionRequest)
	connection.Get("/requests", ctl.GetConnectionRequests)
	connection.Get("/requests/sent", ctl.GetSentConnectionRequests)
	connection.Get("/history", ctl.GetConnectionHistory)
	connection.Get("/status/:userId", ctl.GetConnectionStatus)
	connection.Get("/", ctl.GetUserConnections)
	connection.Delete("/:userId", ctl.RemoveConnection)
}
