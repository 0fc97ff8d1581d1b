package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/connections"
	"github.com/theleywin/talentnest-graph/src/events"
	"github.com/theleywin/talentnest-graph/src/lib"
	"github.com/theleywin/talentnest-graph/src/middleware"
	"github.com/theleywin/talentnest-graph/src/models"
)

type ConnectionController struct {
	graph  *connections.Graph
	events *events.Log
	log    *zap.Logger
}

func NewConnectionController(graph *connections.Graph, evlog *events.Log, log *zap.Logger) *ConnectionController {
	return &ConnectionController{graph: graph, events: evlog, log: log}
}

// connectionView is a connection record as seen by the authenticated user
type connectionView struct {
	ID          string     `json:"_id"`
	UserID      string     `json:"userId"`
	Status      string     `json:"status"`
	RequestedBy string     `json:"requestedBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	RespondedAt *time.Time `json:"respondedAt,omitempty"`
}

func viewsFor(viewer string, conns []models.Connection) []connectionView {
	out := make([]connectionView, 0, len(conns))
	for _, conn := range conns {
		out = append(out, connectionView{
			ID:          conn.ID,
			UserID:      conn.Other(viewer),
			Status:      string(conn.State),
			RequestedBy: conn.RequestedBy,
			CreatedAt:   conn.CreatedAt,
			RespondedAt: conn.RespondedAt,
		})
	}
	return out
}

// SendConnectionRequest sends a connection request from the authenticated user to another user
func (ctl *ConnectionController) SendConnectionRequest(c *fiber.Ctx) error {
	state, err := ctl.graph.Request(c.UserContext(), middleware.UserID(c), c.Params("userId"))
	if err != nil {
		return respondError(c, ctl.log, err)
	}

	if state == models.RelationConnected {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Connection accepted successfully",
			"state":   state,
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Connection request sent successfully",
		"state":   state,
	})
}

// AcceptConnectionRequest accepts the pending request sent by :userId
func (ctl *ConnectionController) AcceptConnectionRequest(c *fiber.Ctx) error {
	state, err := ctl.graph.Accept(c.UserContext(), middleware.UserID(c), c.Params("userId"))
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Connection accepted successfully",
		"state":   state,
	})
}

// RejectConnectionRequest rejects the pending request sent by :userId
func (ctl *ConnectionController) RejectConnectionRequest(c *fiber.Ctx) error {
	state, err := ctl.graph.Reject(c.UserContext(), middleware.UserID(c), c.Params("userId"))
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Connection request rejected",
		"state":   state,
	})
}

// CancelConnectionRequest withdraws the authenticated user's pending request to :userId
func (ctl *ConnectionController) CancelConnectionRequest(c *fiber.Ctx) error {
	state, err := ctl.graph.Cancel(c.UserContext(), middleware.UserID(c), c.Params("userId"))
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Connection request cancelled",
		"state":   state,
	})
}

// RemoveConnection removes a connection between the authenticated user and another user
func (ctl *ConnectionController) RemoveConnection(c *fiber.Ctx) error {
	state, err := ctl.graph.Remove(c.UserContext(), middleware.UserID(c), c.Params("userId"))
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Connection removed successfully",
		"state":   state,
	})
}

// GetConnectionStatus returns the connection status between the authenticated user and another user
func (ctl *ConnectionController) GetConnectionStatus(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conn, err := ctl.graph.Lookup(c.UserContext(), userID, c.Params("userId"))
	if err != nil {
		return respondError(c, ctl.log, err)
	}

	state := models.RelationOf(conn, userID)
	body := fiber.Map{
		"status": state.Status(),
		"state":  state,
	}
	if state == models.RelationPendingReceived {
		body["requestId"] = conn.ID
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// GetUserConnections returns every user connected to the authenticated user, most recent first
func (ctl *ConnectionController) GetUserConnections(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conns, err := ctl.graph.ListConnections(c.UserContext(), userID)
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(viewsFor(userID, conns))
}

// GetConnectionRequests returns the pending requests sent to the authenticated user
func (ctl *ConnectionController) GetConnectionRequests(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conns, err := ctl.graph.ListIncoming(c.UserContext(), userID)
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(viewsFor(userID, conns))
}

// GetSentConnectionRequests returns the pending requests the authenticated user has sent
func (ctl *ConnectionController) GetSentConnectionRequests(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	conns, err := ctl.graph.ListOutgoing(c.UserContext(), userID)
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(viewsFor(userID, conns))
}

// GetConnectionHistory returns the authenticated user's connect and
// disconnect events, optionally bounded by RFC3339 since/until parameters
func (ctl *ConnectionController) GetConnectionHistory(c *fiber.Ctx) error {
	var w events.Window
	for key, dst := range map[string]*time.Time{"since": &w.Since, "until": &w.Until} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(lib.ErrorResponse("invalid_window", "Invalid "+key+" timestamp, expected RFC3339"))
		}
		*dst = t.UTC()
	}

	history, err := events.Collect(ctl.events.ListFor(c.UserContext(), middleware.UserID(c), w))
	if err != nil {
		return respondError(c, ctl.log, err)
	}
	return c.Status(fiber.StatusOK).JSON(history)
}
