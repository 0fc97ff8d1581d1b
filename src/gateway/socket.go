// Package gateway hosts the websocket endpoint through which clients hold
// their live push channels.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/delivery"
	"github.com/theleywin/talentnest-graph/src/lib"
	"github.com/theleywin/talentnest-graph/src/notifications"
)

const (
	readTimeout     = 60 * time.Second
	inflightTimeout = 5 * time.Second
	maxFrameSize    = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the token is the credential; browsers connect from the frontend origin
	CheckOrigin: func(r *http.Request) bool { return true },
}

type SocketController struct {
	hub           *delivery.Hub
	notifications *notifications.Service
	secret        string
	buffer        int
	writeWait     time.Duration
	log           *zap.Logger

	// beforeRegister runs between the hello frame and Register
	beforeRegister func(userID string)
}

func NewSocketController(hub *delivery.Hub, svc *notifications.Service, secret string, buffer int, writeWait time.Duration, log *zap.Logger) *SocketController {
	return &SocketController{
		hub:           hub,
		notifications: svc,
		secret:        secret,
		buffer:        buffer,
		writeWait:     writeWait,
		log:           log,
	}
}

// Handle authenticates the caller, upgrades to a websocket and keeps the
// channel registered in the hub until either side closes it.
func (ctl *SocketController) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := lib.VerifyJWT(bearerToken(c), ctl.secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - Invalid Token", "code": "unauthorized"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the response
			ctl.log.Debug("websocket upgrade failed", zap.Error(err))
			return
		}

		ch := delivery.NewSocketChannel(ws, ctl.buffer, ctl.writeWait)
		ch.Start()
		ctx := c.Request.Context()

		// hello is queued before registering so it is always the first frame
		unread, counted := ctl.hello(ctx, ch, userID)
		if ctl.beforeRegister != nil {
			ctl.beforeRegister(userID)
		}
		handle := ctl.hub.Register(userID, ch)
		ctl.log.Info("push channel opened", zap.String("user", userID))
		// anything committed between the hello count and Register was not
		// pushed; a changed count means the client needs a sync
		if ctl.unreadChanged(ctx, userID, unread, counted) {
			ctl.syncWithTimeout(ctx, ch, userID)
		}
		defer func() {
			ctl.hub.Unregister(handle)
			ch.Close()
			ctl.log.Info("push channel closed", zap.String("user", userID))
		}()

		inbound := make(chan []byte, 16)
		go ctl.readLoop(ws, ch, inbound)

		for {
			select {
			case <-ch.Done():
				return
			case data, ok := <-inbound:
				if !ok {
					return
				}
				ctl.dispatch(ctx, ch, userID, data)
			}
		}
	}
}

// readLoop is the only reader of ws. It closes inbound when the socket fails.
func (ctl *SocketController) readLoop(ws *websocket.Conn, ch *delivery.SocketChannel, inbound chan<- []byte) {
	defer close(inbound)

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				ctl.log.Debug("push channel read failed", zap.Error(err))
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		select {
		case inbound <- data:
		case <-ch.Done():
			return
		}
	}
}

func (ctl *SocketController) dispatch(ctx context.Context, ch delivery.Channel, userID string, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		ctl.reply(ch, errorFrame{Type: frameError, Code: "bad_request", Error: "invalid payload"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, inflightTimeout)
	defer cancel()

	switch frame.Type {
	case framePing:
		ctl.reply(ch, pongFrame{Type: framePong})
	case frameRead:
		if frame.ID == "" {
			ctl.reply(ch, errorFrame{Type: frameError, Code: "bad_request", Error: "id is required"})
			return
		}
		if err := ctl.notifications.MarkRead(ctx, userID, frame.ID); err != nil {
			ctl.replyFailure(ch, err)
			return
		}
		ctl.reply(ch, ackFrame{Type: frameAck, ID: frame.ID})
	case frameReadAll:
		updated, err := ctl.notifications.MarkAllRead(ctx, userID)
		if err != nil {
			ctl.replyFailure(ch, err)
			return
		}
		ctl.reply(ch, ackFrame{Type: frameAck, Updated: updated})
	case frameSync:
		ctl.sync(ctx, ch, userID)
	default:
		ctl.reply(ch, errorFrame{Type: frameError, Code: "unsupported_type", Error: "unknown frame type"})
	}
}

// hello queues the greeting and reports the unread count it carried, and
// whether that count was actually read from storage.
func (ctl *SocketController) hello(ctx context.Context, ch delivery.Channel, userID string) (int64, bool) {
	ctx, cancel := context.WithTimeout(ctx, inflightTimeout)
	defer cancel()

	unread, err := ctl.notifications.UnreadCount(ctx, userID)
	if err != nil {
		ctl.log.Warn("unread count for hello", zap.String("user", userID), zap.Error(err))
	}
	ctl.reply(ch, helloFrame{Type: frameHello, UserID: userID, Unread: unread})
	return unread, err == nil
}

func (ctl *SocketController) unreadChanged(ctx context.Context, userID string, unread int64, counted bool) bool {
	if !counted {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, inflightTimeout)
	defer cancel()

	now, err := ctl.notifications.UnreadCount(ctx, userID)
	return err != nil || now != unread
}

func (ctl *SocketController) syncWithTimeout(ctx context.Context, ch delivery.Channel, userID string) {
	ctx, cancel := context.WithTimeout(ctx, inflightTimeout)
	defer cancel()
	ctl.sync(ctx, ch, userID)
}

func (ctl *SocketController) sync(ctx context.Context, ch delivery.Channel, userID string) {
	unread, err := ctl.notifications.UnreadCount(ctx, userID)
	if err != nil {
		ctl.replyFailure(ch, err)
		return
	}
	list, err := ctl.notifications.List(ctx, userID, notifications.DefaultPageSize, 0)
	if err != nil {
		ctl.replyFailure(ch, err)
		return
	}
	ctl.reply(ch, syncFrame{Type: frameSync, Unread: unread, Notifications: list})
}

func (ctl *SocketController) replyFailure(ch delivery.Channel, err error) {
	if errors.Is(err, notifications.ErrNotFound) {
		ctl.reply(ch, errorFrame{Type: frameError, Code: "not_found", Error: "Notification not found"})
		return
	}
	ctl.log.Error("push channel request failed", zap.Error(err))
	ctl.reply(ch, errorFrame{Type: frameError, Code: "internal_error", Error: "Server error"})
}

func (ctl *SocketController) reply(ch delivery.Channel, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		ctl.log.Error("encode control frame", zap.Error(err))
		return
	}
	_ = ch.Deliver(payload)
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}
