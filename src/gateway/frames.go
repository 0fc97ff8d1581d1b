package gateway

import "github.com/theleywin/talentnest-graph/src/models"

const (
	frameHello   = "hello"
	framePing    = "ping"
	framePong    = "pong"
	frameRead    = "read"
	frameReadAll = "read_all"
	frameSync    = "sync"
	frameAck     = "ack"
	frameError   = "error"
)

type inboundFrame struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

type helloFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Unread int64  `json:"unread"`
}

type pongFrame struct {
	Type string `json:"type"`
}

type ackFrame struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Updated int64  `json:"updated,omitempty"`
}

type syncFrame struct {
	Type          string                `json:"type"`
	Unread        int64                 `json:"unread"`
	Notifications []models.Notification `json:"notifications"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
