package models

import (
	"encoding/json"
	"time"
)

// Connection is the single record kept for an unordered pair of users.
// Participants are stored in canonical order (UserLow < UserHigh) so the
// unique index on the pair rejects a second record for the same two users.
type Connection struct {
	ID          string          `json:"_id" gorm:"primaryKey;type:varchar(36)"`
	UserLow     string          `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:ux_connection_pair"`
	UserHigh    string          `json:"-" gorm:"type:varchar(64);not null;uniqueIndex:ux_connection_pair;index"`
	State       ConnectionState `json:"state" gorm:"type:varchar(20);not null"`
	RequestedBy string          `json:"requestedBy" gorm:"type:varchar(64);not null"`
	Version     int64           `json:"-" gorm:"not null;default:1"`
	CreatedAt   time.Time       `json:"createdAt"`
	RespondedAt *time.Time      `json:"respondedAt,omitempty"`
}

type ConnectionState string

const (
	ConnectionStatePending   ConnectionState = "pending"
	ConnectionStateConnected ConnectionState = "connected"
)

// MarshalJSON exposes the participants as a pair instead of the storage columns
func (c Connection) MarshalJSON() ([]byte, error) {
	type Alias Connection
	return json.Marshal(&struct {
		Participants [2]string `json:"participants"`
		*Alias
	}{
		Participants: [2]string{c.UserLow, c.UserHigh},
		Alias:        (*Alias)(&c),
	})
}

// Other returns the participant that is not user
func (c Connection) Other(user string) string {
	if c.UserLow == user {
		return c.UserHigh
	}
	return c.UserLow
}

// Has reports whether user is one of the two participants
func (c Connection) Has(user string) bool {
	return c.UserLow == user || c.UserHigh == user
}

// Pair is the canonical, order-independent key of two users
type Pair struct {
	Low  string
	High string
}

func NewPair(a, b string) Pair {
	if a > b {
		a, b = b, a
	}
	return Pair{Low: a, High: b}
}

func (p Pair) Key() string {
	return p.Low + "\x00" + p.High
}

// RelationState is the relationship as seen from one participant.
// It is derived from State and RequestedBy and never stored.
type RelationState string

const (
	RelationNone            RelationState = "none"
	RelationPendingSent     RelationState = "pending_sent"
	RelationPendingReceived RelationState = "pending_received"
	RelationConnected       RelationState = "connected"
)

// RelationOf derives viewer's perspective of conn; nil means no record.
func RelationOf(conn *Connection, viewer string) RelationState {
	if conn == nil {
		return RelationNone
	}
	if conn.State == ConnectionStateConnected {
		return RelationConnected
	}
	if conn.RequestedBy == viewer {
		return RelationPendingSent
	}
	return RelationPendingReceived
}

// Status maps the relation to the status strings the web client has always
// consumed from /connections/status.
func (r RelationState) Status() string {
	switch r {
	case RelationConnected:
		return "connected"
	case RelationPendingSent:
		return "pending"
	case RelationPendingReceived:
		return "received"
	default:
		return "not_connected"
	}
}
