package models

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type NotificationKind string

const (
	NotificationKindConnectionRequest  NotificationKind = "connection_request"
	NotificationKindConnectionAccepted NotificationKind = "connection_accepted"
	NotificationKindLike               NotificationKind = "like"
	NotificationKindComment            NotificationKind = "comment"
)

// ErrUnknownKind is returned when a stored or received payload carries a
// kind this build does not know how to decode.
var ErrUnknownKind = errors.New("unknown notification kind")

// Actor is the user that caused a notification, copied into the payload at
// creation time. Only ID is guaranteed.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role,omitempty"`
}

// Payload is the kind-specific body of a notification
type Payload interface {
	Kind() NotificationKind
}

type ConnectionRequestPayload struct {
	Actor Actor `json:"actor"`
}

func (ConnectionRequestPayload) Kind() NotificationKind { return NotificationKindConnectionRequest }

type ConnectionAcceptedPayload struct {
	Actor Actor `json:"actor"`
	// AutoAccepted is set when the connection formed because the recipient's
	// own pending request was answered by a request in the other direction.
	AutoAccepted bool `json:"autoAccepted"`
}

func (ConnectionAcceptedPayload) Kind() NotificationKind { return NotificationKindConnectionAccepted }

type LikePayload struct {
	Actor  Actor  `json:"actor"`
	PostID string `json:"postId"`
}

func (LikePayload) Kind() NotificationKind { return NotificationKindLike }

type CommentPayload struct {
	Actor     Actor  `json:"actor"`
	PostID    string `json:"postId"`
	CommentID string `json:"commentId,omitempty"`
}

func (CommentPayload) Kind() NotificationKind { return NotificationKindComment }

// DecodePayload turns the raw JSON of a payload into its typed variant
func DecodePayload(kind NotificationKind, raw []byte) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch kind {
	case NotificationKindConnectionRequest:
		var v ConnectionRequestPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case NotificationKindConnectionAccepted:
		var v ConnectionAcceptedPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case NotificationKindLike:
		var v LikePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case NotificationKindComment:
		var v CommentPayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", kind)
	}
	return p, nil
}

// Notification is a durable per-recipient record. The payload is persisted
// as JSON in PayloadJSON and exposed typed through Payload.
type Notification struct {
	ID          string           `json:"id" gorm:"primaryKey;type:varchar(36)" bson:"_id"`
	Recipient   string           `json:"recipient" gorm:"type:varchar(64);not null;index:idx_notification_recipient_created,priority:1" bson:"recipient"`
	Kind        NotificationKind `json:"kind" gorm:"type:varchar(32);not null" bson:"kind"`
	Payload     Payload          `json:"payload" gorm:"-" bson:"-"`
	PayloadJSON string           `json:"-" gorm:"column:payload;type:text;not null" bson:"payload"`
	CreatedAt   time.Time        `json:"createdAt" gorm:"not null;index:idx_notification_recipient_created,priority:2" bson:"createdAt"`
	ReadAt      *time.Time       `json:"readAt" gorm:"index" bson:"readAt"`
}

// NewNotification builds an unsaved notification for recipient
func NewNotification(id, recipient string, payload Payload, now time.Time) (Notification, error) {
	if payload == nil {
		return Notification{}, errors.New("notification payload is required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Notification{}, errors.Wrap(err, "encode notification payload")
	}
	return Notification{
		ID:          id,
		Recipient:   recipient,
		Kind:        payload.Kind(),
		Payload:     payload,
		PayloadJSON: string(raw),
		CreatedAt:   now,
	}, nil
}

// Read reports whether the recipient has read the notification
func (n Notification) Read() bool {
	return n.ReadAt != nil
}

// Hydrate decodes PayloadJSON into Payload after a load from storage
func (n *Notification) Hydrate() error {
	p, err := DecodePayload(n.Kind, []byte(n.PayloadJSON))
	if err != nil {
		return err
	}
	n.Payload = p
	return nil
}

// AfterFind is the gorm hook that hydrates every loaded row
func (n *Notification) AfterFind(tx *gorm.DB) error {
	return n.Hydrate()
}

// UnmarshalJSON decodes a pushed or fetched notification, resolving the
// payload variant from the kind discriminator.
func (n *Notification) UnmarshalJSON(data []byte) error {
	type Alias Notification
	aux := &struct {
		Payload json.RawMessage `json:"payload"`
		*Alias
	}{
		Alias: (*Alias)(n),
	}
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	n.PayloadJSON = string(aux.Payload)
	return n.Hydrate()
}
