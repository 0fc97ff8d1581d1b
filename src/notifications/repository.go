package notifications

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/theleywin/talentnest-graph/src/models"
)

var (
	// ErrNotFound is returned when the id does not exist or belongs to
	// another recipient.
	ErrNotFound = errors.New("notification not found")
	// ErrInvalidRecipient is returned for an empty recipient id.
	ErrInvalidRecipient = errors.New("invalid notification recipient")
)

// Repository persists notifications. Every method is scoped to a recipient;
// no method touches another user's records.
type Repository interface {
	Insert(ctx context.Context, n models.Notification) error
	// MarkRead sets read_at if unset. A notification that is already read is
	// left untouched and reported as success.
	MarkRead(ctx context.Context, recipient, id string, at time.Time) error
	MarkAllRead(ctx context.Context, recipient string, at time.Time) (int64, error)
	Delete(ctx context.Context, recipient, id string) error
	UnreadCount(ctx context.Context, recipient string) (int64, error)
	// List returns the recipient's notifications, most recent first.
	List(ctx context.Context, recipient string, limit, offset int) ([]models.Notification, error)
}
