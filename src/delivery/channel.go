package delivery

import "github.com/pkg/errors"

var (
	// ErrChannelClosed is returned by Deliver once the transport is gone.
	ErrChannelClosed = errors.New("channel closed")
	// ErrChannelFull is returned when the outbound queue has no room; the
	// client is not draining it fast enough.
	ErrChannelFull = errors.New("channel send buffer full")
	// ErrDeliveryUnavailable wraps every push failure. It is logged and
	// never returned to the producer of a notification.
	ErrDeliveryUnavailable = errors.New("delivery unavailable")
)

// Channel is one live push transport of a user (a device or a browser tab).
type Channel interface {
	// Deliver queues payload for writing and must not block.
	Deliver(payload []byte) error
	// Close terminates the transport. Safe to call more than once.
	Close()
	// Done is closed once the transport has terminated for any reason.
	Done() <-chan struct{}
}
