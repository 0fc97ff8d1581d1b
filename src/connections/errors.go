package connections

import "github.com/pkg/errors"

var (
	// ErrSelfReference is returned when an operation targets the caller.
	ErrSelfReference = errors.New("cannot target yourself")
	// ErrInvalidUser is returned for an empty user identifier.
	ErrInvalidUser = errors.New("invalid user id")
	// ErrAlreadyConnected is returned by Request on a connected pair.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrDuplicateRequest is returned when the caller already has a pending
	// request to the same user.
	ErrDuplicateRequest = errors.New("connection request already sent")
	// ErrNoSuchRequest covers a missing pending request and one authored by
	// someone else. The two are reported identically on purpose.
	ErrNoSuchRequest = errors.New("no such connection request")
	// ErrConflict means another transition on the pair committed first, or
	// the pair is not in the state the operation requires. Re-read the state
	// before retrying.
	ErrConflict = errors.New("connection state changed concurrently")
)
