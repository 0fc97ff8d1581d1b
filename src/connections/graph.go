// Package connections owns the relationship state between pairs of users.
// Graph is the only writer of that state; every transition runs under a
// per-pair lock inside one database transaction, and the notification for
// the counterpart is created only after that transaction has committed.
package connections

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/theleywin/talentnest-graph/src/events"
	"github.com/theleywin/talentnest-graph/src/models"
)

// Notifier creates durable notifications; notifications.Service satisfies it.
type Notifier interface {
	Create(ctx context.Context, recipient string, payload models.Payload) (string, error)
}

// Directory resolves the display details copied into notification payloads.
// It belongs to the profile service; a failed lookup falls back to the bare id.
type Directory interface {
	Actor(ctx context.Context, userID string) (models.Actor, error)
}

type Graph struct {
	store     *Store
	events    *events.Log
	notifier  Notifier
	directory Directory
	locks     *pairLocks
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Graph)

func WithDirectory(d Directory) Option {
	return func(g *Graph) { g.directory = d }
}

func WithClock(now func() time.Time) Option {
	return func(g *Graph) { g.now = now }
}

func NewGraph(store *Store, evlog *events.Log, notifier Notifier, log *zap.Logger, opts ...Option) *Graph {
	g := &Graph{
		store:    store,
		events:   evlog,
		notifier: notifier,
		locks:    newPairLocks(),
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// notice is a notification decided inside a transition and sent after commit
type notice struct {
	recipient    string
	actor        string
	kind         models.NotificationKind
	autoAccepted bool
}

type transitionFunc func(tx *gorm.DB, conn *models.Connection, now time.Time) (models.RelationState, *notice, error)

// Request sends a connection request from one user to another. If to had
// already asked from, the pair connects immediately.
func (g *Graph) Request(ctx context.Context, from, to string) (models.RelationState, error) {
	return g.transition(ctx, from, to, func(tx *gorm.DB, conn *models.Connection, now time.Time) (models.RelationState, *notice, error) {
		pair := models.NewPair(from, to)
		if conn == nil {
			if _, err := g.store.InsertPending(tx, pair, from, now); err != nil {
				return "", nil, err
			}
			return models.RelationPendingSent, &notice{
				recipient: to,
				actor:     from,
				kind:      models.NotificationKindConnectionRequest,
			}, nil
		}

		switch {
		case conn.State == models.ConnectionStateConnected:
			return "", nil, ErrAlreadyConnected
		case conn.RequestedBy == from:
			return "", nil, ErrDuplicateRequest
		}

		// to is waiting on a request of their own: mutual interest
		if err := g.connect(tx, conn, now); err != nil {
			return "", nil, err
		}
		return models.RelationConnected, &notice{
			recipient:    to,
			actor:        from,
			kind:         models.NotificationKindConnectionAccepted,
			autoAccepted: true,
		}, nil
	})
}

// Accept answers requester's pending request to responder
func (g *Graph) Accept(ctx context.Context, responder, requester string) (models.RelationState, error) {
	return g.transition(ctx, responder, requester, func(tx *gorm.DB, conn *models.Connection, now time.Time) (models.RelationState, *notice, error) {
		if !pendingFrom(conn, requester) {
			return "", nil, ErrNoSuchRequest
		}
		if err := g.connect(tx, conn, now); err != nil {
			return "", nil, err
		}
		return models.RelationConnected, &notice{
			recipient: requester,
			actor:     responder,
			kind:      models.NotificationKindConnectionAccepted,
		}, nil
	})
}

// Reject discards requester's pending request to responder. The requester
// is not notified.
func (g *Graph) Reject(ctx context.Context, responder, requester string) (models.RelationState, error) {
	return g.transition(ctx, responder, requester, func(tx *gorm.DB, conn *models.Connection, _ time.Time) (models.RelationState, *notice, error) {
		if !pendingFrom(conn, requester) {
			return "", nil, ErrNoSuchRequest
		}
		if err := g.store.Delete(tx, conn); err != nil {
			return "", nil, err
		}
		return models.RelationNone, nil, nil
	})
}

// Cancel withdraws requester's own pending request to responder. A
// connection_request notification already created stays where it is.
func (g *Graph) Cancel(ctx context.Context, requester, responder string) (models.RelationState, error) {
	return g.transition(ctx, requester, responder, func(tx *gorm.DB, conn *models.Connection, _ time.Time) (models.RelationState, *notice, error) {
		if !pendingFrom(conn, requester) {
			return "", nil, ErrNoSuchRequest
		}
		if err := g.store.Delete(tx, conn); err != nil {
			return "", nil, err
		}
		return models.RelationNone, nil, nil
	})
}

// Remove ends an established connection from either side
func (g *Graph) Remove(ctx context.Context, user, other string) (models.RelationState, error) {
	return g.transition(ctx, user, other, func(tx *gorm.DB, conn *models.Connection, now time.Time) (models.RelationState, *notice, error) {
		if conn == nil {
			return "", nil, ErrNoSuchRequest
		}
		if conn.State != models.ConnectionStateConnected {
			return "", nil, ErrConflict
		}
		if err := g.store.Delete(tx, conn); err != nil {
			return "", nil, err
		}
		err := g.events.Append(tx, events.Transition(models.ConnectionEventDisconnected, user, other, now)...)
		if err != nil {
			return "", nil, err
		}
		return models.RelationNone, nil, nil
	})
}

// GetState returns the relationship between a and b as seen by a
func (g *Graph) GetState(ctx context.Context, a, b string) (models.RelationState, error) {
	if err := validPair(a, b); err != nil {
		return "", err
	}
	conn, err := g.store.Get(ctx, models.NewPair(a, b))
	if err != nil {
		return "", err
	}
	return models.RelationOf(conn, a), nil
}

// Lookup returns the raw record between a and b, nil when there is none
func (g *Graph) Lookup(ctx context.Context, a, b string) (*models.Connection, error) {
	if err := validPair(a, b); err != nil {
		return nil, err
	}
	return g.store.Get(ctx, models.NewPair(a, b))
}

func (g *Graph) ListConnections(ctx context.Context, user string) ([]models.Connection, error) {
	return g.store.ListConnected(ctx, user)
}

func (g *Graph) ListIncoming(ctx context.Context, user string) ([]models.Connection, error) {
	return g.store.ListPending(ctx, user, true)
}

func (g *Graph) ListOutgoing(ctx context.Context, user string) ([]models.Connection, error) {
	return g.store.ListPending(ctx, user, false)
}

func (g *Graph) transition(ctx context.Context, caller, other string, fn transitionFunc) (models.RelationState, error) {
	if err := validPair(caller, other); err != nil {
		return "", err
	}
	pair := models.NewPair(caller, other)

	var (
		state models.RelationState
		note  *notice
	)
	unlock := g.locks.lock(pair.Key())
	err := g.store.Transaction(ctx, func(tx *gorm.DB) error {
		conn, err := g.store.Find(tx, pair)
		if err != nil {
			return err
		}
		state, note, err = fn(tx, conn, g.now().UTC())
		return err
	})
	unlock()
	if err != nil {
		return "", err
	}

	if note != nil {
		// The transition is committed; the notification must not be lost
		// because the caller went away.
		g.notify(context.WithoutCancel(ctx), note)
	}
	return state, nil
}

func (g *Graph) connect(tx *gorm.DB, conn *models.Connection, now time.Time) error {
	if err := g.store.MarkConnected(tx, conn, now); err != nil {
		return err
	}
	return g.events.Append(tx, events.Transition(models.ConnectionEventConnected, conn.UserLow, conn.UserHigh, now)...)
}

func (g *Graph) notify(ctx context.Context, n *notice) {
	actor := g.actor(ctx, n.actor)

	var payload models.Payload
	switch n.kind {
	case models.NotificationKindConnectionRequest:
		payload = models.ConnectionRequestPayload{Actor: actor}
	default:
		payload = models.ConnectionAcceptedPayload{Actor: actor, AutoAccepted: n.autoAccepted}
	}

	if _, err := g.notifier.Create(ctx, n.recipient, payload); err != nil {
		g.log.Error("failed to create connection notification",
			zap.String("recipient", n.recipient),
			zap.String("kind", string(n.kind)),
			zap.Error(err))
	}
}

func (g *Graph) actor(ctx context.Context, userID string) models.Actor {
	if g.directory == nil {
		return models.Actor{ID: userID}
	}
	a, err := g.directory.Actor(ctx, userID)
	if err != nil {
		g.log.Warn("actor lookup failed", zap.String("user", userID), zap.Error(err))
		return models.Actor{ID: userID}
	}
	a.ID = userID
	return a
}

func pendingFrom(conn *models.Connection, requester string) bool {
	return conn != nil &&
		conn.State == models.ConnectionStatePending &&
		conn.RequestedBy == requester
}

func validPair(a, b string) error {
	if a == "" || b == "" {
		return ErrInvalidUser
	}
	if a == b {
		return ErrSelfReference
	}
	return nil
}
