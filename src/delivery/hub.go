// Package delivery keeps the registry of live push channels and fans
// notifications out to them. Delivery is best effort: a channel that cannot
// take a frame is dropped and the client recovers through a sync.
package delivery

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/models"
)

const hubShards = 32

// Relay forwards frames to the other nodes of the deployment.
type Relay interface {
	Publish(user string, payload []byte)
}

// Handle identifies exactly one registration made through Register.
type Handle struct {
	user string
	id   string
}

func (h Handle) User() string { return h.user }

type shard struct {
	mu    sync.RWMutex
	users map[string]map[string]Channel
}

type Hub struct {
	shards     [hubShards]*shard
	relay      Relay
	sweepEvery time.Duration
	log        *zap.Logger
}

type Option func(*Hub)

func WithRelay(r Relay) Option {
	return func(h *Hub) { h.relay = r }
}

func WithSweepInterval(d time.Duration) Option {
	return func(h *Hub) { h.sweepEvery = d }
}

func NewHub(log *zap.Logger, opts ...Option) *Hub {
	h := &Hub{
		sweepEvery: 30 * time.Second,
		log:        log,
	}
	for i := range h.shards {
		h.shards[i] = &shard{users: make(map[string]map[string]Channel)}
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register adds ch to the user's live channels.
func (h *Hub) Register(user string, ch Channel) Handle {
	handle := Handle{user: user, id: uuid.NewString()}
	s := h.shard(user)

	s.mu.Lock()
	channels, ok := s.users[user]
	if !ok {
		channels = make(map[string]Channel)
		s.users[user] = channels
	}
	channels[handle.id] = ch
	s.mu.Unlock()

	h.log.Debug("channel registered", zap.String("user", user), zap.String("handle", handle.id))
	return handle
}

// Unregister removes the registration behind handle and reports whether it
// was still present. The channel itself is left to its owner.
func (h *Hub) Unregister(handle Handle) bool {
	_, ok := h.remove(handle)
	if ok {
		h.log.Debug("channel unregistered", zap.String("user", handle.user), zap.String("handle", handle.id))
	}
	return ok
}

// Push serialises n once and hands it to every channel the recipient has
// open on this node, and to the relay when one is configured. It returns the
// number of local channels that accepted the frame.
func (h *Hub) Push(recipient string, n models.Notification) int {
	payload, err := json.Marshal(n)
	if err != nil {
		h.log.Error("encode push frame", zap.String("id", n.ID), zap.Error(err))
		return 0
	}
	delivered := h.DeliverLocal(recipient, payload)
	if h.relay != nil {
		h.relay.Publish(recipient, payload)
	}
	return delivered
}

// DeliverLocal writes payload to the user's channels on this node. Channels
// that refuse it are unregistered and closed; the rest are unaffected.
func (h *Hub) DeliverLocal(user string, payload []byte) int {
	s := h.shard(user)

	s.mu.RLock()
	targets := make(map[string]Channel, len(s.users[user]))
	for id, ch := range s.users[user] {
		targets[id] = ch
	}
	s.mu.RUnlock()

	delivered := 0
	for id, ch := range targets {
		if err := ch.Deliver(payload); err != nil {
			h.log.Warn("push failed, dropping channel",
				zap.String("user", user),
				zap.String("handle", id),
				zap.Error(errors.Wrap(ErrDeliveryUnavailable, err.Error())))
			h.drop(Handle{user: user, id: id})
			continue
		}
		delivered++
	}
	return delivered
}

// Count returns the number of registered channels on this node.
func (h *Hub) Count() int {
	total := 0
	for _, s := range h.shards {
		s.mu.RLock()
		for _, channels := range s.users {
			total += len(channels)
		}
		s.mu.RUnlock()
	}
	return total
}

// Connected returns the number of channels registered for user.
func (h *Hub) Connected(user string) int {
	s := h.shard(user)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users[user])
}

// Run sweeps terminated channels until ctx is cancelled, then closes every
// channel still registered.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			if n := h.Sweep(); n > 0 {
				h.log.Info("swept dead channels", zap.Int("count", n))
			}
		}
	}
}

// Sweep unregisters every channel whose transport has terminated.
func (h *Hub) Sweep() int {
	removed := 0
	for _, s := range h.shards {
		s.mu.Lock()
		for user, channels := range s.users {
			for id, ch := range channels {
				select {
				case <-ch.Done():
					delete(channels, id)
					removed++
				default:
				}
			}
			if len(channels) == 0 {
				delete(s.users, user)
			}
		}
		s.mu.Unlock()
	}
	return removed
}

func (h *Hub) drop(handle Handle) {
	if ch, ok := h.remove(handle); ok {
		ch.Close()
	}
}

func (h *Hub) remove(handle Handle) (Channel, bool) {
	s := h.shard(handle.user)
	s.mu.Lock()
	defer s.mu.Unlock()

	channels, ok := s.users[handle.user]
	if !ok {
		return nil, false
	}
	ch, ok := channels[handle.id]
	if !ok {
		return nil, false
	}
	delete(channels, handle.id)
	if len(channels) == 0 {
		delete(s.users, handle.user)
	}
	return ch, true
}

func (h *Hub) closeAll() {
	for _, s := range h.shards {
		s.mu.Lock()
		users := s.users
		s.users = make(map[string]map[string]Channel)
		s.mu.Unlock()

		for _, channels := range users {
			for _, ch := range channels {
				ch.Close()
			}
		}
	}
}

func (h *Hub) shard(user string) *shard {
	f := fnv.New32a()
	_, _ = f.Write([]byte(user))
	return h.shards[f.Sum32()%hubShards]
}
