// Package notifications is the shared notification contract of the
// platform. Connection transitions and engagement producers (likes,
// comments) create records through Service.Create; recipients read, mark
// and delete their own records.
package notifications

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/models"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	recipientStripes = 64
)

// Pusher delivers a freshly stored notification to the recipient's live
// channels and reports how many accepted it.
type Pusher interface {
	Push(recipient string, n models.Notification) int
}

type Service struct {
	repo   Repository
	pusher Pusher
	log    *zap.Logger
	now    func() time.Time

	// stripes serialise insert+push per recipient so live channels see
	// notifications in commit order
	stripes [recipientStripes]sync.Mutex
}

func NewService(repo Repository, pusher Pusher, log *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		pusher: pusher,
		log:    log,
		now:    time.Now,
	}
}

// Create stores a new unread notification and then pushes it. Push is best
// effort: its outcome never changes the result of Create.
func (s *Service) Create(ctx context.Context, recipient string, payload models.Payload) (string, error) {
	if recipient == "" {
		return "", ErrInvalidRecipient
	}
	n, err := models.NewNotification(uuid.NewString(), recipient, payload, s.now().UTC())
	if err != nil {
		return "", err
	}

	mu := s.stripe(recipient)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.Insert(ctx, n); err != nil {
		return "", err
	}
	s.push(n)
	return n.ID, nil
}

func (s *Service) MarkRead(ctx context.Context, recipient, id string) error {
	return s.repo.MarkRead(ctx, recipient, id, s.now().UTC())
}

func (s *Service) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	return s.repo.MarkAllRead(ctx, recipient, s.now().UTC())
}

func (s *Service) Delete(ctx context.Context, recipient, id string) error {
	return s.repo.Delete(ctx, recipient, id)
}

func (s *Service) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	return s.repo.UnreadCount(ctx, recipient)
}

// List returns a page of the recipient's notifications, most recent first.
// A non-positive limit selects DefaultPageSize; limits above MaxPageSize are
// clamped.
func (s *Service) List(ctx context.Context, recipient string, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, recipient, limit, offset)
}

func (s *Service) push(n models.Notification) {
	if s.pusher == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("notification push panicked", zap.String("id", n.ID), zap.Any("panic", r))
		}
	}()

	delivered := s.pusher.Push(n.Recipient, n)
	s.log.Debug("notification pushed",
		zap.String("id", n.ID),
		zap.String("recipient", n.Recipient),
		zap.String("kind", string(n.Kind)),
		zap.Int("channels", delivered))
}

func (s *Service) stripe(recipient string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(recipient))
	return &s.stripes[h.Sum32()%recipientStripes]
}
