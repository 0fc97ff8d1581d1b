package connections

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theleywin/talentnest-graph/src/models"
)

// Store is the durable record of every pair's relationship. Mutations take
// the transaction handle of the caller and check the record version, so a
// write based on a stale read affects no rows and fails with ErrConflict.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn inside a database transaction
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Find returns the record for pair, or nil when the pair has none
func (s *Store) Find(tx *gorm.DB, pair models.Pair) (*models.Connection, error) {
	var conn models.Connection
	err := tx.Where("user_low = ? AND user_high = ?", pair.Low, pair.High).
		Take(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find connection")
	}
	return &conn, nil
}

// Get is Find outside of any transaction
func (s *Store) Get(ctx context.Context, pair models.Pair) (*models.Connection, error) {
	return s.Find(s.db.WithContext(ctx), pair)
}

// InsertPending creates a fresh pending record requested by requester
func (s *Store) InsertPending(tx *gorm.DB, pair models.Pair, requester string, now time.Time) (*models.Connection, error) {
	conn := &models.Connection{
		ID:          uuid.NewString(),
		UserLow:     pair.Low,
		UserHigh:    pair.High,
		State:       models.ConnectionStatePending,
		RequestedBy: requester,
		Version:     1,
		CreatedAt:   now,
	}
	err := tx.Create(conn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert connection")
	}
	return conn, nil
}

// MarkConnected moves conn from pending to connected
func (s *Store) MarkConnected(tx *gorm.DB, conn *models.Connection, now time.Time) error {
	res := tx.Model(&models.Connection{}).
		Where("id = ? AND version = ? AND state = ?", conn.ID, conn.Version, models.ConnectionStatePending).
		Updates(map[string]interface{}{
			"state":        models.ConnectionStateConnected,
			"responded_at": now,
			"version":      gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update connection")
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	conn.State = models.ConnectionStateConnected
	conn.RespondedAt = &now
	conn.Version++
	return nil
}

// Delete removes conn, returning the pair to the NONE state
func (s *Store) Delete(tx *gorm.DB, conn *models.Connection) error {
	res := tx.Where("id = ? AND version = ?", conn.ID, conn.Version).
		Delete(&models.Connection{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete connection")
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// ListConnected returns user's connected records, most recent first
func (s *Store) ListConnected(ctx context.Context, user string) ([]models.Connection, error) {
	var conns []models.Connection
	err := s.db.WithContext(ctx).
		Where("(user_low = ? OR user_high = ?) AND state = ?", user, user, models.ConnectionStateConnected).
		Order("responded_at DESC").
		Find(&conns).Error
	if err != nil {
		return nil, errors.Wrap(err, "list connections")
	}
	return conns, nil
}

// ListPending returns pending records involving user. With incoming set it
// returns requests others sent to user, otherwise the ones user sent.
func (s *Store) ListPending(ctx context.Context, user string, incoming bool) ([]models.Connection, error) {
	q := s.db.WithContext(ctx).
		Where("(user_low = ? OR user_high = ?) AND state = ?", user, user, models.ConnectionStatePending)
	if incoming {
		q = q.Where("requested_by <> ?", user)
	} else {
		q = q.Where("requested_by = ?", user)
	}

	var conns []models.Connection
	if err := q.Order("created_at DESC").Find(&conns).Error; err != nil {
		return nil, errors.Wrap(err, "list connection requests")
	}
	return conns, nil
}
