package notifications

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theleywin/talentnest-graph/src/models"
)

// SQLRepository stores notifications in the relational database shared with
// the connection graph.
type SQLRepository struct {
	db *gorm.DB
}

var _ Repository = (*SQLRepository)(nil)

func NewSQLRepository(db *gorm.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

func (r *SQLRepository) Insert(ctx context.Context, n models.Notification) error {
	if err := r.db.WithContext(ctx).Create(&n).Error; err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

func (r *SQLRepository) MarkRead(ctx context.Context, recipient, id string, at time.Time) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&models.Notification{}).
		Where("id = ? AND recipient = ? AND read_at IS NULL", id, recipient).
		Update("read_at", at)
	if res.Error != nil {
		return errors.Wrap(res.Error, "mark notification read")
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.ensureOwned(db, recipient, id)
}

func (r *SQLRepository) MarkAllRead(ctx context.Context, recipient string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient = ? AND read_at IS NULL", recipient).
		Update("read_at", at)
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "mark all notifications read")
	}
	return res.RowsAffected, nil
}

func (r *SQLRepository) Delete(ctx context.Context, recipient, id string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND recipient = ?", id, recipient).
		Delete(&models.Notification{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete notification")
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient = ? AND read_at IS NULL", recipient).
		Count(&count).Error
	if err != nil {
		return 0, errors.Wrap(err, "count unread notifications")
	}
	return count, nil
}

func (r *SQLRepository) List(ctx context.Context, recipient string, limit, offset int) ([]models.Notification, error) {
	out := make([]models.Notification, 0)
	// rowid breaks ties between rows created within the same clock tick
	err := r.db.WithContext(ctx).
		Where("recipient = ?", recipient).
		Order("created_at DESC").
		Order("rowid DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	return out, nil
}

func (r *SQLRepository) ensureOwned(db *gorm.DB, recipient, id string) error {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("id = ? AND recipient = ?", id, recipient).
		Count(&count).Error
	if err != nil {
		return errors.Wrap(err, "find notification")
	}
	if count == 0 {
		return ErrNotFound
	}
	return nil
}
