// Package events keeps the append-only history of connection lifecycle
// transitions. Rows are never updated or deleted.
package events

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/theleywin/talentnest-graph/src/models"
)

// Window bounds a history read. Zero values leave that side open.
type Window struct {
	Since time.Time
	Until time.Time
}

type Log struct {
	db *gorm.DB
}

func NewLog(db *gorm.DB) *Log {
	return &Log{db: db}
}

// Transition builds the pair of perspective rows for one connect or
// disconnect between a and b.
func Transition(typ models.ConnectionEventType, a, b string, at time.Time) []models.ConnectionEvent {
	id := uuid.NewString()
	at = at.UTC()
	return []models.ConnectionEvent{
		{TransitionID: id, Type: typ, SubjectUser: a, OtherUser: b, OccurredAt: at},
		{TransitionID: id, Type: typ, SubjectUser: b, OtherUser: a, OccurredAt: at},
	}
}

// Append writes events through tx so they commit or roll back together with
// the state change that produced them. A nil tx writes on the log's own
// handle.
func (l *Log) Append(tx *gorm.DB, events ...models.ConnectionEvent) error {
	if len(events) == 0 {
		return nil
	}
	if tx == nil {
		tx = l.db
	}
	for i := range events {
		if events[i].Seq != 0 {
			return errors.New("event already appended")
		}
	}
	if err := tx.Create(&events).Error; err != nil {
		return errors.Wrap(err, "append connection events")
	}
	return nil
}

// ListFor streams user's history ordered by occurrence. Each range over the
// returned sequence opens a fresh cursor, so it can be iterated again to get
// a current read. Iteration stops at the first error, which is yielded.
func (l *Log) ListFor(ctx context.Context, user string, w Window) iter.Seq2[models.ConnectionEvent, error] {
	return func(yield func(models.ConnectionEvent, error) bool) {
		q := l.db.WithContext(ctx).
			Model(&models.ConnectionEvent{}).
			Where("subject_user = ?", user)
		// occurred_at is compared as text, which only orders correctly in UTC
		if !w.Since.IsZero() {
			q = q.Where("occurred_at >= ?", w.Since.UTC())
		}
		if !w.Until.IsZero() {
			q = q.Where("occurred_at < ?", w.Until.UTC())
		}

		rows, err := q.Order("occurred_at ASC, seq ASC").Rows()
		if err != nil {
			yield(models.ConnectionEvent{}, errors.Wrap(err, "query connection events"))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var ev models.ConnectionEvent
			if err := l.db.ScanRows(rows, &ev); err != nil {
				yield(models.ConnectionEvent{}, errors.Wrap(err, "scan connection event"))
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.ConnectionEvent{}, errors.Wrap(err, "iterate connection events"))
		}
	}
}

// Collect drains seq into a slice
func Collect(seq iter.Seq2[models.ConnectionEvent, error]) ([]models.ConnectionEvent, error) {
	out := make([]models.ConnectionEvent, 0)
	for ev, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}
