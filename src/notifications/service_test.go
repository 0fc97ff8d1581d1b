package notifications

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/theleywin/talentnest-graph/src/lib"
	"github.com/theleywin/talentnest-graph/src/models"
)

type recordingPusher struct {
	mu     sync.Mutex
	pushed []models.Notification
	panics bool
}

func (p *recordingPusher) Push(_ string, n models.Notification) int {
	if p.panics {
		panic("transport exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pushed = append(p.pushed, n)
	return 1
}

func (p *recordingPusher) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.pushed))
	for _, n := range p.pushed {
		out = append(out, n.ID)
	}
	return out
}

func newSQLRepo(t *testing.T) *SQLRepository {
	t.Helper()
	db, err := lib.ConnectDB(filepath.Join(t.TempDir(), "notifications.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, lib.AutoMigrate(db))
	return NewSQLRepository(db)
}

func newTestService(t *testing.T) (*Service, *recordingPusher) {
	t.Helper()
	pusher := &recordingPusher{}
	return NewService(newSQLRepo(t), pusher, zap.NewNop()), pusher
}

func likeFrom(actor string) models.Payload {
	return models.LikePayload{Actor: models.Actor{ID: actor}, PostID: "post-" + actor}
}

func TestCreateStoresAndPushesOnce(t *testing.T) {
	svc, pusher := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "u1", likeFrom("u2"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{id}, pusher.ids())

	list, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
	assert.Equal(t, models.NotificationKindLike, list[0].Kind)
	assert.Equal(t, likeFrom("u2"), list[0].Payload)
	assert.False(t, list[0].Read())
}

func TestCreateValidatesInput(t *testing.T) {
	svc, pusher := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", likeFrom("u2"))
	assert.ErrorIs(t, err, ErrInvalidRecipient)

	_, err = svc.Create(ctx, "u1", nil)
	assert.Error(t, err)
	assert.Empty(t, pusher.ids())
}

func TestCreateSurvivesPushPanic(t *testing.T) {
	pusher := &recordingPusher{panics: true}
	svc := NewService(newSQLRepo(t), pusher, zap.NewNop())
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", likeFrom("u2"))
	require.NoError(t, err)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestPushOrderFollowsCreateOrder(t *testing.T) {
	svc, pusher := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		id, err := svc.Create(ctx, "u1", likeFrom("u2"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, ids, pusher.ids())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "u1", likeFrom("u2"))
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, "u1", id))
	first, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.NotNil(t, first[0].ReadAt)

	require.NoError(t, svc.MarkRead(ctx, "u1", id))
	second, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.True(t, first[0].ReadAt.Equal(*second[0].ReadAt), "second call keeps the original read time")

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRecipientScoping(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id, err := svc.Create(ctx, "u1", likeFrom("u2"))
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkRead(ctx, "intruder", id), ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, "intruder", id), ErrNotFound)
	assert.ErrorIs(t, svc.MarkRead(ctx, "u1", "missing"), ErrNotFound)

	list, err := svc.List(ctx, "intruder", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, list)

	count, err := svc.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMarkAllReadAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := svc.Create(ctx, "u1", likeFrom("u2"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := svc.Create(ctx, "u3", likeFrom("u2"))
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, "u1", ids[0]))

	updated, err := svc.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	count, err := svc.UnreadCount(ctx, "u3")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count, "other recipients are untouched")

	require.NoError(t, svc.Delete(ctx, "u1", ids[1]))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", ids[1]), ErrNotFound)

	list, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestListPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 25; i++ {
		id, err := svc.Create(ctx, "u1", likeFrom("u2"))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	page, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, page, DefaultPageSize)
	assert.Equal(t, ids[24], page[0].ID, "most recent first")

	rest, err := svc.List(ctx, "u1", 10, 20)
	require.NoError(t, err)
	require.Len(t, rest, 5)
	assert.Equal(t, ids[0], rest[4].ID)

	all, err := svc.List(ctx, "u1", 1000, -5)
	require.NoError(t, err)
	assert.Len(t, all, 25)
}

func TestPayloadVariantsRoundTripThroughStorage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	actor := models.Actor{ID: "u2", Name: "Uma", Avatar: "a.png", Department: "CS", Role: "staff"}

	payloads := []models.Payload{
		models.ConnectionRequestPayload{Actor: actor},
		models.ConnectionAcceptedPayload{Actor: actor, AutoAccepted: true},
		models.LikePayload{Actor: actor, PostID: "p1"},
		models.CommentPayload{Actor: actor, PostID: "p1", CommentID: "c1"},
	}
	for _, p := range payloads {
		_, err := svc.Create(ctx, "u1", p)
		require.NoError(t, err)
	}

	list, err := svc.List(ctx, "u1", 0, 0)
	require.NoError(t, err)
	require.Len(t, list, len(payloads))
	for i, n := range list {
		want := payloads[len(payloads)-1-i]
		assert.Equal(t, want.Kind(), n.Kind)
		assert.Equal(t, want, n.Payload)
	}
}
