package notifications

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theleywin/talentnest-graph/src/models"
)

func TestMongoRepository(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()

	repo, err := ConnectMongo(ctx, uri, "talentnest_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = repo.collection.Database().Drop(context.Background())
		_ = repo.Close(context.Background())
	})

	now := time.Now().UTC().Truncate(time.Millisecond)
	var ids []string
	for i := 0; i < 3; i++ {
		n, err := models.NewNotification(uuid.NewString(), "u1", likeFrom("u2"), now.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		require.NoError(t, repo.Insert(ctx, n))
		ids = append(ids, n.ID)
	}

	list, err := repo.List(ctx, "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, likeFrom("u2"), list[0].Payload)

	require.NoError(t, repo.MarkRead(ctx, "u1", ids[0], now))
	require.NoError(t, repo.MarkRead(ctx, "u1", ids[0], now.Add(time.Hour)))
	assert.ErrorIs(t, repo.MarkRead(ctx, "intruder", ids[0], now), ErrNotFound)

	count, err := repo.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	updated, err := repo.MarkAllRead(ctx, "u1", now)
	require.NoError(t, err)
	assert.EqualValues(t, 2, updated)

	require.NoError(t, repo.Delete(ctx, "u1", ids[1]))
	assert.ErrorIs(t, repo.Delete(ctx, "u1", ids[1]), ErrNotFound)
}
