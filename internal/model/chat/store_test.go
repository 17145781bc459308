package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAssignsMonotonicIDs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first, err := store.Create(ctx, FromMember("u1", "hello"))
	require.NoError(t, err)
	second, err := store.Create(ctx, FromTeam("u1", AssistantName, "hi there"))
	require.NoError(t, err)

	assert.Less(t, first.ID, second.ID)
	assert.False(t, second.Timestamp.Before(first.Timestamp))
	assert.Equal(t, AssistantName, second.Author())
	assert.Equal(t, "", first.Author())
}

func TestMemoryStoreTimestampsNeverGoBackwards(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Minute)}
	store.now = func() time.Time {
		ts := clock[0]
		clock = clock[1:]
		return ts
	}

	a, _ := store.Create(context.Background(), FromMember("u1", "a"))
	b, _ := store.Create(context.Background(), FromMember("u1", "b"))
	assert.Equal(t, a.Timestamp, b.Timestamp)
}

func TestMemoryStoreListByUserNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	for _, text := range []string{"one", "two", "three"} {
		_, err := store.Create(ctx, FromMember("u1", text))
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, FromMember("u2", "other"))
	require.NoError(t, err)

	got, err := store.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Message)
	assert.Equal(t, "two", got[1].Message)
	assert.Equal(t, 4, store.Len())
}
