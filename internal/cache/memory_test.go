package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"petregistry/internal/auth"
	"petregistry/internal/cache"
)

func TestMemoryPutGet(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	ctx := context.Background()
	identity := auth.Identity{ID: "id-1", Email: "a@x.com", Confirmed: true}

	require.NoError(t, store.Put(ctx, identity.ID, identity, time.Minute))

	got, ok, err := store.Get(ctx, identity.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, identity, got)
}

func TestMemoryMiss(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()

	_, ok, err := store.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryExpiry(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := cache.NewMemory().WithClock(func() time.Time { return clock })
	ctx := context.Background()
	identity := auth.Identity{ID: "id-1", Email: "a@x.com", Confirmed: true}

	require.NoError(t, store.Put(ctx, identity.ID, identity, time.Minute))

	clock = base.Add(59 * time.Second)
	_, ok, err := store.Get(ctx, identity.ID)
	require.NoError(t, err)
	require.True(t, ok)

	clock = base.Add(time.Minute)
	_, ok, err = store.Get(ctx, identity.ID)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryInvalidate(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	ctx := context.Background()
	identity := auth.Identity{ID: "id-1", Email: "a@x.com", Confirmed: true}

	require.NoError(t, store.Put(ctx, identity.ID, identity, time.Minute))
	require.NoError(t, store.Invalidate(ctx, identity.ID))

	_, ok, err := store.Get(ctx, identity.ID)
	require.NoError(t, err)
	require.False(t, ok)

	// Invalidating an absent key is a no-op.
	require.NoError(t, store.Invalidate(ctx, "absent"))
}

func TestMemoryLastWriteWins(t *testing.T) {
	t.Parallel()

	store := cache.NewMemory()
	ctx := context.Background()

	first := auth.Identity{ID: "id-1", Email: "a@x.com", Confirmed: false}
	second := auth.Identity{ID: "id-1", Email: "a@x.com", Confirmed: true}

	require.NoError(t, store.Put(ctx, "id-1", first, time.Minute))
	require.NoError(t, store.Put(ctx, "id-1", second, time.Minute))

	got, ok, err := store.Get(ctx, "id-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Confirmed)
}
