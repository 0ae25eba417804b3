package app_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Amund211/watchlight/internal/adapters/docsource"
	"github.com/Amund211/watchlight/internal/app"
	"github.com/Amund211/watchlight/internal/cache"
	"github.com/Amund211/watchlight/internal/domain"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/logging"
	"github.com/Amund211/watchlight/internal/registry"
	"github.com/Amund211/watchlight/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return logging.AddToContext(context.Background(), logger)
}

func newBoundHandle(t *testing.T) (*registry.Handle, *scheduler.Manual) {
	t.Helper()

	sched := scheduler.NewManual(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	store := cache.NewStore()
	client, err := registry.NewClient(store, sched)
	require.NoError(t, err)

	handle := registry.NewHandle()
	handle.Bind(client)
	return handle, sched
}

func TestWatchEntity(t *testing.T) {
	t.Parallel()

	t.Run("watch through a live source", func(t *testing.T) {
		t.Parallel()
		ctx := testContext(t)
		handle, _ := newBoundHandle(t)
		source := docsource.NewMemory()

		key := keys.Key{"documents", "doc-1"}
		source.Put(mustCanonicalize(t, key), map[string]any{"title": "hello"})

		watch := app.BuildWatchEntity(handle)
		tuple, err := watch(ctx, key, "panel-1", registry.Subscription{Source: source}, nil)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSuccess, tuple.Status)
		require.Equal(t, map[string]any{"title": "hello"}, tuple.Value)
	})

	t.Run("watch before the first event is pending", func(t *testing.T) {
		t.Parallel()
		ctx := testContext(t)
		handle, _ := newBoundHandle(t)
		source := docsource.NewMemory()

		watch := app.BuildWatchEntity(handle)
		tuple, err := watch(ctx, keys.Key{"documents", "doc-2"}, "panel-1", registry.Subscription{Source: source}, nil)
		require.NoError(t, err)
		require.Equal(t, domain.StatusPending, tuple.Status)
	})

	t.Run("unbound handle errors", func(t *testing.T) {
		t.Parallel()
		ctx := testContext(t)
		handle := registry.NewHandle()

		watch := app.BuildWatchEntity(handle)
		_, err := watch(ctx, keys.Key{"documents", "doc-3"}, "panel-1", registry.Subscription{Source: docsource.NewMemory()}, nil)
		require.ErrorIs(t, err, domain.ErrClientUninitialized)
	})
}

func TestUnwatchEntity(t *testing.T) {
	t.Parallel()

	t.Run("releasing the last claim schedules eviction", func(t *testing.T) {
		t.Parallel()
		ctx := testContext(t)
		handle, sched := newBoundHandle(t)
		source := docsource.NewMemory()

		key := keys.Key{"documents", "doc-1"}
		source.Put(mustCanonicalize(t, key), "content")

		watch := app.BuildWatchEntity(handle)
		_, err := watch(ctx, key, "panel-1", registry.Subscription{Source: source}, nil)
		require.NoError(t, err)

		unwatch := app.BuildUnwatchEntity(handle)
		require.NoError(t, unwatch(ctx, key, "panel-1"))

		sched.Advance(10 * time.Minute)

		read := app.BuildReadEntity(handle)
		tuple, err := read(ctx, key)
		require.NoError(t, err)
		require.Equal(t, domain.StatusIdle, tuple.Status)
		require.Equal(t, 0, source.SubscriberCount(mustCanonicalize(t, key)))
	})
}

func TestWriteAndReadEntity(t *testing.T) {
	t.Parallel()

	t.Run("written value reads back while leased", func(t *testing.T) {
		t.Parallel()
		ctx := testContext(t)
		handle, _ := newBoundHandle(t)

		key := keys.Key{"drafts", map[string]any{"id": "d-1"}}

		write := app.BuildWriteEntity(handle)
		require.NoError(t, write(ctx, key, "editor", "draft body"))

		read := app.BuildReadEntity(handle)
		tuple, err := read(ctx, key)
		require.NoError(t, err)
		require.Equal(t, domain.StatusSuccess, tuple.Status)
		require.Equal(t, "draft body", tuple.Value)
	})

	t.Run("invalid key is rejected", func(t *testing.T) {
		t.Parallel()
		ctx := testContext(t)
		handle, _ := newBoundHandle(t)

		write := app.BuildWriteEntity(handle)
		err := write(ctx, keys.Key{"drafts", keys.Unresolved}, "editor", "draft body")
		require.ErrorIs(t, err, domain.ErrInvalidKey)
	})
}

func TestTeardownLeasee(t *testing.T) {
	t.Parallel()

	ctx := testContext(t)
	handle, sched := newBoundHandle(t)
	source := docsource.NewMemory()

	keyA := keys.Key{"documents", "a"}
	keyB := keys.Key{"documents", "b"}

	watch := app.BuildWatchEntity(handle)
	_, err := watch(ctx, keyA, "panel-1", registry.Subscription{Source: source}, nil)
	require.NoError(t, err)
	_, err = watch(ctx, keyB, "panel-1", registry.Subscription{Source: source}, nil)
	require.NoError(t, err)

	teardown := app.BuildTeardownLeasee(handle)
	require.NoError(t, teardown(ctx, "panel-1"))

	sched.Advance(10 * time.Minute)

	read := app.BuildReadEntity(handle)
	for _, key := range []keys.Key{keyA, keyB} {
		tuple, err := read(ctx, key)
		require.NoError(t, err)
		require.Equal(t, domain.StatusIdle, tuple.Status)
	}
}

func mustCanonicalize(t *testing.T, key keys.Key) string {
	t.Helper()
	canonical, err := keys.Canonicalize(key)
	require.NoError(t, err)
	return canonical
}
