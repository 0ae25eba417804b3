package registry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Amund211/watchlight/internal/adapters/docsource"
	"github.com/Amund211/watchlight/internal/cache"
	"github.com/Amund211/watchlight/internal/domain"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/lease"
	"github.com/Amund211/watchlight/internal/logging"
	"github.com/Amund211/watchlight/internal/registry"
	"github.com/Amund211/watchlight/internal/scheduler"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, options ...registry.ClientOption) (*registry.Client, *scheduler.Manual) {
	t.Helper()

	manual := scheduler.NewManual(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))
	client, err := registry.NewClient(cache.NewStore(), manual, options...)
	require.NoError(t, err)
	return client, manual
}

func testContext() context.Context {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return logging.AddToContext(context.Background(), logger)
}

type fakeSource struct {
	mu         sync.Mutex
	subscribes int
	cancels    int
	callbacks  docsource.Callbacks
	err        error
}

func (f *fakeSource) Subscribe(_ context.Context, _ string, callbacks docsource.Callbacks) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.subscribes++
	f.callbacks = callbacks
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.cancels++
	}, nil
}

func (f *fakeSource) subscribeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

func (f *fakeSource) cancelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}

func TestClaim(t *testing.T) {
	t.Parallel()

	key := keys.Key{"users", "uid-1"}

	t.Run("is idempotent", func(t *testing.T) {
		t.Parallel()

		client, manual := newTestClient(t)
		ctx := testContext()

		client.Claim(ctx, key, "a", nil)
		client.Claim(ctx, key, "a", nil)
		require.Equal(t, 1, client.LeaseCount())
		require.Len(t, client.ClaimedKeys("a"), 1)

		// A single release must empty the ledger: the double claim did
		// not count twice.
		client.Release(ctx, key, "a")
		require.Equal(t, 1, manual.Pending())
	})

	t.Run("unresolved key is silently ignored", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t)
		client.Claim(testContext(), keys.Key{"users", keys.Unresolved}, "a", nil)
		require.Zero(t, client.LeaseCount())
	})

	t.Run("structurally equal keys share a lease", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t)
		ctx := testContext()

		client.Claim(ctx, keys.Key{map[string]any{"uuid": "1234", "gamemode": "overall"}}, "a", nil)
		client.Claim(ctx, keys.Key{map[string]any{"gamemode": "overall", "uuid": "1234"}}, "b", nil)
		require.Equal(t, 1, client.LeaseCount())
	})
}

func TestAbandonmentRoundTrip(t *testing.T) {
	t.Parallel()

	client, manual := newTestClient(t, registry.WithDefaultEvictionDelay(time.Minute))
	ctx := testContext()
	key := keys.Key{"users", "uid-1"}

	require.NoError(t, client.SetLeasedEntity(ctx, key, "a", map[string]any{"name": "someone"}, nil))

	client.Release(ctx, key, "a")
	require.Equal(t, 1, manual.Pending())

	// Reclaim before the delay elapses cancels the pending eviction.
	client.Claim(ctx, key, "a", nil)
	require.Equal(t, 0, manual.Pending())

	manual.Advance(time.Hour)
	require.True(t, client.HasLease(key))
	tuple := client.LookupEntity(key)
	require.Equal(t, domain.StatusSuccess, tuple.Status)
}

func TestEvictionFinality(t *testing.T) {
	t.Parallel()

	client, manual := newTestClient(t, registry.WithDefaultEvictionDelay(time.Minute))
	ctx := testContext()
	key := keys.Key{"users", "uid-1"}
	source := &fakeSource{}

	client.GetOrStartSubscription(ctx, key, "a", registry.Subscription{Source: source}, nil)
	source.callbacks.OnChange(map[string]any{"name": "someone"})

	client.Release(ctx, key, "a")
	manual.Advance(time.Minute)

	require.False(t, client.HasLease(key))
	require.Zero(t, client.LeaseCount())
	require.Equal(t, 1, source.cancelCount())

	_, present := client.Store().Read(mustCanonicalize(t, key))
	require.False(t, present)

	// The entity is idle again, as if it had never been claimed.
	require.Equal(t, domain.StatusIdle, client.LookupEntity(key).Status)
}

func TestEvictionUsesLatestClaimOptions(t *testing.T) {
	t.Parallel()

	client, manual := newTestClient(t, registry.WithDefaultEvictionDelay(time.Minute))
	ctx := testContext()
	key := keys.Key{"users", "uid-1"}

	client.Claim(ctx, key, "a", &lease.Options{EvictionDelay: time.Minute})
	// The last claim's options win, joins included.
	client.Claim(ctx, key, "b", &lease.Options{EvictionDelay: 10 * time.Minute})

	client.Release(ctx, key, "a")
	client.Release(ctx, key, "b")

	manual.Advance(2 * time.Minute)
	require.True(t, client.HasLease(key))

	manual.Advance(8 * time.Minute)
	require.False(t, client.HasLease(key))
}

func TestReleaseUnknownKeyIsNoOp(t *testing.T) {
	t.Parallel()

	client, manual := newTestClient(t)
	client.Release(testContext(), keys.Key{"never", "claimed"}, "a")
	require.Zero(t, manual.Pending())
}

func TestDisownAll(t *testing.T) {
	t.Parallel()

	client, manual := newTestClient(t, registry.WithDefaultEvictionDelay(time.Minute))
	ctx := testContext()
	first := keys.Key{"users", "uid-1"}
	second := keys.Key{"users", "uid-2"}

	require.NoError(t, client.SetLeasedEntity(ctx, first, "a", 1, nil))
	require.NoError(t, client.SetLeasedEntity(ctx, second, "a", 2, nil))
	require.NoError(t, client.SetLeasedEntity(ctx, second, "b", 2, nil))

	client.DisownAll(ctx, "a")
	require.Empty(t, client.ClaimedKeys("a"))

	// Only the solely-claimed key starts the abandonment countdown.
	require.Equal(t, 1, manual.Pending())

	manual.Advance(time.Minute)
	require.False(t, client.HasLease(first))
	require.True(t, client.HasLease(second))
}

func TestSetEntity(t *testing.T) {
	t.Parallel()

	t.Run("rejects unresolved keys without mutating the cache", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t)
		err := client.SetEntity(testContext(), keys.Key{"users", keys.Unresolved}, "value")
		require.ErrorIs(t, err, domain.ErrInvalidKey)
		require.Empty(t, client.Store().Current())
	})

	t.Run("writes have no lease side effects", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t)
		ctx := testContext()
		key := keys.Key{"users", "uid-1"}

		require.NoError(t, client.SetEntity(ctx, key, map[string]any{"name": "someone"}))
		require.Zero(t, client.LeaseCount())

		// The lease-aware read reports idle without a claim...
		require.Equal(t, domain.StatusIdle, client.LookupEntity(key).Status)
		// ...while the raw cache projection sees the value.
		tuple := client.Store().Project(mustCanonicalize(t, key))
		require.Equal(t, domain.StatusSuccess, tuple.Status)
	})

	t.Run("nil stores the removed marker", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t)
		ctx := testContext()
		key := keys.Key{"users", "uid-1"}

		require.NoError(t, client.SetLeasedEntity(ctx, key, "a", nil, nil))
		require.Equal(t, domain.StatusRemoved, client.LookupEntity(key).Status)
	})

	t.Run("error values project as error status", func(t *testing.T) {
		t.Parallel()

		client, _ := newTestClient(t)
		ctx := testContext()
		key := keys.Key{"users", "uid-1"}
		boom := errors.New("boom")

		require.NoError(t, client.SetLeasedEntity(ctx, key, "a", boom, nil))
		tuple := client.LookupEntity(key)
		require.Equal(t, domain.StatusError, tuple.Status)
		require.Equal(t, boom, tuple.Err)
	})
}

func mustCanonicalize(t *testing.T, key keys.Key) string {
	t.Helper()
	canonical, err := keys.Canonicalize(key)
	require.NoError(t, err)
	return canonical
}
