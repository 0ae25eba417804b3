// Package registry owns the lease ledger of the entity cache: which leasees
// claim which canonical keys, when abandoned entries are evicted, and how
// upstream subscriptions are started, joined and torn down.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Amund211/watchlight/internal/cache"
	"github.com/Amund211/watchlight/internal/domain"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/lease"
	"github.com/Amund211/watchlight/internal/logging"
	"github.com/Amund211/watchlight/internal/scheduler"
)

// Abandoned leases without a configured delay survive this long before
// eviction.
const fallbackEvictionDelay = 5 * time.Minute

// Client is the lease registry for one application session. It owns the
// cache store, the key to lease map and the leasee to leases index; all
// mutation of any of them goes through Client methods.
type Client struct {
	mu           sync.Mutex
	store        *cache.Store
	scheduler    scheduler.Scheduler
	defaultDelay time.Duration
	leases       map[string]*lease.Lease
	byLeasee     map[string]map[string]*lease.Lease
	logger       *slog.Logger
	metrics      *metrics
}

type ClientOption func(*Client)

// WithDefaultEvictionDelay overrides the registry-wide abandonment delay.
func WithDefaultEvictionDelay(delay time.Duration) ClientOption {
	return func(c *Client) {
		c.defaultDelay = delay
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(store *cache.Store, sched scheduler.Scheduler, options ...ClientOption) (*Client, error) {
	registryMetrics, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create registry metrics: %w", err)
	}

	client := &Client{
		store:     store,
		scheduler: sched,
		leases:    make(map[string]*lease.Lease),
		byLeasee:  make(map[string]map[string]*lease.Lease),
		logger:    slog.Default(),
		metrics:   registryMetrics,
	}
	for _, option := range options {
		option(client)
	}

	if err := client.registerCacheSizeGauge(); err != nil {
		return nil, err
	}

	return client, nil
}

// Store exposes the cache store, e.g. for wiring the publish hook consumer.
func (c *Client) Store() *cache.Store {
	return c.store
}

// Claim registers the leasee's interest in the key. Creates the lease if
// none exists, cancels a pending eviction, and refreshes the lease's timing
// options (last claim wins, joins included). Keys that cannot be
// canonicalized are silently ignored.
func (c *Client) Claim(ctx context.Context, key keys.Key, leasee string, options *lease.Options) {
	canonical, err := keys.Canonicalize(key)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimLocked(ctx, canonical, leasee, options)
}

func (c *Client) claimLocked(ctx context.Context, canonical, leasee string, options *lease.Options) *lease.Lease {
	held, ok := c.leases[canonical]
	if !ok {
		held = lease.New(canonical)
		c.leases[canonical] = held
	}

	held.AddLeasee(leasee)
	if options != nil {
		held.SetOptions(options)
	}

	claims := c.byLeasee[leasee]
	if claims == nil {
		claims = make(map[string]*lease.Lease)
		c.byLeasee[leasee] = claims
	}
	claims[canonical] = held

	c.metrics.claims.Add(ctx, 1)
	return held
}

// Release drops the leasee's claim on the key. If the lease's ledger becomes
// empty, eviction is scheduled after the resolved delay. Unknown keys and
// keys that cannot be canonicalized are no-ops.
func (c *Client) Release(ctx context.Context, key keys.Key, leasee string) {
	canonical, err := keys.Canonicalize(key)
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(ctx, canonical, leasee)
}

func (c *Client) releaseLocked(ctx context.Context, canonical, leasee string) {
	held, ok := c.leases[canonical]
	if !ok {
		return
	}

	held.RemoveLeasee(leasee)
	if claims := c.byLeasee[leasee]; claims != nil {
		delete(claims, canonical)
		if len(claims) == 0 {
			delete(c.byLeasee, leasee)
		}
	}
	c.metrics.releases.Add(ctx, 1)

	if !held.Abandoned() {
		return
	}

	delay := c.resolveDelay(held)
	logging.FromContext(ctx).Info(
		"Lease abandoned, scheduling eviction",
		"key", canonical,
		"delay", delay.String(),
	)
	cancel := c.scheduler.Schedule(canonical, delay, func() {
		c.evict(context.WithoutCancel(ctx), canonical)
	})
	held.SetPendingEviction(cancel)
}

func (c *Client) resolveDelay(held *lease.Lease) time.Duration {
	if options := held.Options(); options != nil && options.EvictionDelay > 0 {
		return options.EvictionDelay
	}
	if c.defaultDelay > 0 {
		return c.defaultDelay
	}
	return fallbackEvictionDelay
}

// evict runs when an abandonment timer fires: it re-checks that the ledger is
// still empty (a reclaim should already have cancelled the timer, this is the
// safety net), cancels the upstream subscription, and deletes the lease and
// the cache entry.
func (c *Client) evict(ctx context.Context, canonical string) {
	c.mu.Lock()
	held, ok := c.leases[canonical]
	if !ok || !held.Abandoned() {
		c.mu.Unlock()
		return
	}
	held.ForgetPendingEviction()
	delete(c.leases, canonical)
	unsubscribe := held.TakeSubscription()
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}

	c.store.Apply(func(snapshot cache.Snapshot) cache.Snapshot {
		return snapshot.WithoutEntry(canonical)
	})

	c.metrics.evictions.Add(ctx, 1)
	c.logger.Info(
		"Evicted abandoned entity",
		"key", canonical,
		"hadSubscription", unsubscribe != nil,
	)
}

// DisownAll releases every claim the leasee currently holds, e.g. when the
// consuming component is torn down.
func (c *Client) DisownAll(ctx context.Context, leasee string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	claims := c.byLeasee[leasee]
	held := make([]string, 0, len(claims))
	for canonical := range claims {
		held = append(held, canonical)
	}
	for _, canonical := range held {
		c.releaseLocked(ctx, canonical, leasee)
	}
	delete(c.byLeasee, leasee)
}

// SetEntity writes a value directly at the key through the single-writer
// protocol. nil stores the removed marker, an error value is stored as an
// error entity. No lease bookkeeping happens; callers that need a claim use
// SetLeasedEntity. Fails for keys containing unresolved segments.
func (c *Client) SetEntity(ctx context.Context, key keys.Key, value any) error {
	canonical, err := keys.Canonicalize(key)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidKey, err.Error())
	}
	c.SetEntityCanonical(ctx, canonical, value)
	return nil
}

// SetEntityCanonical is SetEntity for callers already holding a canonical
// key, e.g. subscription callbacks.
func (c *Client) SetEntityCanonical(_ context.Context, canonical string, value any) {
	c.store.Apply(func(snapshot cache.Snapshot) cache.Snapshot {
		return snapshot.WithEntry(canonical, domain.EntityOf(value))
	})
}

// SetLeasedEntity writes a value at the key and claims it for the leasee, so
// directly-set entities participate in the same abandonment lifecycle as
// subscribed ones.
func (c *Client) SetLeasedEntity(ctx context.Context, key keys.Key, leasee string, value any, options *lease.Options) error {
	canonical, err := keys.Canonicalize(key)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidKey, err.Error())
	}
	c.SetEntityCanonical(ctx, canonical, value)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimLocked(ctx, canonical, leasee, options)
	return nil
}

// LookupEntity projects the current status of the key. Idle is reported both
// for keys absent from the cache and for keys no lease exists for: a cache
// entry without a lease means no subscription was started through this
// client.
func (c *Client) LookupEntity(key keys.Key) domain.EntityTuple {
	canonical, err := keys.Canonicalize(key)
	if err != nil {
		return domain.IdleTuple()
	}

	c.mu.Lock()
	_, hasLease := c.leases[canonical]
	c.mu.Unlock()
	if !hasLease {
		return domain.IdleTuple()
	}

	return c.store.Project(canonical)
}

// HasLease reports whether a lease exists for the key.
func (c *Client) HasLease(key keys.Key) bool {
	canonical, err := keys.Canonicalize(key)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.leases[canonical]
	return ok
}

// LeaseCount reports the number of live leases.
func (c *Client) LeaseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.leases)
}

// ClaimedKeys returns the canonical keys the leasee currently claims.
func (c *Client) ClaimedKeys(leasee string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	claimed := make([]string, 0, len(c.byLeasee[leasee]))
	for canonical := range c.byLeasee[leasee] {
		claimed = append(claimed, canonical)
	}
	return claimed
}
