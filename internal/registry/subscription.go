package registry

import (
	"context"
	"fmt"

	"github.com/Amund211/watchlight/internal/adapters/docsource"
	"github.com/Amund211/watchlight/internal/cache"
	"github.com/Amund211/watchlight/internal/domain"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/lease"
	"github.com/Amund211/watchlight/internal/logging"
	"github.com/Amund211/watchlight/internal/reporting"
)

// Transform converts a raw upstream value before it reaches the cache. It is
// owned by the calling application; the core never interprets raw values.
type Transform func(raw any) (any, error)

// Subscription describes how to start watching one key upstream.
type Subscription struct {
	Source docsource.Source
	// Transform, if set, is applied to every incoming value. A failing or
	// panicking transform stores the error as the cache entry; it never
	// crashes the subscription.
	Transform Transform
}

// GetOrStartSubscription idempotently starts watching the key for the
// leasee. If a lease with a live subscription already exists the claim simply
// joins it (refreshing timing options); otherwise the pending marker is
// written, the upstream subscription is started with its events wired into
// cache writes, and the lease is created holding the cancel handle.
//
// Only an active subscription handle counts as "already subscribed": a lease
// created by a direct write alone does not stop a fresh subscription from
// starting.
//
// Keys that cannot be canonicalized are silently ignored. A source that
// fails to subscribe stores its error as the cache entry; the error status
// reaches consumers through projection, never as a return value.
func (c *Client) GetOrStartSubscription(ctx context.Context, key keys.Key, leasee string, subscription Subscription, options *lease.Options) {
	canonical, err := keys.Canonicalize(key)
	if err != nil {
		return
	}

	logger := logging.FromContext(ctx)

	c.mu.Lock()
	if held, ok := c.leases[canonical]; ok && held.Subscribed() {
		c.claimLocked(ctx, canonical, leasee, options)
		c.mu.Unlock()
		c.metrics.subscriptionJoins.Add(ctx, 1)
		logger.Info("Joined existing subscription", "key", canonical, "leasee", leasee)
		return
	}
	c.mu.Unlock()

	// The key enters the cache the moment the subscription is created,
	// before the first upstream event arrives.
	c.store.Apply(func(snapshot cache.Snapshot) cache.Snapshot {
		return snapshot.WithEntry(canonical, domain.PendingEntity())
	})

	cancel, err := subscription.Source.Subscribe(ctx, canonical, docsource.Callbacks{
		OnChange: func(raw any) {
			c.storeIncoming(ctx, canonical, raw, subscription.Transform)
		},
		OnRemoved: func() {
			c.SetEntityCanonical(ctx, canonical, nil)
		},
		OnError: func(err error) {
			c.storeUpstreamError(ctx, canonical, err)
		},
	})

	c.mu.Lock()
	held := c.claimLocked(ctx, canonical, leasee, options)
	var joinedCancel func()
	if err == nil && cancel != nil {
		if held.Subscribed() {
			// Another caller attached a subscription while ours was
			// starting; keep theirs and cancel ours.
			joinedCancel = cancel
		} else {
			held.AttachSubscription(cancel)
		}
	}
	c.mu.Unlock()

	if joinedCancel != nil {
		joinedCancel()
		c.metrics.subscriptionJoins.Add(ctx, 1)
		return
	}

	if err != nil {
		subscribeErr := fmt.Errorf("%w: %s", domain.ErrSubscriptionFailed, err.Error())
		reporting.Report(ctx, subscribeErr, map[string]string{"key": canonical})
		c.storeUpstreamError(ctx, canonical, subscribeErr)
		return
	}

	c.metrics.subscriptionStarts.Add(ctx, 1)
	logger.Info("Started subscription", "key", canonical, "leasee", leasee)
}

func (c *Client) storeIncoming(ctx context.Context, canonical string, raw any, transform Transform) {
	value := raw
	if transform != nil {
		transformed, err := applyTransform(transform, raw)
		if err != nil {
			reporting.Report(ctx, err, map[string]string{"key": canonical})
			c.storeUpstreamError(ctx, canonical, err)
			return
		}
		value = transformed
	}
	c.SetEntityCanonical(ctx, canonical, value)
}

// applyTransform runs the application-supplied transform, converting panics
// into errors so a misbehaving transform cannot take down the subscription.
func applyTransform(transform Transform, raw any) (value any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			value = nil
			err = fmt.Errorf("transform panicked: %v", recovered)
		}
	}()
	return transform(raw)
}

func (c *Client) storeUpstreamError(ctx context.Context, canonical string, err error) {
	logging.FromContext(ctx).Error("Storing upstream error", "key", canonical, "error", err.Error())
	c.store.Apply(func(snapshot cache.Snapshot) cache.Snapshot {
		return snapshot.WithEntry(canonical, domain.ErrorEntity(err))
	})
}
