package registry

import (
	"context"
	"time"

	"github.com/Amund211/watchlight/internal/adapters/authsource"
	"github.com/Amund211/watchlight/internal/adapters/docsource"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/lease"
)

// The auth state is cached under this reserved key, claimed by the session
// itself. Normally the whole app is its only claimant, so the lease gets an
// effectively infinite eviction delay; everything else about its lifecycle
// is the standard claim/release/eviction machinery.
const (
	authKeySegment = "__watchlight_auth"
	// SessionLeasee is the leasee name used for app-lifetime claims.
	SessionLeasee = "session"
)

// Auth delays are "never in practice": sessions do not live for years.
const authEvictionDelay = 100 * 365 * 24 * time.Hour

// AuthKey returns the reserved key the auth state is cached under.
func AuthKey() keys.Key {
	return keys.Key{authKeySegment}
}

// WatchAuthState subscribes to the auth-state source and caches its events
// under the reserved auth key: a signed-in user is a concrete value, a
// sign-out is the removed marker, and errors are error entities.
func (c *Client) WatchAuthState(ctx context.Context, source authsource.Source) {
	c.GetOrStartSubscription(ctx, AuthKey(), SessionLeasee, Subscription{
		Source: authAsDocuments{source: source},
	}, &lease.Options{EvictionDelay: authEvictionDelay})
}

// authAsDocuments adapts the keyless auth-state source to the per-key
// document source shape the subscription machinery expects.
type authAsDocuments struct {
	source authsource.Source
}

func (a authAsDocuments) Subscribe(ctx context.Context, _ string, callbacks docsource.Callbacks) (func(), error) {
	return a.source.Subscribe(ctx, authsource.Callbacks{
		OnUser: func(user authsource.User) {
			if callbacks.OnChange != nil {
				callbacks.OnChange(user)
			}
		},
		OnSignedOut: func() {
			if callbacks.OnRemoved != nil {
				callbacks.OnRemoved()
			}
		},
		OnError: func(err error) {
			if callbacks.OnError != nil {
				callbacks.OnError(err)
			}
		},
	})
}
