// Package lease tracks per-key claim state: who currently depends on a cached
// entity, the handle cancelling its upstream subscription, and any pending
// eviction.
package lease

import (
	"sort"
	"time"
)

// Options overrides eviction timing for a single lease. The most recent claim
// wins.
type Options struct {
	// EvictionDelay is how long an abandoned lease survives before its
	// subscription is cancelled and its cache entry evicted. Zero or
	// negative means "use the registry default".
	EvictionDelay time.Duration
}

// Lease records the claimants of one canonical key. It is not self-locking;
// the registry owning it serializes all access.
type Lease struct {
	key            string
	ledger         map[string]struct{}
	unsubscribe    func()
	options        *Options
	cancelEviction func()
}

func New(key string) *Lease {
	return &Lease{
		key:    key,
		ledger: make(map[string]struct{}),
	}
}

func (l *Lease) Key() string {
	return l.key
}

// AddLeasee records a claim. Any pending eviction is cancelled: a reclaim
// before the timer fires must keep the entity alive.
func (l *Lease) AddLeasee(name string) {
	l.CancelPendingEviction()
	l.ledger[name] = struct{}{}
}

// RemoveLeasee drops a claim. No-op if the leasee holds none. Scheduling the
// eviction that may follow is the registry's responsibility, not the lease's.
func (l *Lease) RemoveLeasee(name string) {
	delete(l.ledger, name)
}

func (l *Lease) Holds(name string) bool {
	_, ok := l.ledger[name]
	return ok
}

// Abandoned reports whether no claimants remain.
func (l *Lease) Abandoned() bool {
	return len(l.ledger) == 0
}

// Leasees returns the current claimants, sorted for stable logging.
func (l *Lease) Leasees() []string {
	names := make([]string, 0, len(l.ledger))
	for name := range l.ledger {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Lease) SetOptions(options *Options) {
	l.options = options
}

func (l *Lease) Options() *Options {
	return l.options
}

// AttachSubscription stores the cancel handle of a live upstream
// subscription.
func (l *Lease) AttachSubscription(cancel func()) {
	l.unsubscribe = cancel
}

// Subscribed reports whether the lease holds a live subscription handle.
// Leases created purely by direct writes never do.
func (l *Lease) Subscribed() bool {
	return l.unsubscribe != nil
}

// TakeSubscription detaches and returns the cancel handle, or nil.
func (l *Lease) TakeSubscription() func() {
	cancel := l.unsubscribe
	l.unsubscribe = nil
	return cancel
}

// SetPendingEviction stores the cancel handle of a scheduled eviction. At
// most one eviction may be scheduled at a time; the previous one is cancelled
// first.
func (l *Lease) SetPendingEviction(cancel func()) {
	l.CancelPendingEviction()
	l.cancelEviction = cancel
}

// CancelPendingEviction cancels a scheduled eviction, if any.
func (l *Lease) CancelPendingEviction() {
	if l.cancelEviction == nil {
		return
	}
	cancel := l.cancelEviction
	l.cancelEviction = nil
	cancel()
}

// ForgetPendingEviction drops the eviction handle without cancelling it, for
// use when the eviction has already fired.
func (l *Lease) ForgetPendingEviction() {
	l.cancelEviction = nil
}

// EvictionPending reports whether an eviction is currently scheduled.
func (l *Lease) EvictionPending() bool {
	return l.cancelEviction != nil
}
