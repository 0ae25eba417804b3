// Package cache holds the immutable-snapshot entity cache and the
// single-writer protocol used to publish new snapshots.
package cache

import (
	"sync"

	"github.com/Amund211/watchlight/internal/domain"
)

// Snapshot maps canonical keys to entities. Holders must treat a Snapshot as
// immutable; the next snapshot is obtained through Store.Apply.
type Snapshot map[string]domain.Entity

// WithEntry returns a copy of the snapshot with the entry set. Entities under
// other keys keep their identity.
func (s Snapshot) WithEntry(key string, entity domain.Entity) Snapshot {
	next := make(Snapshot, len(s)+1)
	for existingKey, existing := range s {
		next[existingKey] = existing
	}
	next[key] = entity
	return next
}

// WithoutEntry returns a copy of the snapshot with the key removed. Returns
// the receiver unchanged if the key is absent.
func (s Snapshot) WithoutEntry(key string) Snapshot {
	if _, ok := s[key]; !ok {
		return s
	}
	next := make(Snapshot, len(s))
	for existingKey, existing := range s {
		if existingKey == key {
			continue
		}
		next[existingKey] = existing
	}
	return next
}

// Updater computes the next snapshot from the current one. It must not mutate
// the snapshot it receives.
type Updater func(Snapshot) Snapshot

// Store owns the current snapshot and serializes all mutations. Updaters are
// queued and applied one at a time against the latest committed snapshot, so
// an updater triggered from within another updater (a nested mutation from an
// upstream callback) can never base itself on a stale snapshot or get lost.
type Store struct {
	mu       sync.Mutex
	current  Snapshot
	queue    []Updater
	draining bool
	publish  func(Snapshot)
}

type StoreOption func(*Store)

// WithPublishHook registers the callback invoked once per committed mutation
// with the newly published snapshot. This is the binding point for layers
// that re-render on cache changes.
func WithPublishHook(publish func(Snapshot)) StoreOption {
	return func(s *Store) {
		s.publish = publish
	}
}

func NewStore(options ...StoreOption) *Store {
	store := &Store{
		current: make(Snapshot),
	}
	for _, option := range options {
		option(store)
	}
	return store
}

// Current returns the latest committed snapshot.
func (s *Store) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Read returns the entity stored under the key in the latest committed
// snapshot, and whether the key was present.
func (s *Store) Read(key string) (domain.Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entity, ok := s.current[key]
	return entity, ok
}

// Project classifies the entry under the key in the latest snapshot.
func (s *Store) Project(key string) domain.EntityTuple {
	entity, ok := s.Read(key)
	return domain.Project(entity, ok)
}

// Apply queues the updater and drains the queue unless another Apply is
// already draining it. Each updater runs against the snapshot committed by
// its predecessor, and its result is visible to all reads before the publish
// hook fires. Calling Apply from within an updater or the publish hook is
// safe: the nested updater is queued and applied before the outer Apply
// returns.
func (s *Store) Apply(update Updater) {
	s.mu.Lock()
	s.queue = append(s.queue, update)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]
		snapshot := s.current
		s.mu.Unlock()

		// The updater runs without the lock so that nested Apply calls
		// do not deadlock. Only this drainer commits, so the snapshot
		// it read stays the latest until it commits.
		updated := next(snapshot)

		s.mu.Lock()
		if updated == nil {
			continue
		}
		s.current = updated
		publish := s.publish
		s.mu.Unlock()

		if publish != nil {
			publish(updated)
		}
		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}
