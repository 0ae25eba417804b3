// Package docsource defines the push-based remote document source the cache
// subscribes to, and its in-memory and Redis-backed implementations.
package docsource

import "context"

// Callbacks receives the events of one document subscription. OnChange fires
// on initial arrival and on every subsequent update. Implementations must
// not invoke callbacks after the cancel function returned by Subscribe has
// been called, though events already in flight may still be delivered.
type Callbacks struct {
	OnChange  func(raw any)
	OnRemoved func()
	OnError   func(err error)
}

// Source is a remote document store delivering per-key change events.
type Source interface {
	// Subscribe starts watching the document under the canonical key and
	// returns a cancel handle. The raw values handed to OnChange are not
	// interpreted by the cache core.
	Subscribe(ctx context.Context, key string, callbacks Callbacks) (func(), error)
}
