package scheduler

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

type ttlScheduler struct {
	timers *ttlcache.Cache[string, func()]
}

// NewTTL returns a Scheduler backed by a TTL cache: each scheduled callback
// is an entry whose expiry fires the callback, and cancellation is deletion.
// The returned stop function must be called to stop the expiry loop.
func NewTTL() (Scheduler, func()) {
	timers := ttlcache.New[string, func()]()

	timers.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, func()]) {
		if reason != ttlcache.EvictionReasonExpired {
			// Deleted entries are cancellations, not firings.
			return
		}
		go item.Value()()
	})

	go timers.Start()

	return &ttlScheduler{timers: timers}, timers.Stop
}

func (s *ttlScheduler) Schedule(key string, delay time.Duration, fn func()) func() {
	s.timers.Set(key, fn, delay)
	return func() {
		s.timers.Delete(key)
	}
}
