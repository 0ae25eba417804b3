// Package scheduler provides delayed one-shot callbacks keyed by canonical
// key, used by the lease registry to run abandonment evictions.
package scheduler

import "time"

// Scheduler schedules fn to run after the delay. Scheduling again under the
// same key replaces the previous callback, so a lease can never have two
// timers at once. The returned cancel function stops the callback from
// firing; cancelling after the callback fired is a no-op.
type Scheduler interface {
	Schedule(key string, delay time.Duration, fn func()) (cancel func())
}
