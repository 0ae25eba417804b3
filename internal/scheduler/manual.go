package scheduler

import (
	"sync"
	"time"
)

type manualTimer struct {
	at time.Time
	fn func()
}

// Manual is a controllable Scheduler for deterministic tests: nothing fires
// until Advance moves time past a timer's deadline.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers map[string]manualTimer
}

func NewManual(start time.Time) *Manual {
	return &Manual{
		now:    start,
		timers: make(map[string]manualTimer),
	}
}

func (m *Manual) Schedule(key string, delay time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := m.now.Add(delay)
	m.timers[key] = manualTimer{at: at, fn: fn}
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		timer, ok := m.timers[key]
		if !ok || timer.at != at {
			// Already fired, or replaced by a newer schedule.
			return
		}
		delete(m.timers, key)
	}
}

// Advance moves time forward by d and fires every timer that has come due.
// Callbacks run synchronously, without the scheduler lock held.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	now := m.now
	var due []func()
	for key, timer := range m.timers {
		if timer.at.After(now) {
			continue
		}
		due = append(due, timer.fn)
		delete(m.timers, key)
	}
	m.mu.Unlock()

	for _, fn := range due {
		fn()
	}
}

// Pending returns the number of scheduled timers.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}
