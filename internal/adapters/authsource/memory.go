package authsource

import (
	"context"
	"sync"
)

// Memory is an in-process auth source for tests and local development.
type Memory struct {
	mu            sync.Mutex
	current       *User
	subscriptions map[int]Callbacks
	nextID        int
}

func NewMemory() *Memory {
	return &Memory{
		subscriptions: make(map[int]Callbacks),
	}
}

func (m *Memory) Subscribe(_ context.Context, callbacks Callbacks) (func(), error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subscriptions[id] = callbacks
	current := m.current
	m.mu.Unlock()

	// Replay the current state, like a remote auth backend does on attach.
	if current != nil && callbacks.OnUser != nil {
		callbacks.OnUser(*current)
	}

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscriptions, id)
	}
	return cancel, nil
}

// SignIn publishes a signed-in user to all subscribers.
func (m *Memory) SignIn(user User) {
	m.mu.Lock()
	m.current = &user
	subscribers := m.subscribersLocked()
	m.mu.Unlock()

	for _, callbacks := range subscribers {
		if callbacks.OnUser != nil {
			callbacks.OnUser(user)
		}
	}
}

// SignOut publishes a sign-out to all subscribers.
func (m *Memory) SignOut() {
	m.mu.Lock()
	m.current = nil
	subscribers := m.subscribersLocked()
	m.mu.Unlock()

	for _, callbacks := range subscribers {
		if callbacks.OnSignedOut != nil {
			callbacks.OnSignedOut()
		}
	}
}

// Fail publishes an auth error to all subscribers.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	subscribers := m.subscribersLocked()
	m.mu.Unlock()

	for _, callbacks := range subscribers {
		if callbacks.OnError != nil {
			callbacks.OnError(err)
		}
	}
}

func (m *Memory) subscribersLocked() []Callbacks {
	subscribers := make([]Callbacks, 0, len(m.subscriptions))
	for _, callbacks := range m.subscriptions {
		subscribers = append(subscribers, callbacks)
	}
	return subscribers
}

var _ Source = (*Memory)(nil)
