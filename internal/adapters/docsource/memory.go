package docsource

import (
	"context"
	"sync"
)

// Memory is an in-process document source for tests and local development.
// Put, Delete and Fail deliver events synchronously to all subscribers of the
// affected key.
type Memory struct {
	mu            sync.Mutex
	documents     map[string]any
	subscriptions map[string]map[int]Callbacks
	nextID        int
}

func NewMemory() *Memory {
	return &Memory{
		documents:     make(map[string]any),
		subscriptions: make(map[string]map[int]Callbacks),
	}
}

func (m *Memory) Subscribe(_ context.Context, key string, callbacks Callbacks) (func(), error) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	subscribers := m.subscriptions[key]
	if subscribers == nil {
		subscribers = make(map[int]Callbacks)
		m.subscriptions[key] = subscribers
	}
	subscribers[id] = callbacks
	document, exists := m.documents[key]
	m.mu.Unlock()

	// Initial arrival, like a remote store replaying the current value.
	if exists && callbacks.OnChange != nil {
		callbacks.OnChange(document)
	}

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		remaining := m.subscriptions[key]
		delete(remaining, id)
		if len(remaining) == 0 {
			delete(m.subscriptions, key)
		}
	}
	return cancel, nil
}

// Put stores a document and notifies subscribers.
func (m *Memory) Put(key string, document any) {
	m.mu.Lock()
	m.documents[key] = document
	subscribers := m.subscribersLocked(key)
	m.mu.Unlock()

	for _, callbacks := range subscribers {
		if callbacks.OnChange != nil {
			callbacks.OnChange(document)
		}
	}
}

// Delete removes a document and notifies subscribers.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	delete(m.documents, key)
	subscribers := m.subscribersLocked(key)
	m.mu.Unlock()

	for _, callbacks := range subscribers {
		if callbacks.OnRemoved != nil {
			callbacks.OnRemoved()
		}
	}
}

// Fail delivers an error to subscribers without touching the document.
func (m *Memory) Fail(key string, err error) {
	m.mu.Lock()
	subscribers := m.subscribersLocked(key)
	m.mu.Unlock()

	for _, callbacks := range subscribers {
		if callbacks.OnError != nil {
			callbacks.OnError(err)
		}
	}
}

// SubscriberCount reports how many subscriptions are live for the key.
func (m *Memory) SubscriberCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions[key])
}

func (m *Memory) subscribersLocked(key string) []Callbacks {
	subscribers := make([]Callbacks, 0, len(m.subscriptions[key]))
	for _, callbacks := range m.subscriptions[key] {
		subscribers = append(subscribers, callbacks)
	}
	return subscribers
}

var _ Source = (*Memory)(nil)
