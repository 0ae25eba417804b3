package registry

import (
	"context"
	"sync"

	"github.com/Amund211/watchlight/internal/domain"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/lease"
)

// Handle is a client reference that can exist before the client does, so
// consumers can be wired up ahead of session setup. Every operation fails
// with domain.ErrClientUninitialized until Bind attaches a client; that is a
// usage error, not a runtime condition to retry.
type Handle struct {
	mu     sync.RWMutex
	client *Client
}

func NewHandle() *Handle {
	return &Handle{}
}

// Bind attaches the backing client. Later binds replace earlier ones, e.g.
// when a new session starts.
func (h *Handle) Bind(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.client = client
}

// Client returns the bound client, or domain.ErrClientUninitialized.
func (h *Handle) Client() (*Client, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.client == nil {
		return nil, domain.ErrClientUninitialized
	}
	return h.client, nil
}

func (h *Handle) Claim(ctx context.Context, key keys.Key, leasee string, options *lease.Options) error {
	client, err := h.Client()
	if err != nil {
		return err
	}
	client.Claim(ctx, key, leasee, options)
	return nil
}

func (h *Handle) Release(ctx context.Context, key keys.Key, leasee string) error {
	client, err := h.Client()
	if err != nil {
		return err
	}
	client.Release(ctx, key, leasee)
	return nil
}

func (h *Handle) DisownAll(ctx context.Context, leasee string) error {
	client, err := h.Client()
	if err != nil {
		return err
	}
	client.DisownAll(ctx, leasee)
	return nil
}

func (h *Handle) GetOrStartSubscription(ctx context.Context, key keys.Key, leasee string, subscription Subscription, options *lease.Options) error {
	client, err := h.Client()
	if err != nil {
		return err
	}
	client.GetOrStartSubscription(ctx, key, leasee, subscription, options)
	return nil
}

func (h *Handle) SetEntity(ctx context.Context, key keys.Key, value any) error {
	client, err := h.Client()
	if err != nil {
		return err
	}
	return client.SetEntity(ctx, key, value)
}

func (h *Handle) LookupEntity(key keys.Key) (domain.EntityTuple, error) {
	client, err := h.Client()
	if err != nil {
		return domain.EntityTuple{}, err
	}
	return client.LookupEntity(key), nil
}
