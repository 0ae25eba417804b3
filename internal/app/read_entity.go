package app

import (
	"context"
	"fmt"

	"github.com/Amund211/watchlight/internal/domain"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/registry"
	"github.com/Amund211/watchlight/internal/reporting"
)

// ReadEntity projects the current status of a key without claiming it.
// Keys that no leasee holds project as idle, even if a value lingers in
// the cache awaiting eviction.
type ReadEntity func(ctx context.Context, key keys.Key) (domain.EntityTuple, error)

func BuildReadEntity(handle *registry.Handle) ReadEntity {
	return func(ctx context.Context, key keys.Key) (domain.EntityTuple, error) {
		client, err := handle.Client()
		if err != nil {
			reporting.Report(ctx, err)
			return domain.EntityTuple{}, fmt.Errorf("failed to read entity: %w", err)
		}

		return client.LookupEntity(key), nil
	}
}

// WriteEntity stores a value for the leasee, claiming the key on its
// behalf so the write does not evaporate on the next eviction sweep.
type WriteEntity func(ctx context.Context, key keys.Key, leasee string, value any) error

func BuildWriteEntity(handle *registry.Handle) WriteEntity {
	return func(ctx context.Context, key keys.Key, leasee string, value any) error {
		client, err := handle.Client()
		if err != nil {
			reporting.Report(ctx, err, map[string]string{"leasee": leasee})
			return fmt.Errorf("failed to write entity: %w", err)
		}

		if err := client.SetLeasedEntity(ctx, key, leasee, value, nil); err != nil {
			return fmt.Errorf("failed to write entity: %w", err)
		}
		return nil
	}
}
