package app

import (
	"context"
	"fmt"

	"github.com/Amund211/watchlight/internal/domain"
	"github.com/Amund211/watchlight/internal/keys"
	"github.com/Amund211/watchlight/internal/lease"
	"github.com/Amund211/watchlight/internal/logging"
	"github.com/Amund211/watchlight/internal/registry"
	"github.com/Amund211/watchlight/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/Amund211/watchlight/internal/app")

// WatchEntity claims the key for the leasee, starting or joining the
// upstream subscription, and returns the current projected status.
type WatchEntity func(ctx context.Context, key keys.Key, leasee string, subscription registry.Subscription, options *lease.Options) (domain.EntityTuple, error)

func BuildWatchEntity(handle *registry.Handle) WatchEntity {
	return func(ctx context.Context, key keys.Key, leasee string, subscription registry.Subscription, options *lease.Options) (domain.EntityTuple, error) {
		ctx, span := tracer.Start(ctx, "WatchEntity")
		defer span.End()
		span.SetAttributes(attribute.String("leasee", leasee))

		client, err := handle.Client()
		if err != nil {
			reporting.Report(ctx, err, map[string]string{"leasee": leasee})
			return domain.EntityTuple{}, fmt.Errorf("failed to watch entity: %w", err)
		}

		client.GetOrStartSubscription(ctx, key, leasee, subscription, options)

		tuple := client.LookupEntity(key)
		logging.FromContext(ctx).InfoContext(ctx, "Watching entity", "leasee", leasee, "status", string(tuple.Status))
		return tuple, nil
	}
}

// UnwatchEntity releases the leasee's claim on the key, starting the
// abandonment countdown if it was the last claimant.
type UnwatchEntity func(ctx context.Context, key keys.Key, leasee string) error

func BuildUnwatchEntity(handle *registry.Handle) UnwatchEntity {
	return func(ctx context.Context, key keys.Key, leasee string) error {
		client, err := handle.Client()
		if err != nil {
			reporting.Report(ctx, err, map[string]string{"leasee": leasee})
			return fmt.Errorf("failed to unwatch entity: %w", err)
		}

		client.Release(ctx, key, leasee)
		return nil
	}
}

// TeardownLeasee releases every claim the leasee holds. Call when the
// consuming component goes away, so its claims cannot pin cache entries
// forever.
type TeardownLeasee func(ctx context.Context, leasee string) error

func BuildTeardownLeasee(handle *registry.Handle) TeardownLeasee {
	return func(ctx context.Context, leasee string) error {
		ctx, span := tracer.Start(ctx, "TeardownLeasee")
		defer span.End()

		client, err := handle.Client()
		if err != nil {
			reporting.Report(ctx, err, map[string]string{"leasee": leasee})
			return fmt.Errorf("failed to tear down leasee: %w", err)
		}

		client.DisownAll(ctx, leasee)
		logging.FromContext(ctx).InfoContext(ctx, "Tore down leasee", "leasee", leasee)
		return nil
	}
}
