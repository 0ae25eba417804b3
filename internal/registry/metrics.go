package registry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	claims             metric.Int64Counter
	releases           metric.Int64Counter
	evictions          metric.Int64Counter
	subscriptionStarts metric.Int64Counter
	subscriptionJoins  metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	meter := otel.Meter("github.com/Amund211/watchlight/internal/registry")

	claims, err := meter.Int64Counter(
		"watchlight.registry.claims",
		metric.WithDescription("Claims registered, including re-claims by the same leasee"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create claims counter: %w", err)
	}

	releases, err := meter.Int64Counter(
		"watchlight.registry.releases",
		metric.WithDescription("Claims released"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create releases counter: %w", err)
	}

	evictions, err := meter.Int64Counter(
		"watchlight.registry.evictions",
		metric.WithDescription("Abandoned leases evicted after the grace period"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evictions counter: %w", err)
	}

	subscriptionStarts, err := meter.Int64Counter(
		"watchlight.registry.subscription_starts",
		metric.WithDescription("Upstream subscriptions started"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription starts counter: %w", err)
	}

	subscriptionJoins, err := meter.Int64Counter(
		"watchlight.registry.subscription_joins",
		metric.WithDescription("Claims that joined an already-running subscription"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription joins counter: %w", err)
	}

	return &metrics{
		claims:             claims,
		releases:           releases,
		evictions:          evictions,
		subscriptionStarts: subscriptionStarts,
		subscriptionJoins:  subscriptionJoins,
	}, nil
}

// registerCacheSizeGauge reports the number of entities in the latest
// snapshot. Registered once per client, after the store is attached.
func (c *Client) registerCacheSizeGauge() error {
	meter := otel.Meter("github.com/Amund211/watchlight/internal/registry")

	_, err := meter.Int64ObservableGauge(
		"watchlight.cache.entities",
		metric.WithDescription("Entities in the current cache snapshot"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(int64(len(c.store.Current())))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to create cache size gauge: %w", err)
	}
	return nil
}
