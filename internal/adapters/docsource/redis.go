package docsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"golang.org/x/time/rate"
)

const (
	redisDocPrefix     = "watchlight:doc:"
	redisChannelPrefix = "watchlight:changes:"

	eventChange  = "change"
	eventRemoved = "removed"

	maxInitialValueAttempts = 5
)

type redisEvent struct {
	Event    string `json:"event"`
	Document any    `json:"document,omitempty"`
}

// Redis is a document source backed by a Redis instance: documents live under
// string keys and changes are fanned out over one pub/sub channel per key.
type Redis struct {
	client  *redis.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewRedis(client *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		// Throttle retries of the initial read so a struggling Redis
		// is not hammered by every new subscription.
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		logger:  logger,
	}
}

func (r *Redis) Subscribe(ctx context.Context, key string, callbacks Callbacks) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	pubsub := r.client.Subscribe(ctx, redisChannelPrefix+key)
	// Confirm the subscription before reading the initial value, so no
	// update published in between is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to document channel: %w", err)
	}

	go r.deliver(ctx, key, pubsub, callbacks)

	return func() {
		cancel()
		_ = pubsub.Close()
	}, nil
}

func (r *Redis) deliver(ctx context.Context, key string, pubsub *redis.PubSub, callbacks Callbacks) {
	document, found, err := r.initialValue(ctx, key)
	switch {
	case ctx.Err() != nil:
		return
	case err != nil:
		if callbacks.OnError != nil {
			callbacks.OnError(err)
		}
	case found:
		if callbacks.OnChange != nil {
			callbacks.OnChange(document)
		}
	}

	for message := range pubsub.Channel() {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeRedisEvent(message.Payload)
		if err != nil {
			r.logger.Error("Dropping malformed document event", "key", key, "error", err.Error())
			if callbacks.OnError != nil {
				callbacks.OnError(err)
			}
			continue
		}
		switch event.Event {
		case eventChange:
			if callbacks.OnChange != nil {
				callbacks.OnChange(event.Document)
			}
		case eventRemoved:
			if callbacks.OnRemoved != nil {
				callbacks.OnRemoved()
			}
		default:
			r.logger.Error("Dropping document event of unknown type", "key", key, "event", event.Event)
		}
	}
}

func (r *Redis) initialValue(ctx context.Context, key string) (any, bool, error) {
	for attempt := 1; ; attempt++ {
		payload, err := r.client.Get(ctx, redisDocPrefix+key).Result()
		if err == redis.Nil {
			return nil, false, nil
		}
		if err == nil {
			var document any
			if err := json.Unmarshal([]byte(payload), &document); err != nil {
				return nil, false, fmt.Errorf("failed to decode stored document: %w", err)
			}
			return document, true, nil
		}
		if attempt >= maxInitialValueAttempts {
			return nil, false, fmt.Errorf("failed to read initial document value: %w", err)
		}
		r.logger.Error("Retrying initial document read", "key", key, "attempt", attempt, "error", err.Error())
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, false, fmt.Errorf("gave up retrying initial document value: %w", err)
		}
	}
}

// Put stores a document and publishes the change event. Used by publishers
// feeding the store, not by the cache itself.
func (r *Redis) Put(ctx context.Context, key string, document any) error {
	serialized, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to serialize document: %w", err)
	}
	if err := r.client.Set(ctx, redisDocPrefix+key, serialized, 0).Err(); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return r.publish(ctx, key, redisEvent{Event: eventChange, Document: document})
}

// Delete removes a document and publishes the removal event.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisDocPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return r.publish(ctx, key, redisEvent{Event: eventRemoved})
}

func (r *Redis) publish(ctx context.Context, key string, event redisEvent) error {
	serialized, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize document event: %w", err)
	}
	if err := r.client.Publish(ctx, redisChannelPrefix+key, serialized).Err(); err != nil {
		return fmt.Errorf("failed to publish document event: %w", err)
	}
	return nil
}

func decodeRedisEvent(payload string) (redisEvent, error) {
	var event redisEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return redisEvent{}, fmt.Errorf("failed to decode document event: %w", err)
	}
	if event.Event == "" {
		return redisEvent{}, fmt.Errorf("document event missing type")
	}
	return event, nil
}

var _ Source = (*Redis)(nil)
