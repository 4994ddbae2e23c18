package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/watchroom/engine/internal/repository/pubsub"
)

type bus struct {
	rc     *redis.Client
	logger *slog.Logger
}

func NewBus(rc *redis.Client, logger *slog.Logger) *bus {
	return &bus{
		rc:     rc,
		logger: logger,
	}
}

func (b *bus) Publish(ctx context.Context, topic, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	data, err := json.Marshal(pubsub.Event{Event: event, Payload: raw})
	if err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	if err := b.rc.Publish(ctx, topic, data).Err(); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	return nil
}

type subscription struct {
	ps     *redis.PubSub
	events chan pubsub.Event
}

func (b *bus) Subscribe(ctx context.Context, topic string) (pubsub.Subscription, error) {
	ps := b.rc.Subscribe(ctx, topic)

	// block until the subscription is confirmed so a publish immediately
	// after Subscribe returns is not missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	sub := &subscription{
		ps:     ps,
		events: make(chan pubsub.Event, 16),
	}

	go func() {
		defer close(sub.events)
		for msg := range ps.Channel() {
			var event pubsub.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Debug("dropping malformed event", "topic", topic, "error", err)
				continue
			}

			sub.events <- event
		}
	}()

	return sub, nil
}

func (s *subscription) Events() <-chan pubsub.Event {
	return s.events
}

func (s *subscription) Close() error {
	return s.ps.Close()
}
