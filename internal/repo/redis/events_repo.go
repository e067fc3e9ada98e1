package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const (
	ChannelMatchCreated = "events:match_created"
	ChannelMessageSent  = "events:message_sent"
)

// EventsRepo relays domain events to the real-time delivery side over redis
// pub/sub. Emitters treat publish failures as non-fatal.
type EventsRepo struct {
	client *goredis.Client
}

func NewEventsRepo(client *goredis.Client) *EventsRepo {
	return &EventsRepo{client: client}
}

func (r *EventsRepo) Publish(ctx context.Context, channel string, payload any) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if channel == "" {
		return fmt.Errorf("event channel is required")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}

	if err := r.client.Publish(ctx, channel, body).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
