package redis

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestPublishEncodesPayloadAsJSON(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	ctx := context.Background()

	sub := client.Subscribe(ctx, ChannelMatchCreated)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	repo := NewEventsRepo(client)
	payload := map[string]int64{"match_id": 42}
	if err := repo.Publish(ctx, ChannelMatchCreated, payload); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive message: %v", err)
	}
	if msg.Channel != ChannelMatchCreated {
		t.Fatalf("unexpected channel: %s", msg.Channel)
	}

	var decoded map[string]int64
	if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
		t.Fatalf("decode event payload: %v", err)
	}
	if decoded["match_id"] != 42 {
		t.Fatalf("unexpected payload: %+v", decoded)
	}
}

func TestPublishRejectsEmptyChannel(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	repo := NewEventsRepo(client)
	if err := repo.Publish(context.Background(), "", struct{}{}); err == nil {
		t.Fatalf("expected error for empty channel")
	}
}
