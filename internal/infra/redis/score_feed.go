package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"mcq-exam-service/internal/domain"
)

const defaultScoreChannel = "scores:events"

// ScoreFeed bridges score events from the consumer process to the HTTP
// process over Redis pub/sub.
type ScoreFeed struct {
	client  *redis.Client
	channel string
}

func NewScoreFeed(client *redis.Client) *ScoreFeed {
	return &ScoreFeed{client: client, channel: defaultScoreChannel}
}

func (f *ScoreFeed) Publish(ctx context.Context, ev domain.ScoreEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish score event: %w", err)
	}
	return nil
}

// Subscribe returns a channel of score events. The caller must invoke the
// returned cancel function to release the subscription.
func (f *ScoreFeed) Subscribe(ctx context.Context) (<-chan domain.ScoreEvent, func(), error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe score events: %w", err)
	}

	events := make(chan domain.ScoreEvent, 16)
	go func() {
		defer close(events)
		for msg := range pubsub.Channel() {
			var ev domain.ScoreEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("decode score event: %v", err)
				continue
			}
			events <- ev
		}
	}()

	cancel := func() { _ = pubsub.Close() }
	return events, cancel, nil
}
