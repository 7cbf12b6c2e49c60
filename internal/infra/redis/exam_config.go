package redis

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const timePerQuestionKey = "exam:time_per_question"

// ExamConfig reads the per-question time limit (seconds) from Redis,
// falling back to a safe default when the key is absent or unreadable so a
// config outage never aborts scoring.
type ExamConfig struct {
	client   *redis.Client
	fallback time.Duration
}

func NewExamConfig(client *redis.Client, fallback time.Duration) *ExamConfig {
	return &ExamConfig{client: client, fallback: fallback}
}

func (e *ExamConfig) TimePerQuestion(ctx context.Context) time.Duration {
	raw, err := e.client.Get(ctx, timePerQuestionKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("read %s: %v (using default %s)", timePerQuestionKey, err, e.fallback)
		}
		return e.fallback
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return e.fallback
	}
	return time.Duration(secs) * time.Second
}
