package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/domain"
)

// QuestionCache is a read-through cache in front of the question directory.
// Questions are immutable once published, so a cached copy is always valid
// until its TTL; the cache is never the source of truth. Entries are stored
// as: SET question:{testID}:{questionID} {json}
type QuestionCache struct {
	client *redis.Client
	store  app.QuestionDirectory
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionCache(client *redis.Client, store app.QuestionDirectory, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		store:  store,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) GetQuestion(ctx context.Context, testID, questionID string) (domain.Question, error) {
	key := c.key(testID, questionID)

	if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var question domain.Question
		if err := json.Unmarshal(raw, &question); err == nil {
			return question, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if raw, err := c.client.Get(ctx, key).Bytes(); err == nil {
			var question domain.Question
			if err := json.Unmarshal(raw, &question); err == nil {
				return question, nil
			}
		}

		question, err := c.store.GetQuestion(ctx, testID, questionID)
		if err != nil {
			return domain.Question{}, err
		}

		if raw, err := json.Marshal(question); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return question, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) key(testID, questionID string) string {
	return "question:" + testID + ":" + questionID
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
