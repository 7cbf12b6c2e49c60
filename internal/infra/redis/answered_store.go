package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"mcq-exam-service/internal/domain"
)

// AnsweredStore keeps per-user issuance and scoring state in two hashes:
//
//	HSET answered:{username} {questionID} {issuedAt}
//	HSET scored:{username}   {questionID} {scoredAt}
//
// Writes go through HSetNX, so a question id appears at most once per user
// and concurrent issuance cannot lose entries, and the scored hash doubles
// as the consumer's idempotency key.
type AnsweredStore struct {
	client *redis.Client
}

func NewAnsweredStore(client *redis.Client) *AnsweredStore {
	return &AnsweredStore{client: client}
}

func (s *AnsweredStore) RecordIssued(ctx context.Context, username, questionID string, at time.Time) error {
	err := s.client.HSetNX(ctx, s.answeredKey(username), questionID, at.UTC().Format(time.RFC3339Nano)).Err()
	if err != nil {
		return fmt.Errorf("record issued: %w", err)
	}
	return nil
}

func (s *AnsweredStore) IssuedAt(ctx context.Context, username, questionID string) (time.Time, bool, error) {
	raw, err := s.client.HGet(ctx, s.answeredKey(username), questionID).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("issued at: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse issued at: %w", err)
	}
	return ts, true, nil
}

func (s *AnsweredStore) IssuedQuestions(ctx context.Context, username string) ([]domain.AnsweredEntry, error) {
	raw, err := s.client.HGetAll(ctx, s.answeredKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("issued questions: %w", err)
	}
	entries := make([]domain.AnsweredEntry, 0, len(raw))
	for questionID, value := range raw {
		ts, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			return nil, fmt.Errorf("parse issued at for %s: %w", questionID, err)
		}
		entries = append(entries, domain.AnsweredEntry{QuestionID: questionID, AnsweredAt: ts})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AnsweredAt.Equal(entries[j].AnsweredAt) {
			return entries[i].AnsweredAt.Before(entries[j].AnsweredAt)
		}
		return entries[i].QuestionID < entries[j].QuestionID
	})
	return entries, nil
}

func (s *AnsweredStore) AlreadyScored(ctx context.Context, username, questionID string) (bool, error) {
	scored, err := s.client.HExists(ctx, s.scoredKey(username), questionID).Result()
	if err != nil {
		return false, fmt.Errorf("already scored: %w", err)
	}
	return scored, nil
}

func (s *AnsweredStore) ClaimScored(ctx context.Context, username, questionID string, at time.Time) (bool, error) {
	claimed, err := s.client.HSetNX(ctx, s.scoredKey(username), questionID, at.UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("claim scored: %w", err)
	}
	return claimed, nil
}

func (s *AnsweredStore) ReleaseScored(ctx context.Context, username, questionID string) error {
	if err := s.client.HDel(ctx, s.scoredKey(username), questionID).Err(); err != nil {
		return fmt.Errorf("release scored: %w", err)
	}
	return nil
}

func (s *AnsweredStore) answeredKey(username string) string {
	return "answered:" + username
}

func (s *AnsweredStore) scoredKey(username string) string {
	return "scored:" + username
}
