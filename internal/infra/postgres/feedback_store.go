package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

type feedbackRow struct {
	bun.BaseModel `bun:"table:feedback"`

	ID        int64           `bun:"id,pk,autoincrement"`
	Payload   json.RawMessage `bun:"payload,type:jsonb"`
	CreatedAt time.Time       `bun:"created_at,nullzero"`
}

// FeedbackStore persists raw feedback documents.
type FeedbackStore struct {
	db *bun.DB
}

func NewFeedbackStore(db *bun.DB) *FeedbackStore {
	return &FeedbackStore{db: db}
}

func (s *FeedbackStore) SaveFeedback(ctx context.Context, payload json.RawMessage) error {
	row := &feedbackRow{Payload: payload, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}
