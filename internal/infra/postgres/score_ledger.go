package postgres

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// ScoreLedger holds per-user cumulative marks. The increment is a single
// upsert so concurrent and redelivered updates cannot lose each other.
type ScoreLedger struct {
	db *bun.DB
}

func NewScoreLedger(db *bun.DB) *ScoreLedger {
	return &ScoreLedger{db: db}
}

// AddMarks atomically adds marks for the user and returns the new total.
func (l *ScoreLedger) AddMarks(ctx context.Context, username string, marks int) (int, error) {
	var total int
	err := l.db.QueryRowContext(ctx,
		`INSERT INTO scores (username, marks) VALUES (?, ?)
		 ON CONFLICT (username) DO UPDATE SET marks = scores.marks + EXCLUDED.marks, updated_at = now()
		 RETURNING marks`,
		username, marks).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("add marks: %w", err)
	}
	return total, nil
}

// Marks returns the user's current total; zero if the user never scored.
func (l *ScoreLedger) Marks(ctx context.Context, username string) (int, error) {
	var total int
	err := l.db.QueryRowContext(ctx,
		`SELECT COALESCE((SELECT marks FROM scores WHERE username = ?), 0)`, username).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("read marks: %w", err)
	}
	return total, nil
}
