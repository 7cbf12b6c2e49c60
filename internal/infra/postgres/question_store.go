package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mcq-exam-service/internal/domain"
)

const uniqueViolation = "23505"

// QuestionStore keeps published questions in Postgres, one JSONB row per
// question keyed by id and scoped to a test.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func (s *QuestionStore) GetQuestion(ctx context.Context, testID, questionID string) (domain.Question, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM questions WHERE test_id=$1 AND id=$2`, testID, questionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	var question domain.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return question, nil
}

// PickUnanswered returns a random question of the test that is not in the
// answered set.
func (s *QuestionStore) PickUnanswered(ctx context.Context, testID string, answered []string) (domain.Question, error) {
	if answered == nil {
		answered = []string{}
	}
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM questions WHERE test_id=$1 AND NOT (id = ANY($2)) ORDER BY random() LIMIT 1`,
		testID, answered).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrNoQuestionsLeft
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("pick question: %w", err)
	}
	var question domain.Question
	if err := json.Unmarshal(raw, &question); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return question, nil
}

func (s *QuestionStore) InsertQuestion(ctx context.Context, q domain.Question) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal question: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO questions (id, test_id, data) VALUES ($1, $2, $3)`, q.ID, q.TestID, data)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrQuestionExists
	}
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}
