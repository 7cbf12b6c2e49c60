package app

import (
	"context"
	"fmt"
	"time"

	"mcq-exam-service/internal/domain"
)

// QuestionService covers question issuance and administrative bulk insert.
type QuestionService struct {
	catalog  QuestionAdmin
	answered AnsweredStore
	now      func() time.Time
}

func NewQuestionService(catalog QuestionAdmin, answered AnsweredStore) *QuestionService {
	return &QuestionService{catalog: catalog, answered: answered, now: time.Now}
}

// IssueQuestion hands the user a question of their test they have not seen,
// recording the issue timestamp that later anchors the consumer's timing
// check. The per-user limit is enforced against the issuance record.
func (s *QuestionService) IssueQuestion(ctx context.Context, username string, limit int) (domain.Question, error) {
	entries, err := s.answered.IssuedQuestions(ctx, username)
	if err != nil {
		return domain.Question{}, fmt.Errorf("list issued questions: %w", err)
	}
	if len(entries) >= limit {
		return domain.Question{}, domain.ErrQuestionLimit
	}

	exclude := make([]string, 0, len(entries))
	for _, e := range entries {
		exclude = append(exclude, e.QuestionID)
	}
	question, err := s.catalog.PickUnanswered(ctx, domain.TestIDForUser(username), exclude)
	if err != nil {
		return domain.Question{}, err
	}
	if err := s.answered.RecordIssued(ctx, username, question.ID, s.now().UTC()); err != nil {
		return domain.Question{}, fmt.Errorf("record issued question: %w", err)
	}
	return question, nil
}

// InsertResult reports the fate of one question in a bulk insert.
type InsertResult struct {
	Question domain.Question
	Err      error
}

// AddQuestions validates and inserts a batch, keeping per-question results
// so callers can report partial success.
func (s *QuestionService) AddQuestions(ctx context.Context, questions []domain.Question) []InsertResult {
	results := make([]InsertResult, 0, len(questions))
	for _, q := range questions {
		res := InsertResult{Question: q}
		if err := domain.ValidateQuestion(q); err != nil {
			res.Err = err
		} else if err := s.catalog.InsertQuestion(ctx, q); err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	return results
}
