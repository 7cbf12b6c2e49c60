package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/domain"
	"mcq-exam-service/internal/infra/memory"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func testQuestion() domain.Question {
	return domain.Question{
		ID:     "q1",
		TestID: "univ_",
		Text:   "What is 2 + 2?",
		Options: []domain.Option{
			{ID: "A", Text: "3"},
			{ID: "B", Text: "4"},
			{ID: "C", Text: "5"},
			{ID: "D", Text: "22"},
		},
		CorrectOptionID: "B",
		Points:          1,
	}
}

type pipeline struct {
	questions *memory.QuestionStore
	answered  *memory.AnsweredStore
	ledger    *memory.ScoreLedger
	consumer  *app.Consumer
}

func newPipeline(t *testing.T, limit time.Duration) *pipeline {
	t.Helper()
	questions := memory.NewQuestionStore([]domain.Question{testQuestion()})
	answered := memory.NewAnsweredStore()
	memLedger := memory.NewScoreLedger()
	consumer := app.NewConsumerWithClock(questions, answered, memLedger, memory.NewExamConfig(limit), nil,
		app.ConsumerConfig{RetryCount: 3, RetryBackoff: time.Millisecond},
		func() time.Time { return t0.Add(time.Hour) },
	)
	return &pipeline{questions: questions, answered: answered, ledger: memLedger, consumer: consumer}
}

func (p *pipeline) issue(t *testing.T, username, questionID string, at time.Time) {
	t.Helper()
	if err := p.answered.RecordIssued(context.Background(), username, questionID, at); err != nil {
		t.Fatalf("record issued: %v", err)
	}
}

func submission(optionID string, at time.Time) domain.Submission {
	return domain.Submission{
		Username:    "univ_u1",
		QuestionID:  "q1",
		OptionID:    optionID,
		SubmittedAt: at,
	}
}

func TestCorrectAnswerInTimeScores(t *testing.T) {
	p := newPipeline(t, 100*time.Second)
	p.issue(t, "univ_u1", "q1", t0)

	outcome, err := p.consumer.Process(context.Background(), submission("B", t0.Add(5*time.Second)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeScored || outcome.Awarded != 1 {
		t.Fatalf("expected scored with 1 mark, got %+v", outcome)
	}
	if marks := p.ledger.Marks("univ_u1"); marks != 1 {
		t.Fatalf("expected 1 mark, got %d", marks)
	}
}

func TestWrongOptionRejectedWithoutScore(t *testing.T) {
	p := newPipeline(t, 100*time.Second)
	p.issue(t, "univ_u1", "q1", t0)

	outcome, err := p.consumer.Process(context.Background(), submission("C", t0.Add(5*time.Second)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeRejected {
		t.Fatalf("expected rejection, got %+v", outcome)
	}
	if marks := p.ledger.Marks("univ_u1"); marks != 0 {
		t.Fatalf("expected no marks, got %d", marks)
	}
}

func TestTimingBoundaryIsInclusive(t *testing.T) {
	limit := 100 * time.Second

	p := newPipeline(t, limit)
	p.issue(t, "univ_u1", "q1", t0)
	outcome, err := p.consumer.Process(context.Background(), submission("B", t0.Add(limit)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeScored {
		t.Fatalf("elapsed == limit should score, got %+v", outcome)
	}

	p = newPipeline(t, limit)
	p.issue(t, "univ_u1", "q1", t0)
	outcome, err = p.consumer.Process(context.Background(), submission("B", t0.Add(limit+time.Second)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeRejected {
		t.Fatalf("elapsed > limit should reject, got %+v", outcome)
	}
	if marks := p.ledger.Marks("univ_u1"); marks != 0 {
		t.Fatalf("expected no marks after late answer, got %d", marks)
	}
}

func TestLateCorrectAnswerNotScored(t *testing.T) {
	p := newPipeline(t, 100*time.Second)
	p.issue(t, "univ_u1", "q1", t0)

	outcome, err := p.consumer.Process(context.Background(), submission("B", t0.Add(150*time.Second)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeRejected {
		t.Fatalf("expected rejection, got %+v", outcome)
	}
	if marks := p.ledger.Marks("univ_u1"); marks != 0 {
		t.Fatalf("expected no marks, got %d", marks)
	}
}

func TestRedeliveredScoredMessageIsNoOp(t *testing.T) {
	p := newPipeline(t, 100*time.Second)
	p.issue(t, "univ_u1", "q1", t0)
	sub := submission("B", t0.Add(5*time.Second))

	if _, err := p.consumer.Process(context.Background(), sub); err != nil {
		t.Fatalf("first process: %v", err)
	}
	outcome, err := p.consumer.Process(context.Background(), sub)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if outcome.Kind != domain.OutcomeRejected {
		t.Fatalf("redelivery should be rejected, got %+v", outcome)
	}
	if marks := p.ledger.Marks("univ_u1"); marks != 1 {
		t.Fatalf("expected marks to stay 1, got %d", marks)
	}
}

func TestDuplicateQuestionScoresAtMostOnce(t *testing.T) {
	p := newPipeline(t, 100*time.Second)
	p.issue(t, "univ_u1", "q1", t0)

	// first attempt wrong, second attempt correct: only one increment ever
	if _, err := p.consumer.Process(context.Background(), submission("C", t0.Add(2*time.Second))); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := p.consumer.Process(context.Background(), submission("B", t0.Add(4*time.Second))); err != nil {
		t.Fatalf("process: %v", err)
	}
	if _, err := p.consumer.Process(context.Background(), submission("B", t0.Add(6*time.Second))); err != nil {
		t.Fatalf("process: %v", err)
	}
	if marks := p.ledger.Marks("univ_u1"); marks != 1 {
		t.Fatalf("expected exactly 1 mark, got %d", marks)
	}
}

func TestUnknownQuestionRejected(t *testing.T) {
	p := newPipeline(t, 100*time.Second)

	sub := submission("B", t0)
	sub.QuestionID = "missing"
	outcome, err := p.consumer.Process(context.Background(), sub)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeRejected {
		t.Fatalf("expected rejection, got %+v", outcome)
	}
}

func TestUnissuedQuestionRejected(t *testing.T) {
	p := newPipeline(t, 100*time.Second)

	outcome, err := p.consumer.Process(context.Background(), submission("B", t0))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeRejected {
		t.Fatalf("expected rejection for unissued question, got %+v", outcome)
	}
}

type failingLedger struct {
	calls int
}

func (l *failingLedger) AddMarks(context.Context, string, int) (int, error) {
	l.calls++
	return 0, errors.New("ledger unreachable")
}

func TestRetryExhaustionDeadLetters(t *testing.T) {
	ledger := &failingLedger{}
	questions := memory.NewQuestionStore([]domain.Question{testQuestion()})
	answered := memory.NewAnsweredStore()
	consumer := app.NewConsumer(questions, answered, ledger, memory.NewExamConfig(100*time.Second), nil,
		app.ConsumerConfig{RetryCount: 3, RetryBackoff: time.Millisecond})

	ctx := context.Background()
	if err := answered.RecordIssued(ctx, "univ_u1", "q1", t0); err != nil {
		t.Fatalf("record issued: %v", err)
	}

	outcome, err := consumer.Process(ctx, submission("B", t0.Add(5*time.Second)))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if outcome.Kind != domain.OutcomeRetryExhausted {
		t.Fatalf("expected retry exhaustion, got %+v", outcome)
	}
	if ledger.calls != 3 {
		t.Fatalf("expected 3 increment attempts, got %d", ledger.calls)
	}

	// the scored marker must be released so a replay can still score
	scored, err := answered.AlreadyScored(ctx, "univ_u1", "q1")
	if err != nil {
		t.Fatalf("already scored: %v", err)
	}
	if scored {
		t.Fatalf("scored marker should be released after retry exhaustion")
	}
}

type flakyDirectory struct {
	app.QuestionDirectory
	failures int
}

func (d *flakyDirectory) GetQuestion(ctx context.Context, testID, questionID string) (domain.Question, error) {
	if d.failures > 0 {
		d.failures--
		return domain.Question{}, errors.New("directory unreachable")
	}
	return d.QuestionDirectory.GetQuestion(ctx, testID, questionID)
}

func TestInfraErrorIsNotTerminal(t *testing.T) {
	questions := &flakyDirectory{
		QuestionDirectory: memory.NewQuestionStore([]domain.Question{testQuestion()}),
		failures:          1,
	}
	answered := memory.NewAnsweredStore()
	ledger := memory.NewScoreLedger()
	consumer := app.NewConsumer(questions, answered, ledger, memory.NewExamConfig(100*time.Second), nil,
		app.ConsumerConfig{RetryCount: 3, RetryBackoff: time.Millisecond})

	ctx := context.Background()
	if err := answered.RecordIssued(ctx, "univ_u1", "q1", t0); err != nil {
		t.Fatalf("record issued: %v", err)
	}

	if _, err := consumer.Process(ctx, submission("B", t0.Add(5*time.Second))); err == nil {
		t.Fatalf("expected infra error on first attempt")
	}
	outcome, err := consumer.Process(ctx, submission("B", t0.Add(5*time.Second)))
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if outcome.Kind != domain.OutcomeScored {
		t.Fatalf("expected scored after redelivery, got %+v", outcome)
	}
}
