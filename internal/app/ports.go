package app

import (
	"context"
	"encoding/json"
	"time"

	"mcq-exam-service/internal/domain"
)

// QuestionDirectory resolves question content (through cache/backing store).
type QuestionDirectory interface {
	GetQuestion(ctx context.Context, testID, questionID string) (domain.Question, error)
}

// QuestionAdmin is the administrative surface of the question store.
type QuestionAdmin interface {
	InsertQuestion(ctx context.Context, q domain.Question) error
	PickUnanswered(ctx context.Context, testID string, answered []string) (domain.Question, error)
}

// AnsweredStore tracks which questions were issued to a user and which have
// already been scored. "Issued" and "scored" are distinct states: the issue
// timestamp is the timing baseline, the scored marker is the idempotency key.
type AnsweredStore interface {
	// RecordIssued appends an issuance entry at most once per (user, question).
	RecordIssued(ctx context.Context, username, questionID string, at time.Time) error
	// IssuedAt returns when the question was issued to the user, if ever.
	IssuedAt(ctx context.Context, username, questionID string) (time.Time, bool, error)
	// IssuedQuestions lists the user's issuance entries in issue order.
	IssuedQuestions(ctx context.Context, username string) ([]domain.AnsweredEntry, error)
	// AlreadyScored reports whether the pair has been scored before.
	AlreadyScored(ctx context.Context, username, questionID string) (bool, error)
	// ClaimScored atomically claims the scored marker; false means another
	// run already holds it.
	ClaimScored(ctx context.Context, username, questionID string, at time.Time) (bool, error)
	// ReleaseScored drops the marker so a replay may score after a failed update.
	ReleaseScored(ctx context.Context, username, questionID string) error
}

// ScoreLedger applies atomic mark increments and returns the new total.
type ScoreLedger interface {
	AddMarks(ctx context.Context, username string, marks int) (int, error)
}

// FeedbackStore persists raw feedback payloads.
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, payload json.RawMessage) error
}

// ExamConfig exposes the exam's per-question time limit. Implementations
// fall back to a safe default when the backing read fails.
type ExamConfig interface {
	TimePerQuestion(ctx context.Context) time.Duration
}

// ScoreFeed fans out score events to interested listeners.
type ScoreFeed interface {
	Publish(ctx context.Context, ev domain.ScoreEvent) error
	Subscribe(ctx context.Context) (<-chan domain.ScoreEvent, func(), error)
}

// SubmissionQueue accepts submissions, partitioned by username so one user's
// answers keep their order.
type SubmissionQueue interface {
	Publish(ctx context.Context, sub domain.Submission) error
}

// Delivery is one claimed message awaiting a terminal decision.
type Delivery struct {
	Submission domain.Submission
	ID         string
	Partition  int
	Attempt    int64
}

// SubmissionSource feeds one consumer shard from its owned partitions.
// Claim returns deliveries in partition order; a delivery must end in Ack or
// DeadLetter, or be Nacked for queue-level redelivery.
type SubmissionSource interface {
	Claim(ctx context.Context) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Nack(ctx context.Context, d Delivery) error
	DeadLetter(ctx context.Context, d Delivery, reason string) error
}
