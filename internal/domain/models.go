package domain

import (
	"strings"
	"time"
)

// Option represents one of a question's four answer choices.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question with exactly one correct option.
// Questions are immutable once published for a test.
type Question struct {
	ID              string   `json:"question_id"`
	TestID          string   `json:"test_id"`
	Text            string   `json:"text"`
	Options         []Option `json:"options"`
	CorrectOptionID string   `json:"correct_option_id"`
	Points          int      `json:"points"` // defaults to 1 if zero
}

// Award returns the marks this question is worth when answered correctly.
func (q Question) Award() int {
	if q.Points > 0 {
		return q.Points
	}
	return 1
}

// HasOption reports whether optionID identifies one of the question's options.
func (q Question) HasOption(optionID string) bool {
	for _, opt := range q.Options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

// Submission is a single answer flowing through the queue. Immutable once
// enqueued; SubmittedAt is stamped by the producer at ingestion time.
type Submission struct {
	Username    string
	QuestionID  string
	OptionID    string
	SubmittedAt time.Time
}

// AnsweredEntry records that a question was issued to a user at a point in
// time. The issue timestamp is the baseline for the consumer's timing check.
type AnsweredEntry struct {
	QuestionID string
	AnsweredAt time.Time
}

// ScoreEntry is a user's cumulative marks in the ledger.
type ScoreEntry struct {
	Username string `json:"username"`
	Marks    int    `json:"marks"`
}

// ScoreEvent announces a successful score update.
type ScoreEvent struct {
	Username   string    `json:"username"`
	QuestionID string    `json:"questionId"`
	Awarded    int       `json:"awarded"`
	Marks      int       `json:"marks"`
	ScoredAt   time.Time `json:"scoredAt"`
}

// TestIDForUser derives the exam a username belongs to: the prefix before
// the first underscore, underscore included (e.g. "univA_42" -> "univA_").
func TestIDForUser(username string) string {
	if i := strings.Index(username, "_"); i >= 0 {
		return username[:i+1]
	}
	return username + "_"
}
