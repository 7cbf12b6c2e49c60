package app

import (
	"time"

	"mcq-exam-service/internal/domain"
)

// Producer is the ingestion side of the pipeline: it validates a
// submission's shape, stamps it, and enqueues it. Correctness and timing
// are deliberately left to the consumer so ingestion stays cheap even when
// the scoring stores are degraded.
type Producer struct {
	publisher *Publisher
	now       func() time.Time
}

func NewProducer(publisher *Publisher) *Producer {
	return NewProducerWithClock(publisher, time.Now)
}

// NewProducerWithClock is test-only for deterministic timestamps.
func NewProducerWithClock(publisher *Publisher, now func() time.Time) *Producer {
	return &Producer{publisher: publisher, now: now}
}

// Submit stamps and enqueues an answer. The returned submission carries the
// stamped timestamp; once Submit returns nil the answer is fire-and-forget.
func (p *Producer) Submit(username, questionID, optionID string) (domain.Submission, error) {
	if username == "" || questionID == "" || optionID == "" {
		return domain.Submission{}, domain.ErrInvalidSubmission
	}
	sub := domain.Submission{
		Username:    username,
		QuestionID:  questionID,
		OptionID:    optionID,
		SubmittedAt: p.now().UTC(),
	}
	if err := p.publisher.Enqueue(sub); err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}
