package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"mcq-exam-service/internal/domain"
)

// ConsumerConfig bounds the ledger retry loop.
type ConsumerConfig struct {
	RetryCount   int           // total increment attempts before dead-lettering
	RetryBackoff time.Duration // fixed delay between attempts
}

// Consumer validates and scores submissions. Each shard processes its
// claimed partitions one message at a time, so a single user's answers are
// applied in submission order. Every business decision is terminal and
// acknowledged; only infrastructure failures leave a message unacknowledged
// for queue-level redelivery.
type Consumer struct {
	questions QuestionDirectory
	answered  AnsweredStore
	ledger    ScoreLedger
	exam      ExamConfig
	feed      ScoreFeed // optional
	cfg       ConsumerConfig
	now       func() time.Time
}

func NewConsumer(questions QuestionDirectory, answered AnsweredStore, ledger ScoreLedger, exam ExamConfig, feed ScoreFeed, cfg ConsumerConfig) *Consumer {
	return NewConsumerWithClock(questions, answered, ledger, exam, feed, cfg, time.Now)
}

// NewConsumerWithClock is test-only for deterministic timestamps.
func NewConsumerWithClock(questions QuestionDirectory, answered AnsweredStore, ledger ScoreLedger, exam ExamConfig, feed ScoreFeed, cfg ConsumerConfig, now func() time.Time) *Consumer {
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Consumer{
		questions: questions,
		answered:  answered,
		ledger:    ledger,
		exam:      exam,
		feed:      feed,
		cfg:       cfg,
		now:       now,
	}
}

// Run drives one shard goroutine per source until the context is canceled.
func (c *Consumer) Run(ctx context.Context, sources []SubmissionSource) error {
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		shard, src := i, src
		g.Go(func() error {
			return c.runShard(ctx, shard, src)
		})
	}
	return g.Wait()
}

func (c *Consumer) runShard(ctx context.Context, shard int, src SubmissionSource) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		deliveries, err := src.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("shard %d: claim: %v", shard, err)
			if !sleepCtx(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}
		for i, d := range deliveries {
			outcome, err := c.Process(ctx, d.Submission)
			if err != nil {
				// Infra failure before a terminal decision: leave this and
				// every later claimed message unacknowledged so the queue
				// redelivers them in order.
				log.Printf("shard %d: user=%s question=%s infra error: %v", shard, d.Submission.Username, d.Submission.QuestionID, err)
				c.nackFrom(ctx, src, deliveries[i:])
				sleepCtx(ctx, time.Second)
				break
			}
			c.settle(ctx, shard, src, d, outcome)
		}
	}
}

func (c *Consumer) nackFrom(ctx context.Context, src SubmissionSource, deliveries []Delivery) {
	for _, d := range deliveries {
		if err := src.Nack(ctx, d); err != nil {
			log.Printf("nack %s: %v", d.ID, err)
		}
	}
}

func (c *Consumer) settle(ctx context.Context, shard int, src SubmissionSource, d Delivery, outcome domain.Outcome) {
	sub := d.Submission
	switch outcome.Kind {
	case domain.OutcomeScored:
		log.Printf("shard %d: scored user=%s question=%s awarded=%d", shard, sub.Username, sub.QuestionID, outcome.Awarded)
		if err := src.Ack(ctx, d); err != nil {
			log.Printf("ack %s: %v", d.ID, err)
		}
	case domain.OutcomeRejected:
		log.Printf("shard %d: rejected user=%s question=%s: %s", shard, sub.Username, sub.QuestionID, outcome.Reason)
		if err := src.Ack(ctx, d); err != nil {
			log.Printf("ack %s: %v", d.ID, err)
		}
	case domain.OutcomeRetryExhausted:
		log.Printf("shard %d: dead-lettering user=%s question=%s: %s", shard, sub.Username, sub.QuestionID, outcome.Reason)
		if err := src.DeadLetter(ctx, d, outcome.Reason); err != nil {
			log.Printf("dead-letter %s: %v", d.ID, err)
		}
	}
}

// Process runs the validation pipeline for a single submission. A returned
// error means a dependency was unreachable before a terminal decision; every
// other path yields a terminal outcome.
func (c *Consumer) Process(ctx context.Context, sub domain.Submission) (domain.Outcome, error) {
	question, err := c.questions.GetQuestion(ctx, domain.TestIDForUser(sub.Username), sub.QuestionID)
	if errors.Is(err, domain.ErrQuestionNotFound) {
		return domain.Rejected("question does not exist"), nil
	}
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("lookup question: %w", err)
	}

	issuedAt, issued, err := c.answered.IssuedAt(ctx, sub.Username, sub.QuestionID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("lookup answered record: %w", err)
	}
	if !issued {
		return domain.Rejected("question was never issued to user"), nil
	}

	scored, err := c.answered.AlreadyScored(ctx, sub.Username, sub.QuestionID)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("lookup scored marker: %w", err)
	}
	if scored {
		return domain.Rejected("already scored"), nil
	}

	if !question.HasOption(sub.OptionID) {
		return domain.Rejected("option is not part of question"), nil
	}

	// elapsed == limit is still in time; only strictly later is rejected.
	limit := c.exam.TimePerQuestion(ctx)
	if elapsed := sub.SubmittedAt.Sub(issuedAt); elapsed > limit {
		return domain.Rejected(fmt.Sprintf("answered after time limit (%s > %s)", elapsed, limit)), nil
	}

	if sub.OptionID != question.CorrectOptionID {
		return domain.Rejected("incorrect answer"), nil
	}

	// Claim the idempotency key before touching the ledger so a redelivered
	// copy racing this one cannot double-increment.
	claimed, err := c.answered.ClaimScored(ctx, sub.Username, sub.QuestionID, c.now().UTC())
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("claim scored marker: %w", err)
	}
	if !claimed {
		return domain.Rejected("already scored"), nil
	}

	award := question.Award()
	total, err := c.addMarksWithRetry(ctx, sub.Username, award)
	if err != nil {
		if relErr := c.answered.ReleaseScored(ctx, sub.Username, sub.QuestionID); relErr != nil {
			log.Printf("release scored marker user=%s question=%s: %v", sub.Username, sub.QuestionID, relErr)
		}
		return domain.RetryExhausted(fmt.Sprintf("score update failed after %d attempts: %v", c.cfg.RetryCount, err)), nil
	}

	if c.feed != nil {
		ev := domain.ScoreEvent{
			Username:   sub.Username,
			QuestionID: sub.QuestionID,
			Awarded:    award,
			Marks:      total,
			ScoredAt:   c.now().UTC(),
		}
		if err := c.feed.Publish(ctx, ev); err != nil {
			log.Printf("publish score event user=%s: %v", sub.Username, err)
		}
	}
	return domain.Scored(award), nil
}

func (c *Consumer) addMarksWithRetry(ctx context.Context, username string, marks int) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryCount; attempt++ {
		total, err := c.ledger.AddMarks(ctx, username, marks)
		if err == nil {
			return total, nil
		}
		lastErr = err
		log.Printf("add marks user=%s attempt %d/%d: %v", username, attempt, c.cfg.RetryCount, err)
		if attempt < c.cfg.RetryCount && !sleepCtx(ctx, c.cfg.RetryBackoff) {
			break
		}
	}
	return 0, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
