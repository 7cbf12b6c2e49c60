package app

import (
	"context"
	"log"
	"sync"
	"time"

	"mcq-exam-service/internal/domain"
)

const publishTimeout = 5 * time.Second

// Publisher hands submissions to the queue without blocking the caller.
// Publishes run on a single goroutine in enqueue order; failures are logged
// rather than surfaced, so the only caller-visible failure is a full buffer.
type Publisher struct {
	queue SubmissionQueue
	jobs  chan domain.Submission
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

func NewPublisher(queue SubmissionQueue, buffer int) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &Publisher{
		queue: queue,
		jobs:  make(chan domain.Submission, buffer),
		done:  make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Publisher) loop() {
	defer close(p.done)
	for sub := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.queue.Publish(ctx, sub); err != nil {
			log.Printf("publish failed for user=%s question=%s: %v", sub.Username, sub.QuestionID, err)
		}
		cancel()
	}
}

// Enqueue accepts a submission for publishing. It never blocks: a full
// buffer (or a closed publisher) reports ErrQueueUnavailable.
func (p *Publisher) Enqueue(sub domain.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return domain.ErrQueueUnavailable
	}
	select {
	case p.jobs <- sub:
		return nil
	default:
		return domain.ErrQueueUnavailable
	}
}

// Close drains pending publishes and stops the loop.
func (p *Publisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	<-p.done
}
