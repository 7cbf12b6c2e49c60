package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/domain"
)

// Queue is an in-process submission queue with the same contract as the
// Redis-backed one: per-username partitions, at-least-once delivery, a
// delivery ceiling with a dead-letter list. Useful for local runs without
// Redis and for unit tests.
type Queue struct {
	partitions    []*partition
	maxDeliveries int
	maxInFlight   int

	mu   sync.Mutex
	dead []DeadLetter
	seq  int64
}

// DeadLetter is a parked message with the reason it was given up on.
type DeadLetter struct {
	Submission domain.Submission
	Reason     string
	Partition  int
}

type message struct {
	id       string
	sub      domain.Submission
	attempts int
	claimed  bool
}

type partition struct {
	mu   sync.Mutex
	msgs []*message
}

func NewQueue(partitions, maxDeliveries, maxInFlight int) *Queue {
	if partitions <= 0 {
		partitions = 1
	}
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	if maxInFlight <= 0 {
		maxInFlight = 16
	}
	q := &Queue{maxDeliveries: maxDeliveries, maxInFlight: maxInFlight}
	for i := 0; i < partitions; i++ {
		q.partitions = append(q.partitions, &partition{})
	}
	return q
}

func (q *Queue) Publish(_ context.Context, sub domain.Submission) error {
	q.mu.Lock()
	q.seq++
	id := strconv.FormatInt(q.seq, 10)
	q.mu.Unlock()

	p := q.partitions[q.Partition(sub.Username)]
	p.mu.Lock()
	p.msgs = append(p.msgs, &message{id: id, sub: sub})
	p.mu.Unlock()
	return nil
}

func (q *Queue) Partition(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(len(q.partitions)))
}

// DeadLetters returns a snapshot of parked messages.
func (q *Queue) DeadLetters() []DeadLetter {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out
}

func (q *Queue) park(sub domain.Submission, part int, reason string) {
	q.mu.Lock()
	q.dead = append(q.dead, DeadLetter{Submission: sub, Reason: reason, Partition: part})
	q.mu.Unlock()
}

// ShardSource binds shard index of shardCount to its subset of partitions.
func (q *Queue) ShardSource(shard, shardCount int) (*ShardSource, error) {
	if shardCount <= 0 || shard < 0 || shard >= shardCount {
		return nil, fmt.Errorf("invalid shard %d of %d", shard, shardCount)
	}
	if shardCount > len(q.partitions) {
		return nil, fmt.Errorf("shard count %d exceeds partition count %d", shardCount, len(q.partitions))
	}
	src := &ShardSource{queue: q}
	for p := shard; p < len(q.partitions); p += shardCount {
		src.partitions = append(src.partitions, p)
	}
	return src, nil
}

// ShardSource implements app.SubmissionSource over the queue's partitions.
type ShardSource struct {
	queue      *Queue
	partitions []int
}

// Claim serves each owned partition from its head, in order. Unclaimed or
// nacked messages at the head are (re)delivered; messages past the delivery
// ceiling are parked.
func (s *ShardSource) Claim(ctx context.Context) ([]app.Delivery, error) {
	for {
		if deliveries := s.tryClaim(); len(deliveries) > 0 {
			return deliveries, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func (s *ShardSource) tryClaim() []app.Delivery {
	var deliveries []app.Delivery
	for _, pi := range s.partitions {
		p := s.queue.partitions[pi]
		p.mu.Lock()
		for _, m := range p.msgs {
			if len(deliveries) >= s.queue.maxInFlight {
				break
			}
			if m.claimed {
				// Head still in flight; later messages of this partition
				// must wait to keep per-user order.
				break
			}
			m.claimed = true
			m.attempts++
			deliveries = append(deliveries, app.Delivery{
				Submission: m.sub,
				ID:         m.id,
				Partition:  pi,
				Attempt:    int64(m.attempts),
			})
		}
		p.mu.Unlock()
	}

	// Park anything over the ceiling instead of handing it out again.
	kept := deliveries[:0]
	for _, d := range deliveries {
		if d.Attempt > int64(s.queue.maxDeliveries) {
			s.remove(d)
			s.queue.park(d.Submission, d.Partition, "delivery ceiling exceeded")
			continue
		}
		kept = append(kept, d)
	}
	return kept
}

func (s *ShardSource) Ack(_ context.Context, d app.Delivery) error {
	s.remove(d)
	return nil
}

// Nack returns the message to its partition head for redelivery.
func (s *ShardSource) Nack(_ context.Context, d app.Delivery) error {
	p := s.queue.partitions[d.Partition]
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.msgs {
		if m.id == d.ID {
			m.claimed = false
			return nil
		}
	}
	return nil
}

func (s *ShardSource) DeadLetter(_ context.Context, d app.Delivery, reason string) error {
	s.remove(d)
	s.queue.park(d.Submission, d.Partition, reason)
	return nil
}

func (s *ShardSource) remove(d app.Delivery) {
	p := s.queue.partitions[d.Partition]
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, m := range p.msgs {
		if m.id == d.ID {
			p.msgs = append(p.msgs[:i], p.msgs[i+1:]...)
			return
		}
	}
}
