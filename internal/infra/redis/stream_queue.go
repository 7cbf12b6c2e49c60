package redis

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/domain"
)

// StreamConfig tunes the submission queue.
type StreamConfig struct {
	Prefix        string        // stream name prefix; partitions live at {prefix}:{n}
	Group         string        // consumer group shared by all shards
	Partitions    int           // number of partition streams
	Visibility    time.Duration // lease window before an unacked message may be reclaimed
	MaxDeliveries int           // delivery ceiling before a message is parked
	MaxInFlight   int           // max messages one shard claims per batch
}

func (c *StreamConfig) applyDefaults() {
	if c.Prefix == "" {
		c.Prefix = "submissions"
	}
	if c.Group == "" {
		c.Group = "scorers"
	}
	if c.Partitions <= 0 {
		c.Partitions = 4
	}
	if c.Visibility <= 0 {
		c.Visibility = 30 * time.Second
	}
	if c.MaxDeliveries <= 0 {
		c.MaxDeliveries = 5
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 16
	}
}

// StreamQueue is the submission queue on Redis Streams: one stream per
// partition, one consumer group, at-least-once delivery. Submissions are
// partitioned by username so a single user's answers stay ordered within
// one stream, and messages past the delivery ceiling are parked on a
// dead-letter stream instead of circulating forever.
type StreamQueue struct {
	client *redis.Client
	cfg    StreamConfig
}

func NewStreamQueue(client *redis.Client, cfg StreamConfig) *StreamQueue {
	cfg.applyDefaults()
	return &StreamQueue{client: client, cfg: cfg}
}

// EnsureGroups creates the consumer group on every partition stream.
func (q *StreamQueue) EnsureGroups(ctx context.Context) error {
	for p := 0; p < q.cfg.Partitions; p++ {
		err := q.client.XGroupCreateMkStream(ctx, q.stream(p), q.cfg.Group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("create group on %s: %w", q.stream(p), err)
		}
	}
	return nil
}

// Publish appends a submission to its user's partition stream.
func (q *StreamQueue) Publish(ctx context.Context, sub domain.Submission) error {
	payload, err := domain.EncodeSubmission(sub)
	if err != nil {
		return err
	}
	return q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream(q.Partition(sub.Username)),
		Values: map[string]interface{}{"payload": payload},
	}).Err()
}

// Partition maps a username to its partition stream.
func (q *StreamQueue) Partition(username string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(username))
	return int(h.Sum32() % uint32(q.cfg.Partitions))
}

// ShardSource binds shard index of shardCount to its subset of partitions.
// Shard count must not exceed the partition count, or ordering per user
// could not be preserved.
func (q *StreamQueue) ShardSource(shard, shardCount int) (*ShardSource, error) {
	if shardCount <= 0 || shard < 0 || shard >= shardCount {
		return nil, fmt.Errorf("invalid shard %d of %d", shard, shardCount)
	}
	if shardCount > q.cfg.Partitions {
		return nil, fmt.Errorf("shard count %d exceeds partition count %d", shardCount, q.cfg.Partitions)
	}
	src := &ShardSource{
		queue:    q,
		consumer: fmt.Sprintf("%s-shard-%d", q.cfg.Group, shard),
	}
	for p := shard; p < q.cfg.Partitions; p += shardCount {
		src.partitions = append(src.partitions, p)
	}
	return src, nil
}

// DeadLetters returns up to count parked messages, oldest first.
func (q *StreamQueue) DeadLetters(ctx context.Context, count int64) ([]redis.XMessage, error) {
	return q.client.XRangeN(ctx, q.deadStream(), "-", "+", count).Result()
}

func (q *StreamQueue) stream(partition int) string {
	return fmt.Sprintf("%s:%d", q.cfg.Prefix, partition)
}

func (q *StreamQueue) deadStream() string {
	return q.cfg.Prefix + ":dlq"
}

// ShardSource implements app.SubmissionSource against the shard's partitions.
type ShardSource struct {
	queue      *StreamQueue
	consumer   string
	partitions []int
}

// Claim first re-serves pending messages (this shard's own unacked ones, or
// messages whose lease expired on a dead shard), then reads fresh entries.
// Messages over the delivery ceiling or with undecodable payloads are parked
// and never returned.
func (s *ShardSource) Claim(ctx context.Context) ([]app.Delivery, error) {
	for _, p := range s.partitions {
		deliveries, err := s.reclaim(ctx, p)
		if err != nil {
			return nil, err
		}
		if len(deliveries) > 0 {
			return deliveries, nil
		}
	}
	return s.readFresh(ctx)
}

func (s *ShardSource) reclaim(ctx context.Context, partition int) ([]app.Delivery, error) {
	q := s.queue
	stream := q.stream(partition)
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  q.cfg.Group,
		Start:  "-",
		End:    "+",
		Count:  int64(q.cfg.MaxInFlight),
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("pending %s: %w", stream, err)
	}

	var deliveries []app.Delivery
	for _, entry := range pending {
		minIdle := q.cfg.Visibility
		if entry.Consumer == s.consumer {
			// Our own pending entries were nacked (or survived a restart
			// under the same consumer name); reclaim them immediately.
			minIdle = 0
		} else if entry.Idle < q.cfg.Visibility {
			continue // still leased by a live shard
		}
		msgs, err := q.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   stream,
			Group:    q.cfg.Group,
			Consumer: s.consumer,
			MinIdle:  minIdle,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("claim %s/%s: %w", stream, entry.ID, err)
		}
		if len(msgs) == 0 {
			continue // won by another shard meanwhile
		}
		attempt := entry.RetryCount + 1
		if attempt > int64(q.cfg.MaxDeliveries) {
			if err := s.park(ctx, partition, msgs[0], "delivery ceiling exceeded"); err != nil {
				return nil, err
			}
			continue
		}
		d, ok, err := s.decode(ctx, partition, msgs[0], attempt)
		if err != nil {
			return nil, err
		}
		if ok {
			deliveries = append(deliveries, d)
		}
	}
	return deliveries, nil
}

func (s *ShardSource) readFresh(ctx context.Context) ([]app.Delivery, error) {
	q := s.queue
	streams := make([]string, 0, len(s.partitions)*2)
	for _, p := range s.partitions {
		streams = append(streams, q.stream(p))
	}
	for range s.partitions {
		streams = append(streams, ">")
	}
	res, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: s.consumer,
		Streams:  streams,
		Count:    int64(q.cfg.MaxInFlight),
		Block:    time.Second,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("read group: %w", err)
	}

	var deliveries []app.Delivery
	for _, sr := range res {
		partition := s.partitionOf(sr.Stream)
		for _, msg := range sr.Messages {
			d, ok, err := s.decode(ctx, partition, msg, 1)
			if err != nil {
				return nil, err
			}
			if ok {
				deliveries = append(deliveries, d)
			}
		}
	}
	return deliveries, nil
}

// decode parses a claimed message; undecodable payloads are parked
// immediately (a malformed message can never reach a terminal decision).
func (s *ShardSource) decode(ctx context.Context, partition int, msg redis.XMessage, attempt int64) (app.Delivery, bool, error) {
	raw, _ := msg.Values["payload"].(string)
	sub, err := domain.DecodeSubmission([]byte(raw))
	if err != nil {
		if parkErr := s.park(ctx, partition, msg, "malformed payload: "+err.Error()); parkErr != nil {
			return app.Delivery{}, false, parkErr
		}
		return app.Delivery{}, false, nil
	}
	return app.Delivery{
		Submission: sub,
		ID:         msg.ID,
		Partition:  partition,
		Attempt:    attempt,
	}, true, nil
}

func (s *ShardSource) park(ctx context.Context, partition int, msg redis.XMessage, reason string) error {
	q := s.queue
	payload, _ := msg.Values["payload"].(string)
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.deadStream(),
		Values: map[string]interface{}{
			"payload":   payload,
			"reason":    reason,
			"partition": partition,
		},
	})
	pipe.XAck(ctx, q.stream(partition), q.cfg.Group, msg.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("park %s: %w", msg.ID, err)
	}
	return nil
}

func (s *ShardSource) Ack(ctx context.Context, d app.Delivery) error {
	return s.queue.client.XAck(ctx, s.queue.stream(d.Partition), s.queue.cfg.Group, d.ID).Err()
}

// Nack leaves the message pending under this consumer; the next Claim
// re-serves it, counting toward the delivery ceiling.
func (s *ShardSource) Nack(_ context.Context, _ app.Delivery) error {
	return nil
}

func (s *ShardSource) DeadLetter(ctx context.Context, d app.Delivery, reason string) error {
	payload, err := domain.EncodeSubmission(d.Submission)
	if err != nil {
		return err
	}
	return s.park(ctx, d.Partition, redis.XMessage{
		ID:     d.ID,
		Values: map[string]interface{}{"payload": string(payload)},
	}, reason)
}

func (s *ShardSource) partitionOf(stream string) int {
	for _, p := range s.partitions {
		if s.queue.stream(p) == stream {
			return p
		}
	}
	return 0
}
