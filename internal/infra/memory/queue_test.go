package memory

import (
	"context"
	"testing"
	"time"

	"mcq-exam-service/internal/app"
	"mcq-exam-service/internal/domain"
)

func submissionFor(username, questionID string) domain.Submission {
	return domain.Submission{
		Username:    username,
		QuestionID:  questionID,
		OptionID:    "A",
		SubmittedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func mustClaim(t *testing.T, src *ShardSource) []app.Delivery {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	deliveries, err := src.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	return deliveries
}

func TestQueuePreservesPerUserOrder(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(4, 5, 16)
	for _, id := range []string{"q1", "q2", "q3"} {
		if err := q.Publish(ctx, submissionFor("univ_u1", id)); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	src, err := q.ShardSource(0, 1)
	if err != nil {
		t.Fatalf("shard source: %v", err)
	}

	got := mustClaim(t, src)
	want := []string{"q1", "q2", "q3"}
	if len(got) != len(want) {
		t.Fatalf("claimed %d deliveries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Submission.QuestionID != want[i] {
			t.Fatalf("delivery %d is %s, want %s", i, got[i].Submission.QuestionID, want[i])
		}
	}
}

func TestClaimedHeadBlocksLaterMessages(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, 5, 16)
	_ = q.Publish(ctx, submissionFor("univ_u1", "q1"))
	src, err := q.ShardSource(0, 1)
	if err != nil {
		t.Fatalf("shard source: %v", err)
	}

	first := mustClaim(t, src)
	if len(first) != 1 || first[0].Submission.QuestionID != "q1" {
		t.Fatalf("unexpected first claim %+v", first)
	}

	// While q1 is in flight, a newly published q2 on the same partition
	// must not be handed out.
	_ = q.Publish(ctx, submissionFor("univ_u1", "q2"))
	if extra := src.tryClaim(); len(extra) != 0 {
		t.Fatalf("claimed past an in-flight head: %+v", extra)
	}
}

func TestNackRedeliversWithHigherAttempt(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, 5, 16)
	_ = q.Publish(ctx, submissionFor("univ_u1", "q1"))
	src, err := q.ShardSource(0, 1)
	if err != nil {
		t.Fatalf("shard source: %v", err)
	}

	first := src.tryClaim()
	if len(first) != 1 || first[0].Attempt != 1 {
		t.Fatalf("unexpected first claim %+v", first)
	}
	if err := src.Nack(ctx, first[0]); err != nil {
		t.Fatalf("nack: %v", err)
	}

	second := src.tryClaim()
	if len(second) != 1 || second[0].Attempt != 2 {
		t.Fatalf("expected redelivery with attempt 2, got %+v", second)
	}
	if err := src.Ack(ctx, second[0]); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if leftover := src.tryClaim(); len(leftover) != 0 {
		t.Fatalf("acked message redelivered: %+v", leftover)
	}
}

func TestDeliveryCeilingParksMessage(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(1, 2, 16)
	_ = q.Publish(ctx, submissionFor("univ_u1", "q1"))
	src, err := q.ShardSource(0, 1)
	if err != nil {
		t.Fatalf("shard source: %v", err)
	}

	for i := 0; i < 2; i++ {
		got := src.tryClaim()
		if len(got) != 1 {
			t.Fatalf("attempt %d: claimed %d deliveries", i+1, len(got))
		}
		_ = src.Nack(ctx, got[0])
	}

	// Third delivery exceeds the ceiling of 2 and is parked instead.
	if got := src.tryClaim(); len(got) != 0 {
		t.Fatalf("over-ceiling message was handed out: %+v", got)
	}
	dead := q.DeadLetters()
	if len(dead) != 1 {
		t.Fatalf("expected one dead letter, got %d", len(dead))
	}
	if dead[0].Submission.QuestionID != "q1" || dead[0].Reason == "" {
		t.Fatalf("unexpected dead letter %+v", dead[0])
	}
}

func TestPartitionStableForUsername(t *testing.T) {
	q := NewQueue(8, 5, 16)
	p := q.Partition("univ_u1")
	for i := 0; i < 10; i++ {
		if q.Partition("univ_u1") != p {
			t.Fatal("partition changed between calls")
		}
	}
	if p < 0 || p >= 8 {
		t.Fatalf("partition %d out of range", p)
	}
}

func TestShardSourceValidation(t *testing.T) {
	q := NewQueue(2, 5, 16)
	if _, err := q.ShardSource(0, 4); err == nil {
		t.Fatal("expected error when shard count exceeds partitions")
	}
	if _, err := q.ShardSource(2, 2); err == nil {
		t.Fatal("expected error for out-of-range shard index")
	}
	if _, err := q.ShardSource(1, 2); err != nil {
		t.Fatalf("valid shard rejected: %v", err)
	}
}

func TestShardsPartitionTheKeySpace(t *testing.T) {
	q := NewQueue(4, 5, 16)
	src0, err := q.ShardSource(0, 2)
	if err != nil {
		t.Fatalf("shard 0: %v", err)
	}
	src1, err := q.ShardSource(1, 2)
	if err != nil {
		t.Fatalf("shard 1: %v", err)
	}
	seen := map[int]bool{}
	for _, p := range append(append([]int{}, src0.partitions...), src1.partitions...) {
		if seen[p] {
			t.Fatalf("partition %d owned by both shards", p)
		}
		seen[p] = true
	}
	if len(seen) != 4 {
		t.Fatalf("shards cover %d partitions, want 4", len(seen))
	}
}
