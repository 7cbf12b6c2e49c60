package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"mcq-exam-service/internal/domain"
)

func TestScoreFeedDeliversPublishedEvents(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	defer client.Close()

	feed := NewScoreFeed(client)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, unsubscribe, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	want := domain.ScoreEvent{
		Username:   "univ_u1",
		QuestionID: "q1",
		Awarded:    1,
		Marks:      3,
		ScoredAt:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	if err := feed.Publish(ctx, want); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case got := <-events:
		if got.Username != want.Username || got.QuestionID != want.QuestionID ||
			got.Awarded != want.Awarded || got.Marks != want.Marks {
			t.Fatalf("got event %+v, want %+v", got, want)
		}
		if !got.ScoredAt.Equal(want.ScoredAt) {
			t.Fatalf("scored at %v, want %v", got.ScoredAt, want.ScoredAt)
		}
	case <-ctx.Done():
		t.Fatal("event never delivered")
	}
}

func TestScoreFeedUnsubscribeClosesChannel(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)
	defer client.Close()

	feed := NewScoreFeed(client)
	ctx := context.Background()

	events, unsubscribe, err := feed.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	unsubscribe()

	select {
	case _, open := <-events:
		if open {
			t.Fatal("channel delivered an event after unsubscribe")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}
