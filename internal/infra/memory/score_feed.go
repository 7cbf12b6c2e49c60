package memory

import (
	"context"
	"sync"

	"mcq-exam-service/internal/domain"
)

// ScoreFeed broadcasts score events to in-process subscribers.
type ScoreFeed struct {
	mu          sync.Mutex
	subscribers map[chan domain.ScoreEvent]struct{}
}

func NewScoreFeed() *ScoreFeed {
	return &ScoreFeed{subscribers: make(map[chan domain.ScoreEvent]struct{})}
}

func (f *ScoreFeed) Publish(_ context.Context, ev domain.ScoreEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		select {
		case ch <- ev:
		default:
			// drop the oldest event so a slow subscriber cannot block scoring
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	return nil
}

// Subscribe returns a channel of score events. The caller must invoke the
// returned cancel function to avoid leaks.
func (f *ScoreFeed) Subscribe(_ context.Context) (<-chan domain.ScoreEvent, func(), error) {
	ch := make(chan domain.ScoreEvent, 16)
	f.mu.Lock()
	f.subscribers[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}
	return ch, cancel, nil
}
