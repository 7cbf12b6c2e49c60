package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"mcq-exam-service/internal/domain"
)

// QuestionStore is an in-memory question directory (useful for tests/demos).
type QuestionStore struct {
	mu   sync.RWMutex
	byID map[string]domain.Question
}

func NewQuestionStore(seed []domain.Question) *QuestionStore {
	s := &QuestionStore{byID: make(map[string]domain.Question)}
	for _, q := range seed {
		s.byID[q.ID] = q
	}
	return s
}

func (s *QuestionStore) GetQuestion(_ context.Context, testID, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.byID[questionID]
	if !ok || q.TestID != testID {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *QuestionStore) PickUnanswered(_ context.Context, testID string, answered []string) (domain.Question, error) {
	exclude := make(map[string]struct{}, len(answered))
	for _, id := range answered {
		exclude[id] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.byID))
	for id, q := range s.byID {
		if q.TestID != testID {
			continue
		}
		if _, seen := exclude[id]; seen {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return domain.Question{}, domain.ErrNoQuestionsLeft
	}
	// deterministic pick keeps tests stable
	sort.Strings(ids)
	return s.byID[ids[0]], nil
}

func (s *QuestionStore) InsertQuestion(_ context.Context, q domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[q.ID]; exists {
		return domain.ErrQuestionExists
	}
	s.byID[q.ID] = q
	return nil
}

// AnsweredStore is the in-memory issued/scored record.
type AnsweredStore struct {
	mu     sync.Mutex
	issued map[string]map[string]time.Time
	scored map[string]map[string]time.Time
}

func NewAnsweredStore() *AnsweredStore {
	return &AnsweredStore{
		issued: make(map[string]map[string]time.Time),
		scored: make(map[string]map[string]time.Time),
	}
}

func (s *AnsweredStore) RecordIssued(_ context.Context, username, questionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.issued[username] == nil {
		s.issued[username] = make(map[string]time.Time)
	}
	if _, exists := s.issued[username][questionID]; !exists {
		s.issued[username][questionID] = at
	}
	return nil
}

func (s *AnsweredStore) IssuedAt(_ context.Context, username, questionID string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.issued[username][questionID]
	return at, ok, nil
}

func (s *AnsweredStore) IssuedQuestions(_ context.Context, username string) ([]domain.AnsweredEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]domain.AnsweredEntry, 0, len(s.issued[username]))
	for id, at := range s.issued[username] {
		entries = append(entries, domain.AnsweredEntry{QuestionID: id, AnsweredAt: at})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].AnsweredAt.Equal(entries[j].AnsweredAt) {
			return entries[i].AnsweredAt.Before(entries[j].AnsweredAt)
		}
		return entries[i].QuestionID < entries[j].QuestionID
	})
	return entries, nil
}

func (s *AnsweredStore) AlreadyScored(_ context.Context, username, questionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.scored[username][questionID]
	return ok, nil
}

func (s *AnsweredStore) ClaimScored(_ context.Context, username, questionID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scored[username] == nil {
		s.scored[username] = make(map[string]time.Time)
	}
	if _, exists := s.scored[username][questionID]; exists {
		return false, nil
	}
	s.scored[username][questionID] = at
	return true, nil
}

func (s *AnsweredStore) ReleaseScored(_ context.Context, username, questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scored[username], questionID)
	return nil
}

// ScoreLedger is the in-memory marks table.
type ScoreLedger struct {
	mu    sync.Mutex
	marks map[string]int
}

func NewScoreLedger() *ScoreLedger {
	return &ScoreLedger{marks: make(map[string]int)}
}

func (l *ScoreLedger) AddMarks(_ context.Context, username string, marks int) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks[username] += marks
	return l.marks[username], nil
}

func (l *ScoreLedger) Marks(username string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.marks[username]
}

// FeedbackStore collects feedback payloads in memory.
type FeedbackStore struct {
	mu       sync.Mutex
	payloads []json.RawMessage
}

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{}
}

func (s *FeedbackStore) SaveFeedback(_ context.Context, payload json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *FeedbackStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

// ExamConfig is a fixed per-question time limit.
type ExamConfig struct {
	limit time.Duration
}

func NewExamConfig(limit time.Duration) *ExamConfig {
	return &ExamConfig{limit: limit}
}

func (e *ExamConfig) TimePerQuestion(_ context.Context) time.Duration {
	return e.limit
}
