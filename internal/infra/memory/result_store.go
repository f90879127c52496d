package memory

import (
	"context"
	"sync"

	"aptitude-quiz/internal/domain"
)

// ResultStore keeps submitted results per quiz, one per user.
type ResultStore struct {
	mu      sync.RWMutex
	results map[string]map[string]domain.Result
}

func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[string]map[string]domain.Result)}
}

func (s *ResultStore) SaveResult(_ context.Context, result domain.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.results[result.QuizID]
	if !ok {
		byUser = make(map[string]domain.Result)
		s.results[result.QuizID] = byUser
	}
	if _, exists := byUser[result.UserID]; exists {
		return domain.ErrAlreadySubmitted
	}
	byUser[result.UserID] = result
	return nil
}

func (s *ResultStore) HasSubmitted(_ context.Context, quizID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.results[quizID][userID]
	return ok, nil
}

func (s *ResultStore) ListResults(_ context.Context, quizID string) ([]domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Result, 0, len(s.results[quizID]))
	for _, r := range s.results[quizID] {
		out = append(out, r)
	}
	return out, nil
}
