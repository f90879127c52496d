package memory

import (
	"sync"

	"aptitude-quiz/internal/app"
)

// AttemptStore is an in-memory implementation of app.AttemptRepository.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{attempts: make(map[string]*app.Attempt)}
}

func attemptKey(quizID, userID string) string {
	return quizID + "/" + userID
}

func (s *AttemptStore) Put(attempt *app.Attempt) bool {
	key := attemptKey(attempt.QuizID, attempt.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[key]; ok {
		return false
	}
	s.attempts[key] = attempt
	return true
}

func (s *AttemptStore) Get(quizID, userID string) (*app.Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptKey(quizID, userID)]
	return attempt, ok
}

func (s *AttemptStore) Delete(quizID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, attemptKey(quizID, userID))
}

// Len reports how many attempts are live.
func (s *AttemptStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.attempts)
}
