package memory

import (
	"context"
	"sync"

	"aptitude-quiz/internal/domain"
)

// FlashStore queues flash notes per user until they are popped.
type FlashStore struct {
	mu    sync.Mutex
	notes map[string][]domain.FlashNote
}

func NewFlashStore() *FlashStore {
	return &FlashStore{notes: make(map[string][]domain.FlashNote)}
}

func (s *FlashStore) PushFlash(_ context.Context, userID string, note domain.FlashNote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes[userID] = append(s.notes[userID], note)
	return nil
}

func (s *FlashStore) PopFlashes(_ context.Context, userID string) ([]domain.FlashNote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	notes := s.notes[userID]
	delete(s.notes, userID)
	return notes, nil
}
