package redis

import (
	"context"
	"sync"
	"time"

	"aptitude-quiz/internal/app"
	"aptitude-quiz/internal/timer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// livenessMargin covers the grace period and the auto-submit after the countdown ends.
const livenessMargin = timer.DefaultGracePeriod + timer.DefaultSubmitTimeout + time.Minute

// AttemptStore is a Redis-aware implementation of app.AttemptRepository.
// Countdowns live in process, so attempts stay in a local map; Redis holds
// a liveness key per attempt which keeps a participant from running the
// same quiz on two instances at once.
type AttemptStore struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger

	mu       sync.RWMutex
	attempts map[string]*app.Attempt
}

func NewAttemptStore(client *redis.Client, ttl time.Duration) *AttemptStore {
	return &AttemptStore{
		client:   client,
		ttl:      ttl,
		logger:   log.Logger.With().Str("component", "redis_attempt_store").Logger(),
		attempts: make(map[string]*app.Attempt),
	}
}

func (s *AttemptStore) Put(attempt *app.Attempt) bool {
	key := s.key(attempt.QuizID, attempt.UserID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[key]; ok {
		return false
	}
	claimed, err := s.client.SetNX(context.Background(), key, attempt.ID, s.livenessTTL(attempt)).Result()
	if err != nil {
		// redis down: fall back to local exclusivity only
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to set attempt liveness key")
	} else if !claimed {
		return false
	}
	s.attempts[key] = attempt
	return true
}

// Get also pushes out the liveness key, so added time or a pause keeps it alive.
func (s *AttemptStore) Get(quizID, userID string) (*app.Attempt, bool) {
	key := s.key(quizID, userID)
	s.mu.RLock()
	attempt, ok := s.attempts[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if err := s.client.Expire(context.Background(), key, s.livenessTTL(attempt)).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to refresh attempt liveness key")
	}
	return attempt, true
}

func (s *AttemptStore) Delete(quizID, userID string) {
	key := s.key(quizID, userID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attempts[key]; !ok {
		return
	}
	delete(s.attempts, key)
	if err := s.client.Del(context.Background(), key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to clear attempt liveness key")
	}
}

// livenessTTL is the configured TTL, raised to outlast the attempt's countdown.
func (s *AttemptStore) livenessTTL(attempt *app.Attempt) time.Duration {
	ttl := s.ttl
	if countdown := attempt.Countdown(); countdown != nil {
		if needed := time.Duration(countdown.Remaining())*time.Second + livenessMargin; needed > ttl {
			ttl = needed
		}
	}
	return ttl
}

func (s *AttemptStore) key(quizID, userID string) string {
	return "quiz:attempt:" + quizID + ":" + userID
}
