package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aptitude-quiz/internal/domain"
	"github.com/redis/go-redis/v9"
)

// FlashStore keeps each user's pending flash notes in a Redis list:
// RPUSH quiz:flash:{userID} {json}
type FlashStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewFlashStore(client *redis.Client, ttl time.Duration) *FlashStore {
	return &FlashStore{client: client, ttl: ttl}
}

func (s *FlashStore) PushFlash(ctx context.Context, userID string, note domain.FlashNote) error {
	payload, err := json.Marshal(note)
	if err != nil {
		return err
	}
	key := s.key(userID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push flash: %w", err)
	}
	return nil
}

// PopFlashes reads and clears the list atomically.
func (s *FlashStore) PopFlashes(ctx context.Context, userID string) ([]domain.FlashNote, error) {
	key := s.key(userID)
	var lrange *redis.StringSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		lrange = pipe.LRange(ctx, key, 0, -1)
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("pop flashes: %w", err)
	}

	raw := lrange.Val()
	notes := make([]domain.FlashNote, 0, len(raw))
	for _, item := range raw {
		var note domain.FlashNote
		if err := json.Unmarshal([]byte(item), &note); err != nil {
			continue
		}
		note.Severity = domain.ParseSeverity(string(note.Severity))
		notes = append(notes, note)
	}
	return notes, nil
}

func (s *FlashStore) key(userID string) string {
	return "quiz:flash:" + userID
}
