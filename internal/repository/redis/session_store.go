package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
)

type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) SaveSession(ctx context.Context, sid string, id *domain.Identity, ttl time.Duration) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, infra.SessionKey(sid), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStore) GetSession(ctx context.Context, sid string) (*domain.Identity, error) {
	data, err := s.client.Get(ctx, infra.SessionKey(sid)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: failed to get session: %w", err)
	}
	var id domain.Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("redis: corrupted session: %w", err)
	}
	return &id, nil
}

func (s *SessionStore) DeleteSession(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, infra.SessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete session: %w", err)
	}
	return nil
}
