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

// replaceScript делает compare-and-swap: новая запись пишется, только если старую удалили мы.
// KEYS[1] старый ключ, KEYS[2] новый; ARGV[1] значение, ARGV[2] TTL в мс (всегда > 0).
var replaceScript = redis.NewScript(`
if redis.call('DEL', KEYS[1]) == 1 then
	redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[2])
	return 1
end
return 0
`)

// refreshValue: то, что лежит под ключом orbit:refresh:<hash>
type refreshValue struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type RefreshStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRefreshStore(client *redis.Client) *RefreshStore {
	return &RefreshStore{client: client, now: time.Now}
}

func (s *RefreshStore) ttl(expiresAt time.Time) time.Duration {
	return expiresAt.Sub(s.now())
}

func (s *RefreshStore) SaveRefresh(ctx context.Context, rec *domain.RefreshRecord) error {
	ttl := s.ttl(rec.ExpiresAt)
	if ttl <= 0 {
		return nil // уже истекла, хранить нечего
	}
	data, err := json.Marshal(refreshValue{UserID: rec.UserID, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, infra.RefreshKey(rec.TokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to save refresh token: %w", err)
	}
	return nil
}

func (s *RefreshStore) FindRefresh(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error) {
	data, err := s.client.Get(ctx, infra.RefreshKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: failed to get refresh token: %w", err)
	}
	var v refreshValue
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("redis: corrupted refresh record: %w", err)
	}
	return &domain.RefreshRecord{TokenHash: tokenHash, UserID: v.UserID, CreatedAt: v.CreatedAt, ExpiresAt: v.ExpiresAt}, nil
}

func (s *RefreshStore) ReplaceRefresh(ctx context.Context, oldHash string, next *domain.RefreshRecord) error {
	data, err := json.Marshal(refreshValue{UserID: next.UserID, CreatedAt: next.CreatedAt, ExpiresAt: next.ExpiresAt})
	if err != nil {
		return err
	}
	ttlMs := s.ttl(next.ExpiresAt).Milliseconds()
	if ttlMs <= 0 {
		// старую запись не трогаем
		return fmt.Errorf("%w: replacement refresh record already expired", domain.ErrInvalidInput)
	}

	swapped, err := replaceScript.Run(ctx, s.client,
		[]string{infra.RefreshKey(oldHash), infra.RefreshKey(next.TokenHash)},
		string(data), ttlMs,
	).Int()
	if err != nil {
		return fmt.Errorf("redis: failed to rotate refresh token: %w", err)
	}
	if swapped == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *RefreshStore) DeleteRefresh(ctx context.Context, tokenHash string) error {
	if err := s.client.Del(ctx, infra.RefreshKey(tokenHash)).Err(); err != nil {
		return fmt.Errorf("redis: failed to delete refresh token: %w", err)
	}
	return nil
}
