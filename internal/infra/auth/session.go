package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

// SessionStore: key/value хранилище серверных сессий.
type SessionStore interface {
	SaveSession(ctx context.Context, sid string, id *domain.Identity, ttl time.Duration) error
	// GetSession возвращает domain.ErrNotFound для неизвестной или истекшей сессии
	GetSession(ctx context.Context, sid string) (*domain.Identity, error)
	DeleteSession(ctx context.Context, sid string) error
}

// Sessions управляет серверными сессиями, в cookie лежит только непрозрачный id.
type Sessions struct {
	store SessionStore
	ttl   time.Duration
}

func NewSessions(store SessionStore, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Sessions{store: store, ttl: ttl}
}

func (s *Sessions) TTL() time.Duration { return s.ttl }

// Start создает сессию для уже аутентифицированного пользователя.
func (s *Sessions) Start(ctx context.Context, id domain.Identity) (string, error) {
	if !id.Role.Valid() {
		return "", domain.ErrMissingRole
	}
	sid, err := newOpaqueToken()
	if err != nil {
		return "", err
	}
	if err := s.store.SaveSession(ctx, sid, &id, s.ttl); err != nil {
		return "", fmt.Errorf("failed to save session: %w", err)
	}
	return sid, nil
}

// Resolve возвращает личность сессии или domain.ErrUnauthorized.
func (s *Sessions) Resolve(ctx context.Context, sid string) (*domain.Identity, error) {
	if sid == "" {
		return nil, domain.ErrUnauthorized
	}
	id, err := s.store.GetSession(ctx, sid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if id == nil || id.ID == "" || !id.Role.Valid() {
		return nil, domain.ErrUnauthorized
	}
	return id, nil
}

// End уничтожает сессию. Идемпотентно.
func (s *Sessions) End(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	if err := s.store.DeleteSession(ctx, sid); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
