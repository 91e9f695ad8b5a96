package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

type sessionEntry struct {
	identity  domain.Identity
	expiresAt time.Time
}

type SessionRepo struct {
	mu       sync.Mutex
	sessions map[string]sessionEntry
	now      func() time.Time
}

func NewSessionRepo() *SessionRepo {
	return &SessionRepo{sessions: make(map[string]sessionEntry), now: time.Now}
}

func (r *SessionRepo) SaveSession(_ context.Context, sid string, id *domain.Identity, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = sessionEntry{identity: *id, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *SessionRepo) GetSession(_ context.Context, sid string) (*domain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.sessions, sid)
		return nil, domain.ErrNotFound
	}
	id := e.identity
	return &id, nil
}

func (r *SessionRepo) DeleteSession(_ context.Context, sid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	return nil
}

// PurgeExpired удаляет истекшие сессии, которые больше никто не читал.
func (r *SessionRepo) PurgeExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var n int64
	for sid, e := range r.sessions {
		if !now.Before(e.expiresAt) {
			delete(r.sessions, sid)
			n++
		}
	}
	return n, nil
}
