package memory

import (
	"context"
	"sync"
	"time"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

// RefreshRepo хранит refresh-записи под одним мьютексом, замена атомарна относительно других вызовов.
type RefreshRepo struct {
	mu      sync.Mutex
	records map[string]domain.RefreshRecord
	now     func() time.Time
}

func NewRefreshRepo() *RefreshRepo {
	return &RefreshRepo{records: make(map[string]domain.RefreshRecord), now: time.Now}
}

func (r *RefreshRepo) SaveRefresh(_ context.Context, rec *domain.RefreshRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.TokenHash] = *rec
	return nil
}

func (r *RefreshRepo) FindRefresh(_ context.Context, tokenHash string) (*domain.RefreshRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[tokenHash]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *RefreshRepo) ReplaceRefresh(_ context.Context, oldHash string, next *domain.RefreshRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[oldHash]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, oldHash)
	r.records[next.TokenHash] = *next
	return nil
}

func (r *RefreshRepo) DeleteRefresh(_ context.Context, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, tokenHash)
	return nil
}

// PurgeExpired удаляет истекшие записи, которые так и не предъявили.
func (r *RefreshRepo) PurgeExpired(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var n int64
	for hash, rec := range r.records {
		if rec.Expired(now) {
			delete(r.records, hash)
			n++
		}
	}
	return n, nil
}

// Len: число живых записей (для тестов и диагностики).
func (r *RefreshRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
