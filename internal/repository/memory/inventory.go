package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/orbit-auth/internal/domain"
)

type InventoryRepo struct {
	mu    sync.RWMutex
	items []domain.InventoryItem
}

func NewInventoryRepo() *InventoryRepo {
	return &InventoryRepo{}
}

func (r *InventoryRepo) ListInventory(_ context.Context, userID string) ([]domain.InventoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.InventoryItem, 0)
	for _, it := range r.items {
		if it.UserID == userID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *InventoryRepo) CreateItem(_ context.Context, item *domain.InventoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.CreatedAt = time.Now().UTC()
	r.items = append(r.items, *item)
	return nil
}

// DeleteItem удаляет только собственный item пользователя.
func (r *InventoryRepo) DeleteItem(_ context.Context, id, userID string) (*domain.InventoryItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, it := range r.items {
		if it.ID == id && it.UserID == userID {
			r.items = append(r.items[:i], r.items[i+1:]...)
			return &it, nil
		}
	}
	return nil, domain.ErrNotFound
}
