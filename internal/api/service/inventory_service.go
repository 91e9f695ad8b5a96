package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

type InventoryRepository interface {
	ListInventory(ctx context.Context, userID string) ([]domain.InventoryItem, error)
	CreateItem(ctx context.Context, item *domain.InventoryItem) error
	DeleteItem(ctx context.Context, id, userID string) (*domain.InventoryItem, error)
}

// InventoryService: инвентарь всегда привязан к владельцу из проверенной identity.
type InventoryService struct {
	repo InventoryRepository
}

func NewInventoryService(repo InventoryRepository) *InventoryService {
	return &InventoryService{repo: repo}
}

func (s *InventoryService) List(ctx context.Context, owner *domain.Identity) ([]domain.InventoryItem, error) {
	items, err := s.repo.ListInventory(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("inventory_service: failed to list: %w", err)
	}
	return items, nil
}

func (s *InventoryService) Create(ctx context.Context, owner *domain.Identity, req domain.InventoryItemRequest) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{
		UserID:     owner.ID,
		Name:       strings.TrimSpace(req.Name),
		ItemNumber: strings.TrimSpace(req.ItemNumber),
		UnitPrice:  req.UnitPrice,
		Image:      req.Image,
	}
	if item.Image == "" {
		item.Image = domain.DefaultInventoryImage
	}
	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, fmt.Errorf("inventory_service: failed to create: %w", err)
	}
	return item, nil
}

func (s *InventoryService) Delete(ctx context.Context, owner *domain.Identity, id string) (*domain.InventoryItem, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: item id is required", domain.ErrInvalidInput)
	}
	return s.repo.DeleteItem(ctx, id, owner.ID)
}
