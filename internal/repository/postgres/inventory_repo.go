package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/orbit-auth/internal/domain"
)

func (r *Repo) ListInventory(ctx context.Context, userID string) ([]domain.InventoryItem, error) {
	query := `
		SELECT id, user_id, name, item_number, unit_price, image, created_at
		FROM inventory_items WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list inventory: %w", err)
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0)
	for rows.Next() {
		var it domain.InventoryItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.Name, &it.ItemNumber, &it.UnitPrice, &it.Image, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan inventory item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repo) CreateItem(ctx context.Context, item *domain.InventoryItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	query := `
		INSERT INTO inventory_items (id, user_id, name, item_number, unit_price, image)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, item.ID, item.UserID, item.Name, item.ItemNumber, item.UnitPrice, item.Image).
		Scan(&item.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: failed to create inventory item: %w", err)
	}
	return nil
}

// DeleteItem удаляет только собственный item пользователя (условие по user_id в одном запросе).
func (r *Repo) DeleteItem(ctx context.Context, id, userID string) (*domain.InventoryItem, error) {
	query := `
		DELETE FROM inventory_items WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, name, item_number, unit_price, image, created_at`

	var it domain.InventoryItem
	err := r.pool.QueryRow(ctx, query, id, userID).
		Scan(&it.ID, &it.UserID, &it.Name, &it.ItemNumber, &it.UnitPrice, &it.Image, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to delete inventory item: %w", err)
	}
	return &it, nil
}
