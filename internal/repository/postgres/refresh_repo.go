package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/xela07ax/orbit-auth/internal/domain"
)

func (r *Repo) SaveRefresh(ctx context.Context, rec *domain.RefreshRecord) error {
	query := `INSERT INTO refresh_tokens (token_hash, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, query, rec.TokenHash, rec.UserID, rec.CreatedAt, rec.ExpiresAt); err != nil {
		return fmt.Errorf("postgres: failed to save refresh token: %w", err)
	}
	return nil
}

func (r *Repo) FindRefresh(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error) {
	query := `SELECT token_hash, user_id, created_at, expires_at FROM refresh_tokens WHERE token_hash = $1`

	rec := &domain.RefreshRecord{}
	err := r.pool.QueryRow(ctx, query, tokenHash).Scan(&rec.TokenHash, &rec.UserID, &rec.CreatedAt, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to find refresh token: %w", err)
	}
	return rec, nil
}

// ReplaceRefresh: ротация одним UPDATE с условием на текущий хэш.
// Конкурент, ждавший блокировку строки, перечитает условие и получит 0 строк.
func (r *Repo) ReplaceRefresh(ctx context.Context, oldHash string, next *domain.RefreshRecord) error {
	query := `
		UPDATE refresh_tokens
		SET token_hash = $2, user_id = $3, created_at = $4, expires_at = $5
		WHERE token_hash = $1 AND expires_at > NOW()
		RETURNING token_hash`

	var replaced string
	err := r.pool.QueryRow(ctx, query, oldHash, next.TokenHash, next.UserID, next.CreatedAt, next.ExpiresAt).Scan(&replaced)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Либо токен уже использован, либо отозван
			return domain.ErrNotFound
		}
		return fmt.Errorf("postgres: failed to rotate refresh token: %w", err)
	}
	return nil
}

func (r *Repo) DeleteRefresh(ctx context.Context, tokenHash string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("postgres: failed to delete refresh token: %w", err)
	}
	return nil
}

// PurgeExpiredRefresh удаляет просроченные записи, возвращает их количество.
func (r *Repo) PurgeExpiredRefresh(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("postgres: failed to purge refresh tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
