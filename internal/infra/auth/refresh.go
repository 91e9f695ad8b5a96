package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/xela07ax/orbit-auth/internal/domain"
	"go.uber.org/zap"
)

// RefreshStore хранит записи refresh-токенов по хэшу.
type RefreshStore interface {
	SaveRefresh(ctx context.Context, rec *domain.RefreshRecord) error
	// FindRefresh возвращает domain.ErrNotFound, если записи нет
	FindRefresh(ctx context.Context, tokenHash string) (*domain.RefreshRecord, error)
	// ReplaceRefresh атомарно заменяет запись oldHash на next.
	// Если oldHash уже нет (его забрал конкурент или revoke): domain.ErrNotFound.
	ReplaceRefresh(ctx context.Context, oldHash string, next *domain.RefreshRecord) error
	// DeleteRefresh идемпотентен: отсутствие записи не ошибка
	DeleteRefresh(ctx context.Context, tokenHash string) error
}

// UserLookup нужен ротации, чтобы роль в новом токене бралась из актуальной записи пользователя.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

const refreshTokenBytes = 32

// HashToken: sha256 от сырого токена в base64url. В хранилище попадает только он.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (p *Policy) newRefreshRecord(userID string) (*domain.RefreshRecord, *domain.RefreshToken, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return nil, nil, err
	}
	now := p.now()
	rec := &domain.RefreshRecord{
		TokenHash: HashToken(raw),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.refreshTTL),
	}
	return rec, &domain.RefreshToken{Value: raw, ExpiresAt: rec.ExpiresAt}, nil
}

// IssueRefresh создает новую refresh-запись для пользователя.
func (p *Policy) IssueRefresh(ctx context.Context, userID string) (*domain.RefreshToken, error) {
	if p.refresh == nil {
		return nil, domain.ErrNotSupported
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", domain.ErrInvalidInput)
	}
	rec, token, err := p.newRefreshRecord(userID)
	if err != nil {
		return nil, err
	}
	if err := p.refresh.SaveRefresh(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}
	return token, nil
}

// RotateRefresh обменивает refresh-токен на новый access и новый refresh (rotation-on-use).
// Старый токен перестает действовать в момент успешной замены; из двух конкурентных
// запросов с одним токеном выигрывает ровно один.
func (p *Policy) RotateRefresh(ctx context.Context, raw string) (*domain.Credential, *domain.RefreshToken, error) {
	if p.refresh == nil || p.users == nil {
		return nil, nil, domain.ErrNotSupported
	}
	if raw == "" {
		return nil, nil, p.rejectRotation("empty refresh token", nil)
	}
	oldHash := HashToken(raw)

	// 1. Находим запись и проверяем срок
	rec, err := p.refresh.FindRefresh(ctx, oldHash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, p.rejectRotation("unknown refresh token", nil)
		}
		return nil, nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if rec.Expired(p.now()) {
		_ = p.refresh.DeleteRefresh(ctx, oldHash)
		return nil, nil, p.rejectRotation("refresh token expired", nil)
	}

	// 2. Роль берем из актуальной записи пользователя, а не из старого токена
	user, err := p.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = p.refresh.DeleteRefresh(ctx, oldHash)
			return nil, nil, p.rejectRotation("refresh owner gone", nil)
		}
		return nil, nil, fmt.Errorf("failed to load user: %w", err)
	}

	// 3. Новый access до замены: если выпуск не удался, старый refresh остается в силе
	cred, err := p.Issue(user.Identity())
	if err != nil {
		return nil, nil, err
	}

	// 4. Атомарная замена: проигравший конкурент получит ErrNotFound
	next, token, err := p.newRefreshRecord(user.ID)
	if err != nil {
		return nil, nil, err
	}
	if err := p.refresh.ReplaceRefresh(ctx, oldHash, next); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, p.rejectRotation("refresh token already used", nil)
		}
		return nil, nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	p.metrics.RefreshRotations.WithLabelValues("ok").Inc()
	return cred, token, nil
}

// Revoke удаляет refresh-запись. Повторный вызов и неизвестный токен: не ошибка.
func (p *Policy) Revoke(ctx context.Context, raw string) error {
	if p.refresh == nil || raw == "" {
		return nil
	}
	if err := p.refresh.DeleteRefresh(ctx, HashToken(raw)); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (p *Policy) rejectRotation(reason string, cause error) error {
	p.metrics.RefreshRotations.WithLabelValues("rejected").Inc()
	p.logger.Debug("refresh rejected", zap.String("reason", reason), zap.Error(cause))
	return domain.ErrUnauthorized
}
