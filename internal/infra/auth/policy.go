package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"go.uber.org/zap"
)

// Options: настройки Policy, фиксируются при старте процесса.
type Options struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// Refresh и Users нужны только для ротации refresh-токенов
	Refresh RefreshStore
	Users   UserLookup

	Clock   func() time.Time
	Logger  *zap.Logger
	Metrics *infra.Metrics
}

// Policy выпускает, проверяет и авторизует учетные данные.
// Внутреннего изменяемого состояния нет: ключи и настройки read-only после создания.
type Policy struct {
	keys   KeySource
	signer Signer // nil, если выпуск делегирован внешнему IdP

	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration

	refresh RefreshStore
	users   UserLookup

	now     func() time.Time
	parser  *jwt.Parser
	logger  *zap.Logger
	metrics *infra.Metrics
}

// NewPolicy собирает политику. signer == nil означает режим "только проверка".
func NewPolicy(keys KeySource, signer Signer, opts Options) *Policy {
	p := &Policy{
		keys:       keys,
		signer:     signer,
		issuer:     opts.Issuer,
		audience:   opts.Audience,
		accessTTL:  opts.AccessTTL,
		refreshTTL: opts.RefreshTTL,
		refresh:    opts.Refresh,
		users:      opts.Users,
		now:        opts.Clock,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.metrics == nil {
		p.metrics = infra.NewMetrics(nil)
	}
	if p.accessTTL <= 0 {
		p.accessTTL = time.Hour
	}
	if p.refreshTTL <= 0 {
		p.refreshTTL = 7 * 24 * time.Hour
	}
	p.logger = p.logger.Named("auth-policy")

	p.parser = jwt.NewParser(
		jwt.WithValidMethods(keys.Methods()),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return p.now() }),
	)
	return p
}

// AccessTTL: срок жизни access-токена (нужен транспорту для maxAge cookie).
func (p *Policy) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL: срок жизни refresh-записи.
func (p *Policy) RefreshTTL() time.Duration { return p.refreshTTL }

// CanIssue сообщает, выпускает ли сервис токены сам.
func (p *Policy) CanIssue() bool { return p.signer != nil }

// Issue подписывает access-токен для identity.
// Роль решает только сервер, поэтому ее отсутствие: ошибка программиста (ErrMissingRole),
// а роль вне закрытого набора: ErrInvalidInput.
func (p *Policy) Issue(id domain.Identity) (*domain.Credential, error) {
	if p.signer == nil {
		return nil, domain.ErrNotSupported
	}
	if id.Role == "" {
		return nil, domain.ErrMissingRole
	}
	if !id.Role.Valid() {
		return nil, fmt.Errorf("%w: role %q not allowed", domain.ErrInvalidInput, id.Role)
	}
	if id.ID == "" {
		return nil, fmt.Errorf("%w: empty subject", domain.ErrInvalidInput)
	}

	now := p.now()
	claims := &domain.Claims{
		Email: id.Email,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   id.ID,
			Audience:  jwt.ClaimStrings{p.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := p.signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &domain.Credential{
		Token:     signed,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify проверяет подпись, алгоритм, iss, aud, exp, iat и роль.
// Любой отказ сводится к domain.ErrUnauthorized: какая именно проверка не прошла,
// пишем только в debug-лог.
func (p *Policy) Verify(ctx context.Context, raw string) (*domain.Identity, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "Bearer "))
	if raw == "" {
		return nil, p.reject("empty token", nil)
	}

	claims := &domain.Claims{}
	token, err := p.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return p.keys.VerifyKey(ctx, t)
	})
	if err != nil || !token.Valid {
		return nil, p.reject("token rejected", err)
	}

	if claims.Subject == "" {
		return nil, p.reject("missing subject", nil)
	}
	// Роль вне закрытого набора: дефект, а не фича
	if claims.Role != "" && !claims.Role.Valid() {
		return nil, p.reject("unknown role", fmt.Errorf("role %q", claims.Role))
	}
	// Свои токены всегда несут роль
	if p.signer != nil && claims.Role == "" {
		return nil, p.reject("missing role", nil)
	}

	p.metrics.TokenVerifications.WithLabelValues("ok").Inc()
	return &domain.Identity{
		ID:     claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		Scopes: grantedScopes(claims),
	}, nil
}

func (p *Policy) reject(reason string, cause error) error {
	p.metrics.TokenVerifications.WithLabelValues("rejected").Inc()
	p.logger.Debug("credential rejected", zap.String("reason", reason), zap.Error(cause))
	return domain.ErrUnauthorized
}

// grantedScopes объединяет scope (строка через пробел) и permissions (RBAC Auth0).
func grantedScopes(c *domain.Claims) []string {
	scopes := strings.Fields(c.Scope)
	for _, perm := range c.Permissions {
		if perm != "" {
			scopes = append(scopes, perm)
		}
	}
	return scopes
}
