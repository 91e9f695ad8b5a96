package auth

import (
	"context"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

type ctxKey struct{}

// WithIdentity кладет проверенную личность в контекст запроса.
func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom достает личность, положенную middleware. nil: анонимный запрос.
func IdentityFrom(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(ctxKey{}).(*domain.Identity)
	return id
}
