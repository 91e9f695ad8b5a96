package auth

import (
	"fmt"
	"slices"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

// Authorize пропускает identity, если его роль входит в allowed.
// Пустая или неизвестная роль не проходит никогда, даже при пустом allowed.
func (p *Policy) Authorize(id *domain.Identity, allowed ...domain.Role) error {
	return Authorize(id, allowed...)
}

// AuthorizeScopes требует, чтобы были выданы ВСЕ перечисленные scope.
func (p *Policy) AuthorizeScopes(id *domain.Identity, required ...string) error {
	return AuthorizeScopes(id, required...)
}

func Authorize(id *domain.Identity, allowed ...domain.Role) error {
	if id == nil {
		return domain.ErrUnauthorized
	}
	if !id.Role.Valid() || !slices.Contains(allowed, id.Role) {
		return fmt.Errorf("%w: role %q", domain.ErrForbidden, id.Role)
	}
	return nil
}

func AuthorizeScopes(id *domain.Identity, required ...string) error {
	if id == nil {
		return domain.ErrUnauthorized
	}
	for _, scope := range required {
		if !id.HasScope(scope) {
			return fmt.Errorf("%w: missing scope %q", domain.ErrForbidden, scope)
		}
	}
	return nil
}
