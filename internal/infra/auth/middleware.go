package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"github.com/xela07ax/orbit-auth/internal/infra/cookie"
	"go.uber.org/zap"
)

// Имена кук транспорта
const (
	CookieToken   = "token"
	CookieRefresh = "refreshToken"
	CookieSession = "orbit_sid"
)

// Фиксированные ответы: причину отказа наружу не отдаем
const (
	MsgUnauthorized = "Not authorized"
	MsgForbidden    = "Insufficient role"
)

// Rule: требования маршрута. В oauth режиме проверяются Scopes, в остальных Roles.
type Rule struct {
	Roles  []domain.Role
	Scopes []string
}

// Authenticator достает учетные данные из запроса согласно режиму деплоя.
type Authenticator struct {
	mode     string
	policy   *Policy
	sessions *Sessions
	cookies  *cookie.Manager
	logger   *zap.Logger
}

// NewAuthenticator; sessions нужен только в session режиме, cookies: в cookie/session.
func NewAuthenticator(mode string, policy *Policy, sessions *Sessions, cookies *cookie.Manager, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{
		mode:     mode,
		policy:   policy,
		sessions: sessions,
		cookies:  cookies,
		logger:   logger.Named("authenticator"),
	}
}

func (a *Authenticator) Mode() string { return a.mode }

// Authenticate возвращает личность вызывающего или domain.ErrUnauthorized.
func (a *Authenticator) Authenticate(r *http.Request) (*domain.Identity, error) {
	switch a.mode {
	case infra.AuthModeCookie:
		raw, err := a.cookies.Get(r, CookieToken)
		if err != nil {
			return nil, domain.ErrUnauthorized
		}
		return a.policy.Verify(r.Context(), raw)

	case infra.AuthModeSession:
		sid, err := a.cookies.Get(r, CookieSession)
		if err != nil {
			return nil, domain.ErrUnauthorized
		}
		return a.sessions.Resolve(r.Context(), sid)

	default: // header, oauth
		raw, ok := bearerToken(r)
		if !ok {
			return nil, domain.ErrUnauthorized
		}
		return a.policy.Verify(r.Context(), raw)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware требует аутентификацию и кладет identity в контекст.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Authenticate(r)
		if err != nil {
			a.deny(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// Optional пропускает анонимные запросы; identity будет в контексте, только если он валиден.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := a.Authenticate(r); err == nil {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Require проверяет правило маршрута. Ставится после Middleware.
func (a *Authenticator) Require(rule Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := a.Check(IdentityFrom(r.Context()), rule); err != nil {
				a.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Check применяет правило к identity (используется и HTTP, и GraphQL слоем).
func (a *Authenticator) Check(id *domain.Identity, rule Rule) error {
	if a.mode == infra.AuthModeOAuth && len(rule.Scopes) > 0 {
		return AuthorizeScopes(id, rule.Scopes...)
	}
	return Authorize(id, rule.Roles...)
}

func (a *Authenticator) deny(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusUnauthorized, MsgUnauthorized
	switch {
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, MsgForbidden
	case !errors.Is(err, domain.ErrUnauthorized):
		// хранилище сессий недоступно и т.п.
		a.logger.Error("authentication failed", zap.String("path", r.URL.Path), zap.Error(err))
		status, msg = http.StatusInternalServerError, "Internal server error"
	}
	a.logger.Debug("request denied", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
