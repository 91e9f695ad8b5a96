package handler

import (
	"net/http"
	"time"

	"github.com/xela07ax/orbit-auth/internal/api/service"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"github.com/xela07ax/orbit-auth/internal/infra/cookie"
)

// TransportConfig: как учетные данные доставляются клиенту.
type TransportConfig struct {
	Mode       string
	AccessTTL  time.Duration // maxAge cookie токена
	RefreshTTL time.Duration
	SessionTTL time.Duration
}

// Transport раскладывает выданные учетные данные между cookie и телом ответа.
// Один на приложение: им пользуются и REST, и GraphQL.
type Transport struct {
	cookies *cookie.Manager
	cfg     TransportConfig
	now     func() time.Time
}

func NewTransport(cookies *cookie.Manager, cfg TransportConfig) *Transport {
	return &Transport{cookies: cookies, cfg: cfg, now: time.Now}
}

// Deliver ставит cookie режима и возвращает тело ответа.
// В cookie и session режимах токена в теле нет.
func (t *Transport) Deliver(w http.ResponseWriter, msg string, s *service.Session) domain.AuthResponse {
	resp := domain.AuthResponse{Message: msg, UserInfo: s.User.Info()}

	switch {
	case s.SessionID != "":
		_ = t.cookies.Set(w, cookie.Options{Name: auth.CookieSession, Value: s.SessionID, MaxAge: t.cfg.SessionTTL})
		resp.ExpiresAt = t.now().Add(t.cfg.SessionTTL).Unix()

	case s.Credential != nil:
		resp.ExpiresAt = s.Credential.ExpiresAt.Unix()
		resp.Token = t.deliverAccess(w, s.Credential)
	}

	if s.Refresh != nil {
		t.setRefresh(w, s.Refresh)
	}
	return resp
}

// deliverAccess возвращает токен для тела ответа: пусто, если он ушел в HttpOnly cookie.
func (t *Transport) deliverAccess(w http.ResponseWriter, cred *domain.Credential) string {
	if t.cfg.Mode == infra.AuthModeCookie {
		_ = t.cookies.Set(w, cookie.Options{Name: auth.CookieToken, Value: cred.Token, MaxAge: t.cfg.AccessTTL})
		return ""
	}
	return cred.Token
}

func (t *Transport) setRefresh(w http.ResponseWriter, rt *domain.RefreshToken) {
	_ = t.cookies.Set(w, cookie.Options{Name: auth.CookieRefresh, Value: rt.Value, MaxAge: t.cfg.RefreshTTL})
}
