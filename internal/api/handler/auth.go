package handler

import (
	"errors"
	"net/http"

	"github.com/xela07ax/orbit-auth/internal/api/service"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"github.com/xela07ax/orbit-auth/internal/infra/cookie"
	"go.uber.org/zap"
)

type AuthHandler struct {
	service   *service.AuthService
	transport *Transport
	cookies   *cookie.Manager
	logger    *zap.Logger
}

func NewAuthHandler(s *service.AuthService, transport *Transport, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service:   s,
		transport: transport,
		cookies:   transport.cookies,
		logger:    logger.Named("auth-handler"),
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.service.Login(r.Context(), req, RequestMeta(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respondSession(w, http.StatusOK, "Authentication successful!", session)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	session, err := h.service.Signup(r.Context(), req, RequestMeta(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.respondSession(w, http.StatusOK, "User created!", session)
}

func (h *AuthHandler) respondSession(w http.ResponseWriter, status int, msg string, s *service.Session) {
	writeJSON(w, status, h.transport.Deliver(w, msg, s))
}

// Refresh (GET /api/token/refresh): rotation-on-use по HttpOnly cookie.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := h.cookies.Get(r, auth.CookieRefresh)
	if err != nil {
		writeError(w, r, h.logger, domain.ErrUnauthorized)
		return
	}

	cred, next, err := h.service.Refresh(r.Context(), raw, RequestMeta(r))
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			// токен уже недействителен: убираем его у клиента
			h.cookies.Delete(w, auth.CookieRefresh, "")
		}
		writeError(w, r, h.logger, err)
		return
	}

	h.transport.setRefresh(w, next)
	writeJSON(w, http.StatusOK, domain.RefreshResponse{
		Token:     h.transport.deliverAccess(w, cred),
		ExpiresAt: cred.ExpiresAt.Unix(),
	})
}

// Invalidate (DELETE /api/token/invalidate): отзыв refresh-токена.
func (h *AuthHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	raw, _ := h.cookies.Get(r, auth.CookieRefresh)
	if err := h.service.Logout(r.Context(), raw, "", RequestMeta(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cookies.Delete(w, auth.CookieRefresh, "")
	writeJSON(w, http.StatusOK, message{Message: "Token invalidated"})
}

// Logout закрывает все, что есть: refresh, cookie токена, серверную сессию.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	raw, _ := h.cookies.Get(r, auth.CookieRefresh)
	sid, _ := h.cookies.Get(r, auth.CookieSession)

	if err := h.service.Logout(r.Context(), raw, sid, RequestMeta(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.cookies.Delete(w, auth.CookieRefresh, "")
	h.cookies.Delete(w, auth.CookieToken, "")
	h.cookies.Delete(w, auth.CookieSession, "")
	writeJSON(w, http.StatusOK, message{Message: "Logged out"})
}
