package handler

import (
	"errors"
	"net/http"

	"github.com/xela07ax/orbit-auth/internal/api/service"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"go.uber.org/zap"
)

type UserHandler struct {
	service *service.UserService
	logger  *zap.Logger
}

func NewUserHandler(s *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{service: s, logger: logger.Named("user-handler")}
}

// Me: профиль вызывающего (GET /api/user).
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.Profile(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"users": users})
}

func (h *UserHandler) GetBio(w http.ResponseWriter, r *http.Request) {
	bio, err := h.service.Bio(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bio": bio})
}

func (h *UserHandler) UpdateBio(w http.ResponseWriter, r *http.Request) {
	var req domain.BioRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bio, err := h.service.UpdateBio(r.Context(), auth.IdentityFrom(r.Context()), req.Bio)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Bio updated!", "bio": bio})
}

// UpdateRole: PATCH /api/user-role.
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req domain.RoleUpdateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	err := h.service.UpdateRole(r.Context(), auth.IdentityFrom(r.Context()), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, APIError{Code: "ROLE_NOT_ALLOWED", Message: "Role not allowed"})
			return
		}
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, message{
		Message: "User role updated. You must log in again for the changes to take effect.",
	})
}
