package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/orbit-auth/internal/api/service"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	service *service.InventoryService
	logger  *zap.Logger
}

func NewInventoryHandler(s *service.InventoryService, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{service: s, logger: logger.Named("inventory-handler")}
}

func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), auth.IdentityFrom(r.Context()))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.InventoryItemRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.service.Create(r.Context(), auth.IdentityFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":       "Inventory item created!",
		"inventoryItem": item,
	})
}

func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := h.service.Delete(r.Context(), auth.IdentityFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Inventory item deleted!",
		"deletedItem": item,
	})
}
