package handler

import (
	"net/http"

	"github.com/xela07ax/orbit-auth/internal/api/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	service *service.DashboardService
	logger  *zap.Logger
}

func NewDashboardHandler(s *service.DashboardService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{service: s, logger: logger.Named("dashboard-handler")}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.Data(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}
