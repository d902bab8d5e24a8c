package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hirewise/llm-proxy/repositories"
	"github.com/hirewise/llm-proxy/utils"
	"go.uber.org/zap"
)

// UsageHandler serves read-only usage reporting endpoints
type UsageHandler struct {
	usageRepo repositories.UsageRepository
	logger    *zap.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usageRepo repositories.UsageRepository, logger *zap.Logger) *UsageHandler {
	return &UsageHandler{
		usageRepo: usageRepo,
		logger:    logger,
	}
}

// HandleSessionUsage handles GET /llm-proxy/sessions/{sessionID}/usage
func (h *UsageHandler) HandleSessionUsage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		_ = utils.WriteBadRequest(w, "session ID is required", nil)
		return
	}

	summary, err := h.usageRepo.SummarizeSession(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to summarize session usage",
			zap.String("session_id", sessionID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "failed to load usage summary")
		return
	}

	if err := utils.WriteOK(w, summary); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
