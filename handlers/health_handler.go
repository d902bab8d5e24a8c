package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hirewise/llm-proxy/metering"
	"github.com/hirewise/llm-proxy/utils"
	"go.uber.org/zap"
)

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db     HealthChecker
	meter  *metering.Service
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db may be nil when no
// database is configured.
func NewHealthHandler(db HealthChecker, meter *metering.Service, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		meter:  meter,
		logger: logger,
	}
}

// healthResponse is the wire shape of a probe result
type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HandleHealth handles GET /healthz. Liveness only, always healthy while
// the process serves requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleReadiness handles GET /readyz. Checks the usage store and the
// metering workers.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			h.logger.Warn("database readiness check failed", zap.Error(err))
			checks["database"] = "unhealthy"
			healthy = false
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "healthy"
	}

	if h.meter != nil {
		if h.meter.GetStats().Started {
			checks["metering"] = "healthy"
		} else {
			checks["metering"] = "unhealthy"
			healthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	_ = utils.WriteJSON(w, code, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	})
}
