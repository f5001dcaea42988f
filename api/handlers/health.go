package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/researchflow/api"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	serviceName string
	version     string
	startTime   time.Time
	cache       Pinger
	logger      *zap.Logger
}

// NewHealthHandler 创建健康检查处理器。cache 可为 nil（未启用缓存时）。
func NewHealthHandler(serviceName, version string, cache Pinger, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		cache:       cache,
		logger:      logger.With(zap.String("component", "health_handler")),
	}
}

// HandleRoot 处理 GET /
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteJSON(w, http.StatusNotFound, Response{
			Success:   false,
			Error:     &ErrorInfo{Code: "NOT_FOUND", Message: "endpoint not found"},
			Timestamp: time.Now(),
		})
		return
	}

	WriteSuccess(w, map[string]any{
		"service": h.serviceName,
		"version": h.version,
		"endpoints": []string{
			"POST /api/v1/research/query",
			"GET /health",
			"GET /healthz",
			"GET /ready",
			"GET /version",
		},
	})
}

// HandleHealth 处理 GET /health
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	status := "healthy"

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			checks["cache"] = "unreachable"
			status = "degraded"
			h.logger.Warn("cache health check failed", zap.Error(err))
		} else {
			checks["cache"] = "ok"
		}
	}

	WriteSuccess(w, map[string]any{
		"status":  status,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
		"version": h.version,
		"checks":  checks,
	})
}

// HandleHealthz 处理 GET /healthz（liveness，纯进程存活探针）
func (h *HealthHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReady 处理 GET /ready（readiness，依赖可达才就绪）
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, Response{
				Success:   false,
				Error:     &ErrorInfo{Code: "NOT_READY", Message: "cache unreachable"},
				Timestamp: time.Now(),
			})
			return
		}
	}

	WriteSuccess(w, map[string]any{"ready": true})
}

// HandleVersion 处理 GET /version
func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, api.VersionInfo{Service: h.serviceName, Version: h.version})
}
