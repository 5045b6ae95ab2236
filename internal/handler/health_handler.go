package handler

import (
	"context"
	"net/http"
	"time"

	"voting-platform/internal/container"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	container *container.Container
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(container *container.Container) *HealthHandler {
	return &HealthHandler{
		container: container,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Service   string            `json:"service"`
	Checks    map[string]string `json:"checks"`
	Clients   int               `json:"websocketClients"`
}

// Check handles GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	logger := h.container.GetLogger()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   "1.0.0",
		Service:   "voting-platform",
		Checks:    map[string]string{"database": "memory", "redis": "disabled"},
		Clients:   h.container.Hub.ClientCount(),
	}
	status := http.StatusOK

	if h.container.HasDatabase() {
		response.Checks["database"] = "ok"
		if err := h.container.DB.Health(ctx); err != nil {
			logger.WithError(err).Warn("Database health check failed")
			response.Checks["database"] = "unavailable"
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}

	// Redis is optional, so its failure only degrades
	if h.container.HasRedis() {
		response.Checks["redis"] = "ok"
		if err := h.container.RedisClient.Health(ctx); err != nil {
			logger.WithError(err).Warn("Redis health check failed")
			response.Checks["redis"] = "unavailable"
			if response.Status == "healthy" {
				response.Status = "degraded"
			}
		}
	}

	respondJSON(w, status, response, logger)
}
