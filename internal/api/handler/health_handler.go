package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/grow-sync/internal/api/dto"
)

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
	})
}

// Ready handles GET /ready
// Runs every registered dependency check and reports 503 if any fails
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	resp := dto.HealthResponse{
		Status:  "ready",
		Service: h.service,
		Version: h.version,
		Checks:  make(map[string]string, len(h.checks)),
	}

	for name, check := range h.checks {
		if err := check.HealthCheck(c.Request.Context()); err != nil {
			resp.Checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			resp.Status = "not ready"
			continue
		}
		resp.Checks[name] = "ok"
	}

	c.JSON(status, resp)
}
