package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns the liveness of the service
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// SourceHealth godoc
// @Summary      Upstream source health
// @Description  Probes GeckoTerminal, DeFiLlama and Alchemy with a known liquid token
// @Tags         health
// @Produce      json
// @Success      200  {object}  domain.HealthReport
// @Failure      503  {object}  domain.HealthReport
// @Router       /api/health/sources [get]
func (h *Handler) SourceHealth(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.source-health")
	defer span.End()

	report := h.tokens.HealthCheck(ctx)
	status := http.StatusOK
	if !report.Overall {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
