package handler

import (
	"net/http"

	"tokenlens/internal/domain"

	"github.com/gin-gonic/gin"
)

const defaultTopPairs = 5

// PortfolioSummary godoc
// @Summary      Portfolio summary
// @Description  Main token, every quote pair and aggregate statistics
// @Tags         portfolio
// @Produce      json
// @Success      200  {object}  domain.PortfolioSummary
// @Router       /api/portfolio [get]
func (h *Handler) PortfolioSummary(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.portfolio-summary")
	defer span.End()

	c.JSON(http.StatusOK, h.portfolio.Summary(ctx))
}

// PortfolioPrices godoc
// @Summary      Portfolio prices only
// @Tags         portfolio
// @Produce      json
// @Success      200  {object}  domain.PortfolioPrices
// @Router       /api/portfolio/prices [get]
func (h *Handler) PortfolioPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.portfolio-prices")
	defer span.End()

	c.JSON(http.StatusOK, h.portfolio.PricesOnly(ctx))
}

// PortfolioMainHistory godoc
// @Summary      Main token with history
// @Tags         portfolio
// @Produce      json
// @Param        days  query  int  false  "Days of history (1-365)"  default(30)
// @Success      200  {object}  domain.HistoryOutcome
// @Failure      400  {object}  map[string]string
// @Router       /api/portfolio/history [get]
func (h *Handler) PortfolioMainHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.portfolio-main-history")
	defer span.End()

	days, err := queryDays(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.portfolio.MainTokenWithHistory(ctx, days))
}

// PortfolioTokenHistory godoc
// @Summary      Any token on the portfolio network, with history
// @Tags         portfolio
// @Produce      json
// @Param        address  path   string  true   "Token contract address"
// @Param        days     query  int     false  "Days of history (1-365)"  default(30)
// @Success      200  {object}  domain.HistoryOutcome
// @Failure      400  {object}  map[string]string
// @Router       /api/portfolio/tokens/{address}/history [get]
func (h *Handler) PortfolioTokenHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.portfolio-token-history")
	defer span.End()

	if _, err := domain.NewTokenRef(c.Param("address"), ""); err != nil {
		badRequest(c, err)
		return
	}
	days, err := queryDays(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.portfolio.TokenWithHistory(ctx, c.Param("address"), days))
}

// TopPairsByLiquidity godoc
// @Summary      Top quote pairs by liquidity
// @Tags         portfolio
// @Produce      json
// @Param        limit  query  int  false  "Number of pairs (1-100)"  default(5)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/portfolio/top/liquidity [get]
func (h *Handler) TopPairsByLiquidity(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.top-pairs-liquidity")
	defer span.End()

	limit, err := queryLimit(c, defaultTopPairs)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": h.portfolio.TopPairsByLiquidity(ctx, limit)})
}

// TopPairsByVolume godoc
// @Summary      Top quote pairs by 24h volume
// @Tags         portfolio
// @Produce      json
// @Param        limit  query  int  false  "Number of pairs (1-100)"  default(5)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/portfolio/top/volume [get]
func (h *Handler) TopPairsByVolume(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.top-pairs-volume")
	defer span.End()

	limit, err := queryLimit(c, defaultTopPairs)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": h.portfolio.TopPairsByVolume(ctx, limit)})
}

// PortfolioHealth godoc
// @Summary      Portfolio health
// @Tags         portfolio
// @Produce      json
// @Success      200  {object}  domain.PortfolioHealth
// @Router       /api/portfolio/health [get]
func (h *Handler) PortfolioHealth(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.portfolio-health")
	defer span.End()

	c.JSON(http.StatusOK, h.portfolio.HealthCheck(ctx))
}

// PortfolioConfig godoc
// @Summary      Tracked tokens and pools
// @Tags         portfolio
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/portfolio/config [get]
func (h *Handler) PortfolioConfig(c *gin.Context) {
	cfg := h.portfolio.Config()
	c.JSON(http.StatusOK, gin.H{
		"name":         cfg.Name,
		"network":      cfg.Network,
		"main_token":   cfg.MainToken,
		"quote_tokens": cfg.QuoteTokens,
		"lp_pools":     cfg.LPPools,
		"total_pairs":  cfg.TotalPairs(),
	})
}
