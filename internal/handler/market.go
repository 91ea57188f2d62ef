package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetMarketPrice godoc
// @Summary      Get current price for a crypto asset
// @Description  Returns the cached CoinGecko quote, fetching it on a miss
// @Tags         crypto
// @Produce      json
// @Param        symbol  path  string  true  "Asset symbol (e.g., BTC, ETH)"
// @Success      200  {object}  domain.MarketQuote
// @Failure      500  {object}  map[string]string
// @Router       /api/crypto/price/{symbol} [get]
func (h *Handler) GetMarketPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-price")
	defer span.End()

	symbol := strings.ToUpper(c.Param("symbol"))
	span.SetAttributes(attribute.String("symbol", symbol))

	quote, err := h.market.GetPrice(ctx, symbol)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GetMarketPrices godoc
// @Summary      Get current prices for several assets
// @Tags         crypto
// @Produce      json
// @Param        symbols  query  string  true  "Comma-separated symbols"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/crypto/prices [get]
func (h *Handler) GetMarketPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-prices")
	defer span.End()

	raw := c.Query("symbols")
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		badRequest(c, errors.New("symbols is required"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"prices": h.market.GetPrices(ctx, symbols)})
}

// GetMarketHistory godoc
// @Summary      Historical prices for a crypto asset
// @Tags         crypto
// @Produce      json
// @Param        symbol    path   string  true   "Asset symbol"
// @Param        days      query  int     false  "Days of history (1-365)"  default(30)
// @Param        interval  query  string  false  "hourly or daily"  default(daily)
// @Success      200  {object}  domain.MarketHistory
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/crypto/historical/{symbol} [get]
func (h *Handler) GetMarketHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-history")
	defer span.End()

	days, err := queryDays(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	interval, err := queryInterval(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	history, err := h.market.GetHistorical(ctx, c.Param("symbol"), days, interval)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetMarketIndicators godoc
// @Summary      Technical indicators for a crypto asset
// @Tags         crypto
// @Produce      json
// @Param        symbol    path   string  true   "Asset symbol"
// @Param        days      query  int     false  "Days of history (1-365)"  default(30)
// @Param        interval  query  string  false  "hourly or daily"  default(daily)
// @Success      200  {object}  domain.MarketAnalysis
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/crypto/indicators/{symbol} [get]
func (h *Handler) GetMarketIndicators(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-market-indicators")
	defer span.End()

	days, err := queryDays(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	interval, err := queryInterval(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	analysis, err := h.market.GetIndicators(ctx, c.Param("symbol"), days, interval)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// GetTopCoins godoc
// @Summary      Top cryptocurrencies by market cap
// @Tags         crypto
// @Produce      json
// @Param        limit  query  int  false  "Number of coins (1-100)"  default(20)
// @Success      200  {array}   domain.MarketQuote
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/crypto/top [get]
func (h *Handler) GetTopCoins(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-top-coins")
	defer span.End()

	limit, err := queryLimit(c, defaultLimit)
	if err != nil {
		badRequest(c, err)
		return
	}

	coins, err := h.market.GetTopCoins(ctx, limit)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, coins)
}
