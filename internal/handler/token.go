package handler

import (
	"errors"
	"net/http"
	"strconv"

	"tokenlens/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const maxBatchTokens = 50

// GetTokenPrice godoc
// @Summary      Get current price for a token contract
// @Description  Tries GeckoTerminal, then DeFiLlama, then Alchemy metadata
// @Tags         tokens
// @Produce      json
// @Param        network           path   string  true   "Network (polygon, ethereum, base, ...)"
// @Param        address           path   string  true   "Token contract address"
// @Param        include_metadata  query  bool    false  "Fall back to metadata-only results"  default(true)
// @Success      200  {object}  domain.TokenPriceResult
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/tokens/{network}/{address} [get]
func (h *Handler) GetTokenPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-token-price")
	defer span.End()

	ref, err := tokenRef(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	span.SetAttributes(attribute.String("token", ref.String()))

	includeMetadata := true
	if raw, ok := c.GetQuery("include_metadata"); ok {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, errors.New("include_metadata must be a boolean"))
			return
		}
		includeMetadata = v
	}

	result, err := h.tokens.ResolvePrice(ctx, ref, includeMetadata)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTokenHistory godoc
// @Summary      Get token price with historical series
// @Tags         tokens
// @Produce      json
// @Param        network  path   string  true   "Network"
// @Param        address  path   string  true   "Token contract address"
// @Param        days     query  int     false  "Days of history (1-365)"  default(30)
// @Success      200  {object}  domain.TokenWithHistory
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/tokens/{network}/{address}/history [get]
func (h *Handler) GetTokenHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-token-history")
	defer span.End()

	ref, err := tokenRef(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	days, err := queryDays(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.tokens.ResolveWithHistory(ctx, ref, days)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetTokenIndicators godoc
// @Summary      Technical indicators for a token
// @Tags         tokens
// @Produce      json
// @Param        network  path   string  true   "Network"
// @Param        address  path   string  true   "Token contract address"
// @Param        days     query  int     false  "Days of history (1-365)"  default(30)
// @Success      200  {object}  domain.TokenAnalysis
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/tokens/{network}/{address}/indicators [get]
func (h *Handler) GetTokenIndicators(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-token-indicators")
	defer span.End()

	ref, err := tokenRef(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	days, err := queryDays(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.analysis.TokenIndicators(ctx, ref, days)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CompareTokenSources godoc
// @Summary      Compare a token's price across sources
// @Tags         tokens
// @Produce      json
// @Param        network  path  string  true  "Network"
// @Param        address  path  string  true  "Token contract address"
// @Success      200  {object}  domain.SourceComparison
// @Failure      400  {object}  map[string]string
// @Router       /api/tokens/{network}/{address}/compare [get]
func (h *Handler) CompareTokenSources(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.compare-token-sources")
	defer span.End()

	ref, err := tokenRef(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.tokens.CompareSources(ctx, ref))
}

type batchRequest struct {
	Tokens []struct {
		Address string `json:"address"`
		Network string `json:"network"`
	} `json:"tokens"`
}

// BatchTokenPrices godoc
// @Summary      Resolve many token prices
// @Description  Tokens that cannot be priced are left out of the response
// @Tags         tokens
// @Accept       json
// @Produce      json
// @Param        request  body  batchRequest  true  "Tokens to price"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/tokens/batch [post]
func (h *Handler) BatchTokenPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.batch-token-prices")
	defer span.End()

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if len(req.Tokens) == 0 {
		badRequest(c, errors.New("tokens must not be empty"))
		return
	}
	if len(req.Tokens) > maxBatchTokens {
		badRequest(c, errors.New("too many tokens, maximum is "+strconv.Itoa(maxBatchTokens)))
		return
	}

	refs := make([]domain.TokenRef, 0, len(req.Tokens))
	var invalid []string
	for _, t := range req.Tokens {
		ref, err := domain.NewTokenRef(t.Address, t.Network)
		if err != nil {
			invalid = append(invalid, t.Address)
			continue
		}
		refs = append(refs, ref)
	}
	span.SetAttributes(attribute.Int("tokens", len(refs)), attribute.Int("invalid", len(invalid)))

	results := h.tokens.ResolveMany(ctx, refs)
	resp := gin.H{
		"results":   results,
		"requested": len(req.Tokens),
		"resolved":  len(results),
	}
	if len(invalid) > 0 {
		resp["invalid"] = invalid
	}
	c.JSON(http.StatusOK, resp)
}

// SearchPools godoc
// @Summary      Search DEX pools
// @Tags         pools
// @Produce      json
// @Param        query    query  string  true   "Token symbol, name or address"
// @Param        network  query  string  false  "Restrict to a network"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/pools/search [get]
func (h *Handler) SearchPools(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.search-pools")
	defer span.End()

	query := c.Query("query")
	if query == "" {
		badRequest(c, errors.New("query is required"))
		return
	}
	network := c.Query("network")

	pools, err := h.pools.SearchPools(ctx, query, network)
	if err != nil {
		serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "network": network, "pools": pools})
}
