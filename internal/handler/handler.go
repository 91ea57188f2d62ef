package handler

import (
	"context"

	"tokenlens/internal/domain"
	"tokenlens/internal/provider"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// TokenPricer resolves on-chain token prices across sources.
type TokenPricer interface {
	ResolvePrice(ctx context.Context, ref domain.TokenRef, includeMetadataFallback bool) (*domain.TokenPriceResult, error)
	ResolveWithHistory(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error)
	ResolveMany(ctx context.Context, refs []domain.TokenRef) []*domain.TokenPriceResult
	CompareSources(ctx context.Context, ref domain.TokenRef) *domain.SourceComparison
	HealthCheck(ctx context.Context) *domain.HealthReport
}

type TokenAnalyzer interface {
	TokenIndicators(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenAnalysis, error)
}

type PortfolioReporter interface {
	Summary(ctx context.Context) *domain.PortfolioSummary
	PricesOnly(ctx context.Context) *domain.PortfolioPrices
	MainTokenWithHistory(ctx context.Context, days int) domain.HistoryOutcome
	TokenWithHistory(ctx context.Context, address string, days int) domain.HistoryOutcome
	TopPairsByLiquidity(ctx context.Context, limit int) []domain.PairRanking
	TopPairsByVolume(ctx context.Context, limit int) []domain.PairRanking
	HealthCheck(ctx context.Context) domain.PortfolioHealth
	Config() domain.PortfolioConfig
}

type MarketReader interface {
	GetPrice(ctx context.Context, symbol string) (*domain.MarketQuote, error)
	GetPrices(ctx context.Context, symbols []string) []*domain.MarketQuote
	GetHistorical(ctx context.Context, symbol string, days int, interval string) (*domain.MarketHistory, error)
	GetIndicators(ctx context.Context, symbol string, days int, interval string) (*domain.MarketAnalysis, error)
	GetTopCoins(ctx context.Context, limit int) ([]*domain.MarketQuote, error)
}

type PoolSearcher interface {
	SearchPools(ctx context.Context, query, network string) ([]provider.Pool, error)
}

type Handler struct {
	tracer    trace.Tracer
	tokens    TokenPricer
	analysis  TokenAnalyzer
	portfolio PortfolioReporter
	market    MarketReader
	pools     PoolSearcher
}

func New(
	tracer trace.Tracer,
	tokens TokenPricer,
	analysis TokenAnalyzer,
	portfolio PortfolioReporter,
	market MarketReader,
	pools PoolSearcher,
) *Handler {
	return &Handler{
		tracer:    tracer,
		tokens:    tokens,
		analysis:  analysis,
		portfolio: portfolio,
		market:    market,
		pools:     pools,
	}
}

// RegisterRoutes mounts every route. /health stays open; everything under
// /api goes through auth.
func (h *Handler) RegisterRoutes(r *gin.Engine, apiKey string) {
	r.GET("/health", h.Health)

	api := r.Group("/api", APIKeyAuth(apiKey))
	api.GET("/health/sources", h.SourceHealth)

	tokens := api.Group("/tokens")
	tokens.POST("/batch", h.BatchTokenPrices)
	tokens.GET("/:network/:address", h.GetTokenPrice)
	tokens.GET("/:network/:address/history", h.GetTokenHistory)
	tokens.GET("/:network/:address/indicators", h.GetTokenIndicators)
	tokens.GET("/:network/:address/compare", h.CompareTokenSources)

	api.GET("/pools/search", h.SearchPools)

	portfolio := api.Group("/portfolio")
	portfolio.GET("", h.PortfolioSummary)
	portfolio.GET("/prices", h.PortfolioPrices)
	portfolio.GET("/history", h.PortfolioMainHistory)
	portfolio.GET("/tokens/:address/history", h.PortfolioTokenHistory)
	portfolio.GET("/top/liquidity", h.TopPairsByLiquidity)
	portfolio.GET("/top/volume", h.TopPairsByVolume)
	portfolio.GET("/health", h.PortfolioHealth)
	portfolio.GET("/config", h.PortfolioConfig)

	crypto := api.Group("/crypto")
	crypto.GET("/price/:symbol", h.GetMarketPrice)
	crypto.GET("/prices", h.GetMarketPrices)
	crypto.GET("/historical/:symbol", h.GetMarketHistory)
	crypto.GET("/indicators/:symbol", h.GetMarketIndicators)
	crypto.GET("/top", h.GetTopCoins)
}
