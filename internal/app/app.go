// Package app assembles the providers and services shared by every
// tokenlens entry point.
package app

import (
	"context"
	"errors"

	"tokenlens/internal/cache"
	"tokenlens/internal/config"
	"tokenlens/internal/domain"
	"tokenlens/internal/provider"
	"tokenlens/internal/service"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var initRedisFunc = cache.InitRedis

// App holds the wired service graph.
type App struct {
	GeckoTerminal *provider.GeckoTerminalProvider
	DefiLlama     *provider.DefiLlamaProvider
	Alchemy       *provider.AlchemyProvider
	CoinGecko     *provider.CoinGeckoProvider

	Orchestrator *service.PriceOrchestrator
	Portfolio    *service.PortfolioService
	Market       *service.MarketService
	Analysis     *service.AnalysisService

	Redis *redis.Client

	logger *zap.Logger
}

// New builds the service graph from cfg. Redis is optional: when it cannot
// be reached the market service runs uncached.
func New(ctx context.Context, cfg *config.Config, tracer trace.Tracer, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &App{
		GeckoTerminal: provider.NewGeckoTerminalProvider(tracer, cfg.GeckoTerminalBaseURL, cfg.HTTPTimeout,
			provider.WithBudget(provider.GeckoTerminalBudget.WithPerMinute(cfg.GeckoTerminalRPM))),
		DefiLlama: provider.NewDefiLlamaProvider(tracer, cfg.DefiLlamaBaseURL, cfg.HTTPTimeout,
			provider.WithBudget(provider.DefiLlamaBudget.WithPerMinute(cfg.DefiLlamaRPM))),
		Alchemy: provider.NewAlchemyProvider(tracer, cfg.AlchemyAPIKey, cfg.HTTPTimeout,
			provider.WithBudget(provider.AlchemyBudget.WithPerMinute(cfg.AlchemyRPM))),
		CoinGecko: provider.NewCoinGeckoProvider(tracer, cfg.CoinGeckoBaseURL, cfg.HTTPTimeout,
			provider.WithBudget(provider.CoinGeckoBudget.WithPerMinute(cfg.CoinGeckoRPM))),
		logger:    logger,
	}

	a.Orchestrator = service.NewPriceOrchestrator(tracer, logger.Named("orchestrator"), a.GeckoTerminal, a.DefiLlama, a.Alchemy)
	a.Portfolio = service.NewPortfolioService(tracer, logger.Named("portfolio"), a.Orchestrator, domain.DefaultPortfolio(),
		service.WithBatchPricer(a.DefiLlama))
	a.Analysis = service.NewAnalysisService(a.Orchestrator)

	var cacheClient service.RedisClient
	if cfg.RedisURL != "" {
		client, err := initRedisFunc(ctx, cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, market prices will not be cached", zap.Error(err))
		} else {
			a.Redis = client
			cacheClient = client
		}
	}

	a.Market = service.NewMarketService(tracer, logger.Named("market"), a.CoinGecko, cacheClient,
		service.WithCacheTTL(cfg.PriceCacheTTL),
		service.WithTrackedSymbols(cfg.TrackedSymbols),
	)
	return a
}

// Close releases upstream sessions and the Redis connection.
func (a *App) Close() error {
	errs := []error{a.Orchestrator.Close(), a.CoinGecko.Close()}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
