package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tokenlens/internal/app"
	"tokenlens/internal/config"
	"tokenlens/internal/domain"
	"tokenlens/pkg/logger"
	"tokenlens/pkg/tracing"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type tokenCore interface {
	ResolvePrice(ctx context.Context, ref domain.TokenRef, includeMetadataFallback bool) (*domain.TokenPriceResult, error)
	ResolveWithHistory(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error)
	CompareSources(ctx context.Context, ref domain.TokenRef) *domain.SourceComparison
	HealthCheck(ctx context.Context) *domain.HealthReport
}

type portfolioCore interface {
	Summary(ctx context.Context) *domain.PortfolioSummary
	PricesOnly(ctx context.Context) *domain.PortfolioPrices
}

type marketCore interface {
	GetPrices(ctx context.Context, symbols []string) []*domain.MarketQuote
	TrackedSymbols() []string
}

// core is what the subcommands run against.
type core struct {
	tokens    tokenCore
	portfolio portfolioCore
	market    marketCore
	close     func() error
}

var newCoreFunc = buildCore

func buildCore(cmd *cobra.Command) (*core, error) {
	_ = godotenv.Load()
	cfg, err := config.LoadWithFlags(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	zlog, err := logger.NewStderr(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	tp, tracer, err := tracing.InitTracer(cmd.Context(), "cli")
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	services := app.New(cmd.Context(), cfg, tracer, zlog)
	return &core{
		tokens:    services.Orchestrator,
		portfolio: services.Portfolio,
		market:    services.Market,
		close: func() error {
			err := services.Close()
			if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
				zlog.Debug("tracer shutdown", zap.Error(shutdownErr))
			}
			_ = zlog.Sync()
			return err
		},
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pricectl",
		Short:        "Query token prices across GeckoTerminal, DeFiLlama and Alchemy",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("alchemy-api-key", "", "Alchemy API key")
	root.PersistentFlags().Int("http-timeout-secs", 30, "upstream request timeout in seconds")
	root.PersistentFlags().String("redis-url", "", "Redis URL for cached market quotes")
	root.PersistentFlags().StringP("output", "o", "text", "output format (text, json)")

	root.AddCommand(
		newPriceCmd(),
		newHistoryCmd(),
		newCompareCmd(),
		newPortfolioCmd(),
		newMarketCmd(),
		newHealthCmd(),
	)
	return root
}
