// Package mcptools exposes the price core as Model Context Protocol tools.
package mcptools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tokenlens/internal/domain"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	ServerName    = "tokenlens"
	ServerVersion = "1.0.0"

	defaultHistoryDays = 30
	maxHistoryDays     = 365
	defaultTimeout     = 15 * time.Second
)

type TokenPricer interface {
	ResolvePrice(ctx context.Context, ref domain.TokenRef, includeMetadataFallback bool) (*domain.TokenPriceResult, error)
	ResolveWithHistory(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error)
	CompareSources(ctx context.Context, ref domain.TokenRef) *domain.SourceComparison
}

type TokenAnalyzer interface {
	TokenIndicators(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenAnalysis, error)
}

type PortfolioReporter interface {
	Summary(ctx context.Context) *domain.PortfolioSummary
}

type MarketPricer interface {
	GetPrice(ctx context.Context, symbol string) (*domain.MarketQuote, error)
}

// Services are the core operations the tools call into.
type Services struct {
	Tokens    TokenPricer
	Analysis  TokenAnalyzer
	Portfolio PortfolioReporter
	Market    MarketPricer
}

type TokenInput struct {
	Network string `json:"network" jsonschema:"chain identifier such as ethereum or polygon"`
	Address string `json:"address" jsonschema:"0x-prefixed token contract address"`
}

type TokenPriceInput struct {
	Network         string `json:"network" jsonschema:"chain identifier such as ethereum or polygon"`
	Address         string `json:"address" jsonschema:"0x-prefixed token contract address"`
	IncludeMetadata *bool  `json:"include_metadata,omitempty" jsonschema:"fill missing fields from other sources and return a metadata-only result when no source has a price, default true"`
}

func (in TokenPriceInput) includeMetadata() bool {
	return in.IncludeMetadata == nil || *in.IncludeMetadata
}

type TokenHistoryInput struct {
	Network string `json:"network" jsonschema:"chain identifier such as ethereum or polygon"`
	Address string `json:"address" jsonschema:"0x-prefixed token contract address"`
	Days    int    `json:"days,omitempty" jsonschema:"days of history, 1 to 365, default 30"`
}

type MarketPriceInput struct {
	Symbol string `json:"symbol" jsonschema:"ticker symbol such as BTC"`
}

type PortfolioInput struct{}

type tools struct {
	logger  *zap.Logger
	svc     Services
	timeout time.Duration
}

// NewServer registers every tool on a fresh MCP server. Each call is bound
// by timeout.
func NewServer(logger *zap.Logger, svc Services, timeout time.Duration) *mcp.Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	t := &tools{logger: logger, svc: svc, timeout: timeout}

	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: ServerVersion}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "token_price",
		Description: "Current USD price of a token, falling back across GeckoTerminal, DeFiLlama and Alchemy",
	}, t.tokenPrice)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "token_history",
		Description: "Current price plus daily price history for a token",
	}, t.tokenHistory)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "compare_sources",
		Description: "Query every source for a token and report the spread between their prices",
	}, t.compareSources)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "token_indicators",
		Description: "Moving averages, RSI, MACD and Bollinger bands computed from a token's history",
	}, t.tokenIndicators)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "portfolio_summary",
		Description: "Prices and statistics for every token in the configured portfolio",
	}, t.portfolioSummary)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "market_price",
		Description: "CoinGecko market quote for a ticker symbol",
	}, t.marketPrice)
	return server
}

func (t *tools) tokenPrice(ctx context.Context, _ *mcp.CallToolRequest, in TokenPriceInput) (*mcp.CallToolResult, any, error) {
	ref, err := domain.NewTokenRef(in.Address, in.Network)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.svc.Tokens.ResolvePrice(ctx, ref, in.includeMetadata())
	if err != nil {
		return t.fail("token_price", err)
	}
	return jsonResult(result)
}

func (t *tools) tokenHistory(ctx context.Context, _ *mcp.CallToolRequest, in TokenHistoryInput) (*mcp.CallToolResult, any, error) {
	ref, err := domain.NewTokenRef(in.Address, in.Network)
	if err != nil {
		return nil, nil, err
	}
	days, err := historyDays(in.Days)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.svc.Tokens.ResolveWithHistory(ctx, ref, days)
	if err != nil {
		return t.fail("token_history", err)
	}
	return jsonResult(result)
}

func (t *tools) compareSources(ctx context.Context, _ *mcp.CallToolRequest, in TokenInput) (*mcp.CallToolResult, any, error) {
	ref, err := domain.NewTokenRef(in.Address, in.Network)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	return jsonResult(t.svc.Tokens.CompareSources(ctx, ref))
}

func (t *tools) tokenIndicators(ctx context.Context, _ *mcp.CallToolRequest, in TokenHistoryInput) (*mcp.CallToolResult, any, error) {
	ref, err := domain.NewTokenRef(in.Address, in.Network)
	if err != nil {
		return nil, nil, err
	}
	days, err := historyDays(in.Days)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	result, err := t.svc.Analysis.TokenIndicators(ctx, ref, days)
	if err != nil {
		return t.fail("token_indicators", err)
	}
	return jsonResult(result)
}

func (t *tools) portfolioSummary(ctx context.Context, _ *mcp.CallToolRequest, _ PortfolioInput) (*mcp.CallToolResult, any, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	return jsonResult(t.svc.Portfolio.Summary(ctx))
}

func (t *tools) marketPrice(ctx context.Context, _ *mcp.CallToolRequest, in MarketPriceInput) (*mcp.CallToolResult, any, error) {
	if in.Symbol == "" {
		return nil, nil, fmt.Errorf("symbol is required")
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	quote, err := t.svc.Market.GetPrice(ctx, in.Symbol)
	if err != nil {
		return t.fail("market_price", err)
	}
	return jsonResult(quote)
}

func (t *tools) fail(tool string, err error) (*mcp.CallToolResult, any, error) {
	t.logger.Warn("tool call failed", zap.String("tool", tool), zap.Error(err))
	return nil, nil, err
}

func historyDays(days int) (int, error) {
	if days == 0 {
		return defaultHistoryDays, nil
	}
	if days < 1 || days > maxHistoryDays {
		return 0, fmt.Errorf("days must be between 1 and %d", maxHistoryDays)
	}
	return days, nil
}

// jsonResult renders v as indented JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encode result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}
