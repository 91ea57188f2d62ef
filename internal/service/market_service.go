package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tokenlens/internal/domain"
	"tokenlens/internal/ta"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultPriceCacheTTL = 90 * time.Second

// MarketDataProvider fetches symbol-keyed CEX market data.
type MarketDataProvider interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]*domain.MarketQuote, error)
	CoinPrice(ctx context.Context, symbol string) (*domain.MarketQuote, error)
	TopCoins(ctx context.Context, limit int) ([]*domain.MarketQuote, error)
	FetchMarketChart(ctx context.Context, symbol string, days int, interval string) (domain.HistoricalSeries, error)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// MarketService serves CEX symbol prices, history and indicators, with an
// optional Redis cache in front of the provider.
type MarketService struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	provider MarketDataProvider
	redis    RedisClient
	cacheTTL time.Duration
	tracked  []string
}

type MarketOption func(*MarketService)

// WithCacheTTL overrides how long cached quotes live.
func WithCacheTTL(ttl time.Duration) MarketOption {
	return func(s *MarketService) {
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithTrackedSymbols sets the symbols RefreshPrices keeps warm.
func WithTrackedSymbols(symbols []string) MarketOption {
	return func(s *MarketService) {
		if len(symbols) > 0 {
			s.tracked = normalizeSymbols(symbols)
		}
	}
}

func NewMarketService(
	tracer trace.Tracer,
	logger *zap.Logger,
	provider MarketDataProvider,
	redisClient RedisClient,
	opts ...MarketOption,
) *MarketService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &MarketService{
		tracer:   tracer,
		logger:   logger,
		provider: provider,
		redis:    redisClient,
		cacheTTL: defaultPriceCacheTTL,
		tracked:  domain.DefaultTrackedSymbols,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TrackedSymbols returns the symbols kept warm by RefreshPrices.
func (s *MarketService) TrackedSymbols() []string {
	return append([]string(nil), s.tracked...)
}

// GetPrice returns the cached quote for a symbol, falling back to a live
// lookup on a miss.
func (s *MarketService) GetPrice(ctx context.Context, symbol string) (*domain.MarketQuote, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-price")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	if s.redis != nil {
		cached, err := s.getPriceCache(ctx, symbol)
		if err != nil {
			s.logger.Warn("redis cache read error", zap.String("symbol", symbol), zap.Error(err))
		}
		if cached != nil {
			return cached, nil
		}
	}

	quote, err := s.provider.CoinPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if s.redis != nil {
		if err := s.setPriceCache(ctx, quote); err != nil {
			s.logger.Warn("redis cache write error", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return quote, nil
}

// GetPrices looks up symbols concurrently. Symbols that fail are left out.
func (s *MarketService) GetPrices(ctx context.Context, symbols []string) []*domain.MarketQuote {
	ctx, span := s.tracer.Start(ctx, "market-service.get-prices")
	defer span.End()

	symbols = normalizeSymbols(symbols)
	quotes := make([]*domain.MarketQuote, len(symbols))
	var g errgroup.Group
	for i, sym := range symbols {
		g.Go(func() error {
			q, err := s.GetPrice(ctx, sym)
			if err != nil {
				s.logger.Warn("market price lookup failed", zap.String("symbol", sym), zap.Error(err))
				return nil
			}
			quotes[i] = q
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.MarketQuote, 0, len(quotes))
	for _, q := range quotes {
		if q != nil {
			out = append(out, q)
		}
	}
	return out
}

// GetHistorical returns a symbol's series bucketed at interval.
func (s *MarketService) GetHistorical(ctx context.Context, symbol string, days int, interval string) (*domain.MarketHistory, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-historical")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	series, err := s.provider.FetchMarketChart(ctx, symbol, days, interval)
	if err != nil {
		return nil, err
	}
	return &domain.MarketHistory{Symbol: symbol, Interval: interval, Data: series}, nil
}

// GetIndicators computes the indicator set over a symbol's history.
func (s *MarketService) GetIndicators(ctx context.Context, symbol string, days int, interval string) (*domain.MarketAnalysis, error) {
	history, err := s.GetHistorical(ctx, symbol, days, interval)
	if err != nil {
		return nil, err
	}
	if len(history.Data) == 0 {
		return nil, fmt.Errorf("no historical data for %s", history.Symbol)
	}
	return &domain.MarketAnalysis{
		Symbol:     history.Symbol,
		Interval:   interval,
		Indicators: ta.Compute(history.Data),
	}, nil
}

// GetTopCoins lists coins by market capitalisation.
func (s *MarketService) GetTopCoins(ctx context.Context, limit int) ([]*domain.MarketQuote, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-top-coins")
	defer span.End()
	return s.provider.TopCoins(ctx, limit)
}

// RefreshPrices fetches the tracked symbols in one batch and caches them.
func (s *MarketService) RefreshPrices(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.refresh-prices")
	defer span.End()

	prices, err := s.provider.FetchPrices(ctx, s.tracked)
	if err != nil {
		return 0, err
	}

	for _, quote := range prices {
		if s.redis != nil {
			if err := s.setPriceCache(ctx, quote); err != nil {
				s.logger.Warn("redis cache write error", zap.String("symbol", quote.Symbol), zap.Error(err))
			}
		}
	}

	s.logger.Info("refreshed prices", zap.Int("assets", len(prices)))
	return len(prices), nil
}

func (s *MarketService) setPriceCache(ctx context.Context, quote *domain.MarketQuote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, "price:"+quote.Symbol, data, s.cacheTTL).Err()
}

func (s *MarketService) getPriceCache(ctx context.Context, symbol string) (*domain.MarketQuote, error) {
	data, err := s.redis.Get(ctx, "price:"+symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var quote domain.MarketQuote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, err
	}
	return &quote, nil
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	return out
}
