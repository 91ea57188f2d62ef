package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const lpPoolNote = "LP pools require separate handling via pool endpoints"

// TokenResolver is the subset of PriceOrchestrator the portfolio needs.
type TokenResolver interface {
	ResolvePrice(ctx context.Context, ref domain.TokenRef, includeMetadataFallback bool) (*domain.TokenPriceResult, error)
	ResolveWithHistory(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error)
}

// BatchPricer prices many tokens in one upstream call. Tokens it has no
// price for are absent from the result.
type BatchPricer interface {
	TokenPrices(ctx context.Context, refs []domain.TokenRef) (map[domain.TokenRef]*domain.TokenPriceResult, error)
}

type PortfolioOption func(*PortfolioService)

// WithBatchPricer lets PricesOnly fill tokens the resolver could not price
// with a single batch lookup.
func WithBatchPricer(b BatchPricer) PortfolioOption {
	return func(s *PortfolioService) {
		s.batch = b
	}
}

// PortfolioService reports on a fixed set of tokens. Per-token failures are
// captured in outcomes rather than returned.
type PortfolioService struct {
	tracer    trace.Tracer
	logger    *zap.Logger
	resolver  TokenResolver
	batch     BatchPricer
	portfolio domain.PortfolioConfig
	now       func() time.Time
}

func NewPortfolioService(
	tracer trace.Tracer,
	logger *zap.Logger,
	resolver TokenResolver,
	portfolio domain.PortfolioConfig,
	opts ...PortfolioOption,
) *PortfolioService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PortfolioService{
		tracer:    tracer,
		logger:    logger,
		resolver:  resolver,
		portfolio: portfolio.Clone(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns a copy of the tracked portfolio.
func (s *PortfolioService) Config() domain.PortfolioConfig {
	return s.portfolio.Clone()
}

// MainToken resolves the portfolio's main token.
func (s *PortfolioService) MainToken(ctx context.Context) domain.TokenOutcome {
	main := s.portfolio.MainToken
	data, err := s.resolver.ResolvePrice(ctx, main.Ref(), true)
	if err != nil {
		s.logger.Error("main token lookup failed", zap.String("symbol", main.Symbol), zap.Error(err))
		return domain.TokenOutcome{Symbol: main.Symbol, Error: err.Error()}
	}
	return domain.TokenOutcome{Success: true, Symbol: main.Symbol, Data: data}
}

func (s *PortfolioService) quoteToken(ctx context.Context, token domain.PortfolioToken) domain.TokenOutcome {
	out := domain.TokenOutcome{Symbol: token.Symbol, Pair: token.Pair, Contract: token.Contract}
	data, err := s.resolver.ResolvePrice(ctx, token.Ref(), true)
	if err != nil {
		s.logger.Warn("quote token lookup failed", zap.String("symbol", token.Symbol), zap.Error(err))
		out.Error = err.Error()
		return out
	}
	out.Success = true
	out.Data = data
	return out
}

// QuoteTokens resolves every quote token concurrently, in configuration order.
func (s *PortfolioService) QuoteTokens(ctx context.Context) []domain.TokenOutcome {
	ctx, span := s.tracer.Start(ctx, "portfolio.quote-tokens")
	defer span.End()

	out := make([]domain.TokenOutcome, len(s.portfolio.QuoteTokens))
	var g errgroup.Group
	for i, token := range s.portfolio.QuoteTokens {
		g.Go(func() error {
			out[i] = s.quoteToken(ctx, token)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *PortfolioService) mainAndQuotes(ctx context.Context) (domain.TokenOutcome, []domain.TokenOutcome) {
	var main domain.TokenOutcome
	var quotes []domain.TokenOutcome
	var g errgroup.Group
	g.Go(func() error {
		main = s.MainToken(ctx)
		return nil
	})
	g.Go(func() error {
		quotes = s.QuoteTokens(ctx)
		return nil
	})
	_ = g.Wait()
	return main, quotes
}

// Summary is the full portfolio report with aggregate statistics.
func (s *PortfolioService) Summary(ctx context.Context) *domain.PortfolioSummary {
	ctx, span := s.tracer.Start(ctx, "portfolio.summary")
	defer span.End()

	main, quotes := s.mainAndQuotes(ctx)

	groups := domain.QuoteTokenGroups{
		Successful: []domain.TokenOutcome{},
		Failed:     []domain.TokenOutcome{},
		Total:      len(quotes),
	}
	stats := domain.PortfolioStatistics{TotalTokens: len(quotes) + 1}
	if main.Success {
		stats.Successful++
		addTotals(&stats, main.Data)
	}
	for _, q := range quotes {
		if q.Success {
			groups.Successful = append(groups.Successful, q)
			stats.Successful++
			addTotals(&stats, q.Data)
		} else {
			groups.Failed = append(groups.Failed, q)
		}
	}
	stats.Failed = stats.TotalTokens - stats.Successful
	stats.SuccessRate = fmt.Sprintf("%.1f%%", float64(stats.Successful)/float64(stats.TotalTokens)*100)

	pools := slices.Clone(s.portfolio.LPPools)
	if pools == nil {
		pools = []domain.LPPool{}
	}
	span.SetAttributes(attribute.Int("successful", stats.Successful), attribute.Int("failed", stats.Failed))

	return &domain.PortfolioSummary{
		PortfolioName: s.portfolio.Name,
		Network:       s.portfolio.Network,
		Timestamp:     s.now().UTC().Format(time.RFC3339),
		MainToken:     main,
		QuoteTokens:   groups,
		LPPools:       domain.LPPoolListing{Count: len(pools), Pools: pools, Note: lpPoolNote},
		Statistics:    stats,
	}
}

func addTotals(stats *domain.PortfolioStatistics, data *domain.TokenPriceResult) {
	if data == nil {
		return
	}
	stats.TotalLiquidityUSD += domain.ValueOrZero(data.LiquidityUSD)
	stats.TotalVolume24hUSD += domain.ValueOrZero(data.Volume24h)
}

// PricesOnly is a light snapshot for frequent dashboard refreshes.
func (s *PortfolioService) PricesOnly(ctx context.Context) *domain.PortfolioPrices {
	ctx, span := s.tracer.Start(ctx, "portfolio.prices-only")
	defer span.End()

	main, quotes := s.mainAndQuotes(ctx)
	s.fillMissingPrices(ctx, &main, quotes)

	out := &domain.PortfolioPrices{
		Timestamp: s.now().UTC().Format(time.RFC3339),
		MainToken: domain.PriceLine{Symbol: s.portfolio.MainToken.Symbol},
		Pairs:     []domain.PriceLine{},
	}
	if main.Success && main.Data != nil {
		out.MainToken.Price = main.Data.CurrentPrice
		out.MainToken.PriceChange24h = main.Data.PriceChangePct24h
	}
	for _, q := range quotes {
		if !q.Success || q.Data == nil {
			continue
		}
		out.Pairs = append(out.Pairs, domain.PriceLine{
			Symbol:         q.Symbol,
			Pair:           q.Pair,
			Price:          q.Data.CurrentPrice,
			PriceChange24h: q.Data.PriceChangePct24h,
			Volume24h:      q.Data.Volume24h,
			Source:         q.Data.Source,
		})
	}
	return out
}

func hasPrice(o domain.TokenOutcome) bool {
	return o.Success && o.Data != nil && o.Data.CurrentPrice != nil
}

// fillMissingPrices batch-prices every outcome the resolver left without a
// price. A failed batch leaves the outcomes untouched.
func (s *PortfolioService) fillMissingPrices(ctx context.Context, main *domain.TokenOutcome, quotes []domain.TokenOutcome) {
	if s.batch == nil {
		return
	}
	type pending struct {
		outcome *domain.TokenOutcome
		ref     domain.TokenRef
	}
	var missing []pending
	if !hasPrice(*main) {
		missing = append(missing, pending{main, s.portfolio.MainToken.Ref()})
	}
	for i, token := range s.portfolio.QuoteTokens {
		if i < len(quotes) && !hasPrice(quotes[i]) {
			missing = append(missing, pending{&quotes[i], token.Ref()})
		}
	}
	if len(missing) == 0 {
		return
	}

	refs := make([]domain.TokenRef, len(missing))
	for i, m := range missing {
		refs[i] = m.ref
	}
	prices, err := s.batch.TokenPrices(ctx, refs)
	if err != nil {
		s.logger.Warn("batch price fallback failed", zap.Int("tokens", len(refs)), zap.Error(err))
		return
	}
	for _, m := range missing {
		data, ok := prices[m.ref]
		if !ok || data == nil {
			continue
		}
		m.outcome.Success = true
		m.outcome.Error = ""
		m.outcome.Data = data
	}
}

// TokenWithHistory resolves any address on the portfolio's network with
// history. Failure is reported in the outcome.
func (s *PortfolioService) TokenWithHistory(ctx context.Context, address string, days int) domain.HistoryOutcome {
	ref, err := domain.NewTokenRef(address, s.portfolio.Network)
	if err != nil {
		return domain.HistoryOutcome{Error: err.Error()}
	}
	data, err := s.resolver.ResolveWithHistory(ctx, ref, days)
	if err != nil {
		return domain.HistoryOutcome{Error: err.Error()}
	}
	return domain.HistoryOutcome{Success: true, Data: data}
}

func (s *PortfolioService) MainTokenWithHistory(ctx context.Context, days int) domain.HistoryOutcome {
	return s.TokenWithHistory(ctx, s.portfolio.MainToken.Contract, days)
}

// TopPairsByLiquidity ranks the successfully priced quote pairs by liquidity.
func (s *PortfolioService) TopPairsByLiquidity(ctx context.Context, limit int) []domain.PairRanking {
	return s.topPairs(ctx, limit, func(r domain.PairRanking) float64 { return r.LiquidityUSD })
}

// TopPairsByVolume ranks the successfully priced quote pairs by 24h volume.
func (s *PortfolioService) TopPairsByVolume(ctx context.Context, limit int) []domain.PairRanking {
	return s.topPairs(ctx, limit, func(r domain.PairRanking) float64 { return r.Volume24h })
}

func (s *PortfolioService) topPairs(ctx context.Context, limit int, key func(domain.PairRanking) float64) []domain.PairRanking {
	ctx, span := s.tracer.Start(ctx, "portfolio.top-pairs")
	defer span.End()

	ranked := []domain.PairRanking{}
	for _, q := range s.QuoteTokens(ctx) {
		if !q.Success || q.Data == nil {
			continue
		}
		ranked = append(ranked, domain.PairRanking{
			Pair:         q.Pair,
			Symbol:       q.Symbol,
			LiquidityUSD: domain.ValueOrZero(q.Data.LiquidityUSD),
			Volume24h:    domain.ValueOrZero(q.Data.Volume24h),
			Price:        q.Data.CurrentPrice,
			Source:       q.Data.Source,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return key(ranked[i]) > key(ranked[j]) })
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// HealthCheck reports healthy when the main token resolves, degraded otherwise.
func (s *PortfolioService) HealthCheck(ctx context.Context) domain.PortfolioHealth {
	main := s.MainToken(ctx)
	status := domain.StatusHealthy
	if !main.Success {
		status = domain.StatusDegraded
	}
	return domain.PortfolioHealth{
		Status:              status,
		Timestamp:           s.now().UTC().Format(time.RFC3339),
		MainTokenAccessible: main.Success,
		Error:               main.Error,
	}
}

// LookupToken finds a tracked token by contract address.
func (s *PortfolioService) LookupToken(address string) (domain.PortfolioToken, bool) {
	return s.portfolio.TokenByAddress(address)
}

// LookupPool finds a tracked LP pool by address.
func (s *PortfolioService) LookupPool(address string) (domain.LPPool, bool) {
	return s.portfolio.PoolByAddress(address)
}
