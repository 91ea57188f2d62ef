package service

import (
	"context"
	"errors"
	"math"
	"time"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthProbeToken is USDC on Polygon, liquid on every source.
var HealthProbeToken = domain.TokenRef{
	Address: "0x2791bca1f2de4661ed88a30c99a7a9449aa84174",
	Network: "polygon",
}

const (
	noteMetadataOnly       = "Price data unavailable - metadata only"
	noteHistoryUnavailable = "Historical data unavailable"
)

// DEXSource is the primary price source with pool OHLCV.
type DEXSource interface {
	TokenPrice(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error)
	TokenWithOHLCV(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error)
	Close() error
}

// OracleSource covers long-tail tokens the DEX source misses.
type OracleSource interface {
	TokenPrice(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error)
	HistoricalPrices(ctx context.Context, ref domain.TokenRef, span int) (domain.HistoricalSeries, error)
	Close() error
}

// MetadataSource supplies descriptive token data without prices.
type MetadataSource interface {
	TokenMetadata(ctx context.Context, ref domain.TokenRef) (*domain.PartialMetadata, error)
	Close() error
}

// PriceOrchestrator resolves token prices across sources. It keeps no
// per-request state and is safe for concurrent use.
type PriceOrchestrator struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	dex      DEXSource
	oracle   OracleSource
	metadata MetadataSource
	now      func() time.Time
}

func NewPriceOrchestrator(
	tracer trace.Tracer,
	logger *zap.Logger,
	dex DEXSource,
	oracle OracleSource,
	metadata MetadataSource,
) *PriceOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceOrchestrator{
		tracer:   tracer,
		logger:   logger,
		dex:      dex,
		oracle:   oracle,
		metadata: metadata,
		now:      time.Now,
	}
}

// chain records the failures of a fallback sequence in attempt order.
type chain struct {
	ctx      context.Context
	logger   *zap.Logger
	ref      domain.TokenRef
	failures []domain.SourceFailure
}

// failed records err for step. It returns a non-nil error only when the
// caller's context is done, in which case the chain must stop.
func (c *chain) failed(step string, err error) error {
	if ctxErr := c.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	c.failures = append(c.failures, domain.SourceFailure{Source: step, Message: err.Error()})
	c.logger.Warn("price source failed",
		zap.String("source", step),
		zap.String("address", c.ref.Address),
		zap.String("network", c.ref.Network),
		zap.Error(err),
	)
	return nil
}

func (c *chain) exhausted() error {
	return &domain.AggregateFailure{Token: c.ref.String(), Failures: c.failures}
}

// ResolvePrice tries GeckoTerminal, then DeFiLlama, then (when
// includeMetadataFallback is set) Alchemy metadata. It returns the first
// success or an AggregateFailure.
func (o *PriceOrchestrator) ResolvePrice(ctx context.Context, ref domain.TokenRef, includeMetadataFallback bool) (*domain.TokenPriceResult, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.resolve-price")
	defer span.End()
	span.SetAttributes(attribute.String("token", ref.String()))

	c := &chain{ctx: ctx, logger: o.logger, ref: ref}

	result, err := o.dex.TokenPrice(ctx, ref)
	if err == nil {
		o.logSuccess("GeckoTerminal", ref)
		return result, nil
	}
	if err := c.failed("GeckoTerminal", err); err != nil {
		return nil, err
	}

	result, err = o.oracle.TokenPrice(ctx, ref)
	if err == nil {
		o.logSuccess("DeFiLlama", ref)
		if includeMetadataFallback {
			if meta, ok := o.optionalMetadata(ctx, ref); ok {
				meta.Merge(result)
			}
		}
		return result, nil
	}
	if err := c.failed("DeFiLlama", err); err != nil {
		return nil, err
	}

	if includeMetadataFallback {
		meta, err := o.metadata.TokenMetadata(ctx, ref)
		if err == nil {
			o.logSuccess("Alchemy", ref)
			return metadataOnlyResult(ref, meta, o.now()), nil
		}
		if err := c.failed("Alchemy", err); err != nil {
			return nil, err
		}
	}

	return nil, c.exhausted()
}

// optionalMetadata fetches enrichment data. Any failure yields ok=false.
func (o *PriceOrchestrator) optionalMetadata(ctx context.Context, ref domain.TokenRef) (domain.PartialMetadata, bool) {
	meta, err := o.metadata.TokenMetadata(ctx, ref)
	if err != nil || meta == nil {
		if err != nil {
			o.logger.Debug("metadata enrichment skipped", zap.String("address", ref.Address), zap.Error(err))
		}
		return domain.PartialMetadata{}, false
	}
	return *meta, true
}

func metadataOnlyResult(ref domain.TokenRef, meta *domain.PartialMetadata, now time.Time) *domain.TokenPriceResult {
	lastUpdated := meta.LastUpdated
	if lastUpdated == "" {
		lastUpdated = now.UTC().Format(time.RFC3339)
	}
	return &domain.TokenPriceResult{
		ContractAddress: ref.Address,
		Network:         ref.Network,
		Symbol:          meta.Symbol,
		Name:            meta.Name,
		Decimals:        meta.Decimals,
		ImageURL:        meta.Logo,
		Source:          domain.SourceMetadataOnly,
		LastUpdated:     lastUpdated,
		Note:            noteMetadataOnly,
	}
}

// ResolveWithHistory returns the token price with up to days of daily
// history. History problems degrade to an empty series; only the failure of
// every price path is an error.
func (o *PriceOrchestrator) ResolveWithHistory(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.resolve-with-history")
	defer span.End()
	span.SetAttributes(attribute.String("token", ref.String()), attribute.Int("days", days))

	c := &chain{ctx: ctx, logger: o.logger, ref: ref}

	withOHLCV, err := o.dex.TokenWithOHLCV(ctx, ref, days)
	if err == nil {
		o.logSuccess("GeckoTerminal OHLCV", ref)
		if withOHLCV.HistoricalData == nil {
			withOHLCV.HistoricalData = domain.HistoricalSeries{}
		}
		return withOHLCV, nil
	}
	if err := c.failed("GeckoTerminal OHLCV", err); err != nil {
		return nil, err
	}

	current, err := o.oracle.TokenPrice(ctx, ref)
	if err == nil {
		out := &domain.TokenWithHistory{TokenPriceResult: *current, HistoricalData: domain.HistoricalSeries{}}
		series, err := o.oracle.HistoricalPrices(ctx, ref, days)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.logger.Warn("oracle history unavailable", zap.String("address", ref.Address), zap.Error(err))
			out.HistoricalError = err.Error()
			out.Note = noteHistoryUnavailable
			return out, nil
		}
		o.logSuccess("DeFiLlama historical", ref)
		out.HistoricalData = series
		return out, nil
	}
	if err := c.failed("DeFiLlama historical", err); err != nil {
		return nil, err
	}

	price, err := o.ResolvePrice(ctx, ref, true)
	if err == nil {
		return &domain.TokenWithHistory{
			TokenPriceResult: withNote(*price, noteHistoryUnavailable),
			HistoricalData:   domain.HistoricalSeries{},
		}, nil
	}
	if err := c.failed("Current price fallback", err); err != nil {
		return nil, err
	}

	return nil, c.exhausted()
}

// withNote sets note, keeping any note already present.
func withNote(r domain.TokenPriceResult, note string) domain.TokenPriceResult {
	if r.Note == "" {
		r.Note = note
	} else {
		r.Note = r.Note + "; " + note
	}
	return r
}

// ResolveMany resolves tokens concurrently. Failed tokens are logged and left
// out; the result keeps input order.
func (o *PriceOrchestrator) ResolveMany(ctx context.Context, refs []domain.TokenRef) []*domain.TokenPriceResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.resolve-many")
	defer span.End()
	span.SetAttributes(attribute.Int("tokens", len(refs)))

	results := make([]*domain.TokenPriceResult, len(refs))
	var g errgroup.Group
	for i, ref := range refs {
		g.Go(func() error {
			res, err := o.ResolvePrice(ctx, ref, true)
			if err != nil {
				o.logger.Error("token price resolution failed",
					zap.String("address", ref.Address),
					zap.String("network", ref.Network),
					zap.Error(err),
				)
				return nil
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	out := make([]*domain.TokenPriceResult, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// CompareSources queries every source concurrently, independent of each
// other, and reports how far their prices diverge.
func (o *PriceOrchestrator) CompareSources(ctx context.Context, ref domain.TokenRef) *domain.SourceComparison {
	ctx, span := o.tracer.Start(ctx, "orchestrator.compare-sources")
	defer span.End()

	var gecko, llama, alchemy domain.SourceOutcome
	var g errgroup.Group
	g.Go(func() error {
		gecko = priceOutcome(o.dex.TokenPrice(ctx, ref))
		return nil
	})
	g.Go(func() error {
		llama = priceOutcome(o.oracle.TokenPrice(ctx, ref))
		return nil
	})
	g.Go(func() error {
		meta, err := o.metadata.TokenMetadata(ctx, ref)
		if err != nil {
			alchemy = domain.SourceOutcome{Error: err.Error()}
			return nil
		}
		alchemy = domain.SourceOutcome{Success: true, Data: meta, Note: "Metadata only, no price"}
		return nil
	})
	_ = g.Wait()

	cmp := &domain.SourceComparison{
		ContractAddress: ref.Address,
		Network:         ref.Network,
		Timestamp:       o.now().UTC().Format(time.RFC3339),
		Sources: map[string]domain.SourceOutcome{
			string(domain.SourceGeckoTerminal): gecko,
			string(domain.SourceDefiLlama):     llama,
			string(domain.SourceAlchemy):       alchemy,
		},
	}

	var prices []domain.SourcePrice
	for _, name := range []domain.Source{domain.SourceGeckoTerminal, domain.SourceDefiLlama, domain.SourceAlchemy} {
		if out := cmp.Sources[string(name)]; out.Success && out.Price != nil {
			prices = append(prices, domain.SourcePrice{Source: string(name), Price: *out.Price})
		}
	}
	cmp.PriceAnalysis = AnalyzePrices(prices)
	return cmp
}

func priceOutcome(res *domain.TokenPriceResult, err error) domain.SourceOutcome {
	if err != nil {
		return domain.SourceOutcome{Error: err.Error()}
	}
	return domain.SourceOutcome{Success: true, Price: res.CurrentPrice, Data: res}
}

// AnalyzePrices computes mean and maximum percentage deviation. It returns
// nil for fewer than two prices. A zero mean yields zero deviation.
func AnalyzePrices(prices []domain.SourcePrice) *domain.PriceAnalysis {
	if len(prices) < 2 {
		return nil
	}
	var sum float64
	for _, p := range prices {
		sum += p.Price
	}
	avg := sum / float64(len(prices))

	var maxDev float64
	if avg != 0 {
		for _, p := range prices {
			maxDev = math.Max(maxDev, math.Abs(p.Price-avg)/avg*100)
		}
	}
	return &domain.PriceAnalysis{
		Prices:              prices,
		Average:             avg,
		MaxDeviationPercent: maxDev,
		Consistent:          maxDev < domain.ConsistencyThresholdPct,
	}
}

// HealthCheck probes every source with HealthProbeToken.
func (o *PriceOrchestrator) HealthCheck(ctx context.Context) *domain.HealthReport {
	ctx, span := o.tracer.Start(ctx, "orchestrator.health-check")
	defer span.End()

	probes := []struct {
		name  domain.Source
		probe func() error
	}{
		{domain.SourceGeckoTerminal, func() error { _, err := o.dex.TokenPrice(ctx, HealthProbeToken); return err }},
		{domain.SourceDefiLlama, func() error { _, err := o.oracle.TokenPrice(ctx, HealthProbeToken); return err }},
		{domain.SourceAlchemy, func() error { _, err := o.metadata.TokenMetadata(ctx, HealthProbeToken); return err }},
	}

	statuses := make([]domain.ServiceHealth, len(probes))
	var g errgroup.Group
	for i, p := range probes {
		g.Go(func() error {
			if err := p.probe(); err != nil {
				statuses[i] = domain.ServiceHealth{Status: domain.StatusUnhealthy, Error: err.Error()}
				return nil
			}
			statuses[i] = domain.ServiceHealth{Status: domain.StatusHealthy}
			return nil
		})
	}
	_ = g.Wait()

	report := &domain.HealthReport{
		Timestamp: o.now().UTC().Format(time.RFC3339),
		Services:  make(map[string]domain.ServiceHealth, len(probes)),
		Overall:   true,
	}
	for i, p := range probes {
		report.Services[string(p.name)] = statuses[i]
		if statuses[i].Status != domain.StatusHealthy {
			report.Overall = false
		}
	}
	return report
}

// Close releases every source's HTTP session. It is safe to call repeatedly.
func (o *PriceOrchestrator) Close() error {
	return errors.Join(o.dex.Close(), o.oracle.Close(), o.metadata.Close())
}

func (o *PriceOrchestrator) logSuccess(source string, ref domain.TokenRef) {
	o.logger.Info("price source succeeded",
		zap.String("source", source),
		zap.String("address", ref.Address),
		zap.String("network", ref.Network),
	)
}
