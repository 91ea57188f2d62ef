package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tokenlens/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var testRef = domain.TokenRef{Address: "0x4bf82cf0d6b2afc87367052b793097153c859d38", Network: "polygon"}

func newTestOrchestrator(dex *fakeDEX, oracle *fakeOracle, meta *fakeMetadata) *PriceOrchestrator {
	o := NewPriceOrchestrator(testTracer, zap.NewNop(), dex, oracle, meta)
	o.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return o
}

func TestResolvePriceReturnsPrimaryUnmodified(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceOK(domain.SourceGeckoTerminal, 0.0123)}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 1)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolvePrice(context.Background(), testRef, true)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceGeckoTerminal, got.Source)
	assert.InDelta(t, 0.0123, *got.CurrentPrice, 1e-12)
	assert.Empty(t, got.Name)
	assert.Zero(t, oracle.calls.Load())
	assert.Zero(t, meta.calls.Load())
}

func TestResolvePriceFallsBackToOracleWithEnrichment(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "not found")}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 2.5)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolvePrice(context.Background(), testRef, true)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDefiLlama, got.Source)
	assert.Equal(t, "DDD Token", got.Name)
	require.NotNil(t, got.ImageURL)
	assert.Equal(t, "https://img/DDD.png", *got.ImageURL)
	require.NotNil(t, got.Decimals)
	assert.Equal(t, 18, *got.Decimals)
}

func TestResolvePriceIgnoresEnrichmentFailure(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 500, "boom")}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 2.5)}
	meta := &fakeMetadata{meta: metaFails("alchemy down")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolvePrice(context.Background(), testRef, true)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDefiLlama, got.Source)
	assert.InDelta(t, 2.5, *got.CurrentPrice, 1e-12)
	assert.Nil(t, got.ImageURL)
}

func TestResolvePriceSkipsEnrichmentWhenFlagUnset(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 500, "boom")}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 2.5)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	_, err := o.ResolvePrice(context.Background(), testRef, false)
	require.NoError(t, err)
	assert.Zero(t, meta.calls.Load())
}

func TestResolvePriceMetadataOnly(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "not found")}
	oracle := &fakeOracle{price: func(_ context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
		return nil, &domain.NoDataError{Source: domain.SourceDefiLlama, Token: ref.Address}
	}}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolvePrice(context.Background(), testRef, true)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceMetadataOnly, got.Source)
	assert.Nil(t, got.CurrentPrice)
	assert.Nil(t, got.Volume24h)
	assert.Nil(t, got.LiquidityUSD)
	assert.Equal(t, "Price data unavailable - metadata only", got.Note)
	assert.Equal(t, "DDD", got.Symbol)
	assert.Equal(t, testRef.Address, got.ContractAddress)
	assert.False(t, got.HasPrice())
}

func TestResolvePriceAllFail(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "gt missing")}
	oracle := &fakeOracle{price: priceFails(domain.SourceDefiLlama, 500, "llama down")}
	meta := &fakeMetadata{meta: metaFails("alchemy down")}
	o := newTestOrchestrator(dex, oracle, meta)

	_, err := o.ResolvePrice(context.Background(), testRef, true)
	require.Error(t, err)

	var agg *domain.AggregateFailure
	require.True(t, errors.As(err, &agg))
	require.Len(t, agg.Failures, 3)
	assert.Equal(t, "GeckoTerminal", agg.Failures[0].Source)
	assert.Equal(t, "DeFiLlama", agg.Failures[1].Source)
	assert.Equal(t, "Alchemy", agg.Failures[2].Source)
	assert.Equal(t, testRef.String(), agg.Token)

	msg := err.Error()
	assert.Less(t, strings.Index(msg, "GeckoTerminal"), strings.Index(msg, "DeFiLlama"))
	assert.Less(t, strings.Index(msg, "DeFiLlama"), strings.Index(msg, "Alchemy"))
	assert.Contains(t, msg, "gt missing")
}

func TestResolvePriceAllFailWithoutMetadataFlag(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "gt missing")}
	oracle := &fakeOracle{price: priceFails(domain.SourceDefiLlama, 500, "llama down")}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	_, err := o.ResolvePrice(context.Background(), testRef, false)
	var agg *domain.AggregateFailure
	require.ErrorAs(t, err, &agg)
	assert.Len(t, agg.Failures, 2)
	assert.Zero(t, meta.calls.Load())
}

func TestResolvePriceStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	dex := &fakeDEX{price: func(ctx context.Context, _ domain.TokenRef) (*domain.TokenPriceResult, error) {
		cancel()
		return nil, ctx.Err()
	}}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 1)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	_, err := o.ResolvePrice(ctx, testRef, true)
	require.ErrorIs(t, err, context.Canceled)
	var agg *domain.AggregateFailure
	assert.False(t, errors.As(err, &agg))
	assert.Zero(t, oracle.calls.Load())
}

func TestResolvePriceIsRepeatable(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "missing")}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 3)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	first, err := o.ResolvePrice(context.Background(), testRef, true)
	require.NoError(t, err)
	second, err := o.ResolvePrice(context.Background(), testRef, true)
	require.NoError(t, err)

	first.LastUpdated, second.LastUpdated = "", ""
	assert.Equal(t, first, second)
}

func TestResolvePriceLogsEachFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "missing")}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 3)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := NewPriceOrchestrator(testTracer, zap.New(core), dex, oracle, meta)

	_, err := o.ResolvePrice(context.Background(), testRef, false)
	require.NoError(t, err)

	entries := logs.FilterMessage("price source failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "GeckoTerminal", entries[0].ContextMap()["source"])
}

func TestResolveWithHistoryPrefersOHLCV(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{
		price: priceOK(domain.SourceGeckoTerminal, 1),
		ohlcv: func(_ context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error) {
			assert.Equal(t, 30, days)
			return &domain.TokenWithHistory{
				TokenPriceResult: *priceResult(ref, domain.SourceGeckoTerminal, 1),
				HistoricalData:   domain.HistoricalSeries{{Timestamp: 1000, Close: 1}},
			}, nil
		},
	}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 2)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolveWithHistory(context.Background(), testRef, 30)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceGeckoTerminal, got.Source)
	assert.Len(t, got.HistoricalData, 1)
	assert.Zero(t, oracle.calls.Load())
}

func TestResolveWithHistoryUsesOracleHistory(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceOK(domain.SourceGeckoTerminal, 1)}
	oracle := &fakeOracle{
		price: priceOK(domain.SourceDefiLlama, 2),
		history: func(_ context.Context, _ domain.TokenRef, span int) (domain.HistoricalSeries, error) {
			assert.Equal(t, 7, span)
			return domain.HistoricalSeries{{Timestamp: 1000, Close: 2}, {Timestamp: 2000, Close: 2.1}}, nil
		},
	}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolveWithHistory(context.Background(), testRef, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceDefiLlama, got.Source)
	assert.Len(t, got.HistoricalData, 2)
	assert.Empty(t, got.HistoricalError)
}

func TestResolveWithHistoryDegradesWhenOracleHistoryFails(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceOK(domain.SourceGeckoTerminal, 1)}
	oracle := &fakeOracle{
		price: priceOK(domain.SourceDefiLlama, 2),
		history: func(context.Context, domain.TokenRef, int) (domain.HistoricalSeries, error) {
			return nil, errors.New("chart unavailable")
		},
	}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolveWithHistory(context.Background(), testRef, 7)
	require.NoError(t, err)
	assert.NotNil(t, got.HistoricalData)
	assert.Empty(t, got.HistoricalData)
	assert.Equal(t, "chart unavailable", got.HistoricalError)
	assert.Equal(t, "Historical data unavailable", got.Note)
}

func TestResolveWithHistoryFallsBackToCurrentPrice(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "missing")}
	oracle := &fakeOracle{price: priceFails(domain.SourceDefiLlama, 404, "missing")}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	got, err := o.ResolveWithHistory(context.Background(), testRef, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceMetadataOnly, got.Source)
	assert.Empty(t, got.HistoricalData)
	assert.Contains(t, got.Note, "Historical data unavailable")
	assert.Contains(t, got.Note, "metadata only")
}

func TestResolveWithHistoryAllFail(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceFails(domain.SourceGeckoTerminal, 404, "missing")}
	oracle := &fakeOracle{price: priceFails(domain.SourceDefiLlama, 404, "missing")}
	meta := &fakeMetadata{meta: metaFails("down")}
	o := newTestOrchestrator(dex, oracle, meta)

	_, err := o.ResolveWithHistory(context.Background(), testRef, 7)
	var agg *domain.AggregateFailure
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Failures, 3)
	assert.Equal(t, "GeckoTerminal OHLCV", agg.Failures[0].Source)
	assert.Equal(t, "DeFiLlama historical", agg.Failures[1].Source)
	assert.Equal(t, "Current price fallback", agg.Failures[2].Source)
}

func TestResolveManyDropsFailuresAndKeepsOrder(t *testing.T) {
	t.Parallel()

	good := domain.TokenRef{Address: "0x1111111111111111111111111111111111111111", Network: "polygon"}
	bad := domain.TokenRef{Address: "0x2222222222222222222222222222222222222222", Network: "polygon"}
	other := domain.TokenRef{Address: "0x3333333333333333333333333333333333333333", Network: "polygon"}

	dex := &fakeDEX{price: func(_ context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
		if ref == bad {
			return nil, &domain.NoDataError{Source: domain.SourceGeckoTerminal, Token: ref.Address}
		}
		return priceResult(ref, domain.SourceGeckoTerminal, 1), nil
	}}
	oracle := &fakeOracle{price: priceFails(domain.SourceDefiLlama, 404, "missing")}
	meta := &fakeMetadata{meta: metaFails("down")}
	o := newTestOrchestrator(dex, oracle, meta)

	got := o.ResolveMany(context.Background(), []domain.TokenRef{good, bad, other})
	require.Len(t, got, 2)
	assert.Equal(t, good.Address, got[0].ContractAddress)
	assert.Equal(t, other.Address, got[1].ContractAddress)
}

func TestResolveManyEmpty(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(&fakeDEX{}, &fakeOracle{}, &fakeMetadata{})
	got := o.ResolveMany(context.Background(), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCompareSourcesConsistent(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceOK(domain.SourceGeckoTerminal, 100)}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 104)}
	meta := &fakeMetadata{meta: metaOK("DDD", "DDD Token")}
	o := newTestOrchestrator(dex, oracle, meta)

	cmp := o.CompareSources(context.Background(), testRef)
	require.Len(t, cmp.Sources, 3)
	assert.True(t, cmp.Sources["geckoterminal"].Success)
	assert.True(t, cmp.Sources["defillama"].Success)
	alchemy := cmp.Sources["alchemy"]
	assert.True(t, alchemy.Success)
	assert.Nil(t, alchemy.Price)
	assert.Equal(t, "Metadata only, no price", alchemy.Note)
	assert.Equal(t, "2024-01-01T00:00:00Z", cmp.Timestamp)

	require.NotNil(t, cmp.PriceAnalysis)
	assert.InDelta(t, 102, cmp.PriceAnalysis.Average, 1e-9)
	// |100-102| / 102 and |104-102| / 102 are both 1.96%.
	assert.InDelta(t, 1.9608, cmp.PriceAnalysis.MaxDeviationPercent, 1e-3)
	assert.True(t, cmp.PriceAnalysis.Consistent)
	assert.Len(t, cmp.PriceAnalysis.Prices, 2)
}

func TestCompareSourcesSinglePriceHasNoAnalysis(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{price: priceOK(domain.SourceGeckoTerminal, 100)}
	oracle := &fakeOracle{price: priceFails(domain.SourceDefiLlama, 500, "down")}
	meta := &fakeMetadata{meta: metaFails("down")}
	o := newTestOrchestrator(dex, oracle, meta)

	cmp := o.CompareSources(context.Background(), testRef)
	assert.Nil(t, cmp.PriceAnalysis)
	assert.False(t, cmp.Sources["defillama"].Success)
	assert.Contains(t, cmp.Sources["defillama"].Error, "down")
	assert.False(t, cmp.Sources["alchemy"].Success)
}

func TestAnalyzePrices(t *testing.T) {
	t.Parallel()

	inconsistent := AnalyzePrices([]domain.SourcePrice{{Source: "a", Price: 100}, {Source: "b", Price: 120}})
	require.NotNil(t, inconsistent)
	assert.InDelta(t, 110, inconsistent.Average, 1e-9)
	assert.False(t, inconsistent.Consistent)

	zero := AnalyzePrices([]domain.SourcePrice{{Source: "a", Price: 0}, {Source: "b", Price: 0}})
	require.NotNil(t, zero)
	assert.Zero(t, zero.MaxDeviationPercent)
	assert.True(t, zero.Consistent)

	assert.Nil(t, AnalyzePrices(nil))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var probed []domain.TokenRef
	dex := &fakeDEX{price: func(_ context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
		mu.Lock()
		probed = append(probed, ref)
		mu.Unlock()
		return priceResult(ref, domain.SourceGeckoTerminal, 1), nil
	}}
	oracle := &fakeOracle{price: priceOK(domain.SourceDefiLlama, 1)}
	meta := &fakeMetadata{meta: metaFails("no key")}
	o := newTestOrchestrator(dex, oracle, meta)

	report := o.HealthCheck(context.Background())
	assert.False(t, report.Overall)
	assert.Equal(t, domain.StatusHealthy, report.Services["geckoterminal"].Status)
	assert.Equal(t, domain.StatusHealthy, report.Services["defillama"].Status)
	assert.Equal(t, domain.StatusUnhealthy, report.Services["alchemy"].Status)
	assert.Contains(t, report.Services["alchemy"].Error, "no key")
	assert.Equal(t, []domain.TokenRef{HealthProbeToken}, probed)
}

func TestHealthCheckAllHealthy(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(
		&fakeDEX{price: priceOK(domain.SourceGeckoTerminal, 1)},
		&fakeOracle{price: priceOK(domain.SourceDefiLlama, 1)},
		&fakeMetadata{meta: metaOK("USDC", "USD Coin")},
	)
	assert.True(t, o.HealthCheck(context.Background()).Overall)
}

func TestOrchestratorCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	dex := &fakeDEX{}
	o := newTestOrchestrator(dex, &fakeOracle{}, &fakeMetadata{})
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())
	assert.Equal(t, int32(2), dex.closed.Load())
}
