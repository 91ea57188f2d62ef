package service

import (
	"context"
	"sync/atomic"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeDEX struct {
	price  func(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error)
	ohlcv  func(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error)
	calls  atomic.Int32
	closed atomic.Int32
}

func (f *fakeDEX) TokenPrice(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
	f.calls.Add(1)
	return f.price(ctx, ref)
}

func (f *fakeDEX) TokenWithOHLCV(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error) {
	if f.ohlcv == nil {
		return nil, &domain.NoDataError{Source: domain.SourceGeckoTerminal, Token: ref.Address}
	}
	return f.ohlcv(ctx, ref, days)
}

func (f *fakeDEX) Close() error { f.closed.Add(1); return nil }

type fakeOracle struct {
	price   func(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error)
	history func(ctx context.Context, ref domain.TokenRef, span int) (domain.HistoricalSeries, error)
	calls   atomic.Int32
}

func (f *fakeOracle) TokenPrice(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
	f.calls.Add(1)
	return f.price(ctx, ref)
}

func (f *fakeOracle) HistoricalPrices(ctx context.Context, ref domain.TokenRef, span int) (domain.HistoricalSeries, error) {
	if f.history == nil {
		return nil, &domain.NoDataError{Source: domain.SourceDefiLlama, Token: ref.Address}
	}
	return f.history(ctx, ref, span)
}

func (f *fakeOracle) Close() error { return nil }

type fakeMetadata struct {
	meta  func(ctx context.Context, ref domain.TokenRef) (*domain.PartialMetadata, error)
	calls atomic.Int32
}

func (f *fakeMetadata) TokenMetadata(ctx context.Context, ref domain.TokenRef) (*domain.PartialMetadata, error) {
	f.calls.Add(1)
	return f.meta(ctx, ref)
}

func (f *fakeMetadata) Close() error { return nil }

func priceResult(ref domain.TokenRef, source domain.Source, price float64) *domain.TokenPriceResult {
	return &domain.TokenPriceResult{
		ContractAddress: ref.Address,
		Network:         ref.Network,
		Symbol:          "TKN",
		CurrentPrice:    domain.Float(price),
		Source:          source,
		LastUpdated:     "2024-01-01T00:00:00Z",
	}
}

func priceOK(source domain.Source, price float64) func(context.Context, domain.TokenRef) (*domain.TokenPriceResult, error) {
	return func(_ context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
		return priceResult(ref, source, price), nil
	}
}

func priceFails(source domain.Source, status int, msg string) func(context.Context, domain.TokenRef) (*domain.TokenPriceResult, error) {
	return func(context.Context, domain.TokenRef) (*domain.TokenPriceResult, error) {
		return nil, &domain.ProviderError{Source: source, Status: status, Message: msg}
	}
}

func metaOK(symbol, name string) func(context.Context, domain.TokenRef) (*domain.PartialMetadata, error) {
	return func(_ context.Context, ref domain.TokenRef) (*domain.PartialMetadata, error) {
		return &domain.PartialMetadata{
			ContractAddress: ref.Address,
			Symbol:          symbol,
			Name:            name,
			Decimals:        domain.Int(18),
			Logo:            domain.String("https://img/" + symbol + ".png"),
			LastUpdated:     "2024-01-01T00:00:00Z",
		}, nil
	}
}

func metaFails(msg string) func(context.Context, domain.TokenRef) (*domain.PartialMetadata, error) {
	return func(context.Context, domain.TokenRef) (*domain.PartialMetadata, error) {
		return nil, &domain.ProviderError{Source: domain.SourceAlchemy, Message: msg}
	}
}
