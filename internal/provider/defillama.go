package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defiLlamaBaseURL = "https://coins.llama.fi"

var defiLlamaChains = map[string]string{
	"avalanche": "avax",
}

// DefiLlamaProvider prices long-tail tokens from DeFiLlama's coins API.
type DefiLlamaProvider struct {
	session
	baseURL string
	tracer  trace.Tracer
}

func NewDefiLlamaProvider(tracer trace.Tracer, baseURL string, timeout time.Duration, opts ...Option) *DefiLlamaProvider {
	if baseURL == "" {
		baseURL = defiLlamaBaseURL
	}
	p := &DefiLlamaProvider{
		session: session{timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
	}
	p.configure(DefiLlamaBudget, opts)
	return p
}

// coinID formats "chain:address" as DeFiLlama expects.
func coinID(ref domain.TokenRef) string {
	chain := strings.ToLower(ref.Network)
	if id, ok := defiLlamaChains[chain]; ok {
		chain = id
	}
	return chain + ":" + strings.ToLower(ref.Address)
}

type llamaCoin struct {
	Symbol     string   `json:"symbol"`
	Decimals   *int     `json:"decimals"`
	Price      *float64 `json:"price"`
	Timestamp  int64    `json:"timestamp"`
	Confidence *float64 `json:"confidence"`
}

type llamaPricesResponse struct {
	Coins map[string]llamaCoin `json:"coins"`
}

type llamaChartResponse struct {
	Coins map[string]struct {
		Symbol   string `json:"symbol"`
		Decimals *int   `json:"decimals"`
		Prices   []struct {
			Timestamp int64   `json:"timestamp"`
			Price     float64 `json:"price"`
		} `json:"prices"`
	} `json:"coins"`
}

// TokenPrice returns the current oracle price. DeFiLlama reports no volume,
// liquidity or market data.
func (p *DefiLlamaProvider) TokenPrice(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
	ctx, span := p.tracer.Start(ctx, "defillama.token-price")
	defer span.End()

	id := coinID(ref)
	span.SetAttributes(attribute.String("coin", id))

	body, err := p.doJSON(ctx, domain.SourceDefiLlama, http.MethodGet,
		fmt.Sprintf("%s/prices/current/%s?searchWidth=4h", p.baseURL, id), nil)
	if err != nil {
		return nil, notFound(err, domain.SourceDefiLlama, id)
	}

	var raw llamaPricesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceDefiLlama, "prices", err)
	}
	coin, ok := raw.Coins[id]
	if !ok || coin.Price == nil {
		return nil, &domain.NoDataError{Source: domain.SourceDefiLlama, Token: id}
	}
	return llamaResult(ref, coin), nil
}

// TokenPrices prices several tokens in one call, keyed by the requested
// ref. Tokens DeFiLlama has no price for are absent from the result.
func (p *DefiLlamaProvider) TokenPrices(ctx context.Context, refs []domain.TokenRef) (map[domain.TokenRef]*domain.TokenPriceResult, error) {
	ctx, span := p.tracer.Start(ctx, "defillama.token-prices")
	defer span.End()

	if len(refs) == 0 {
		return map[domain.TokenRef]*domain.TokenPriceResult{}, nil
	}
	ids := make([]string, 0, len(refs))
	byID := make(map[string]domain.TokenRef, len(refs))
	for _, ref := range refs {
		id := coinID(ref)
		if _, dup := byID[id]; dup {
			continue
		}
		ids = append(ids, id)
		byID[id] = ref
	}
	span.SetAttributes(attribute.Int("coins", len(ids)))

	body, err := p.doJSON(ctx, domain.SourceDefiLlama, http.MethodGet,
		fmt.Sprintf("%s/prices/current/%s?searchWidth=4h", p.baseURL, strings.Join(ids, ",")), nil)
	if err != nil {
		return nil, err
	}
	var raw llamaPricesResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceDefiLlama, "prices", err)
	}

	out := make(map[domain.TokenRef]*domain.TokenPriceResult, len(raw.Coins))
	for id, coin := range raw.Coins {
		ref, ok := byID[id]
		if !ok || coin.Price == nil {
			continue
		}
		out[ref] = llamaResult(ref, coin)
	}
	return out, nil
}

func llamaResult(ref domain.TokenRef, coin llamaCoin) *domain.TokenPriceResult {
	return &domain.TokenPriceResult{
		ContractAddress: ref.Address,
		Network:         ref.Network,
		Symbol:          coin.Symbol,
		Decimals:        coin.Decimals,
		CurrentPrice:    coin.Price,
		Confidence:      coin.Confidence,
		Source:          domain.SourceDefiLlama,
		LastUpdated:     time.Now().UTC().Format(time.RFC3339),
	}
}

// HistoricalPrices returns daily price points for the last span days as flat
// candles with zero volume, oldest first.
func (p *DefiLlamaProvider) HistoricalPrices(ctx context.Context, ref domain.TokenRef, span int) (domain.HistoricalSeries, error) {
	ctx, sp := p.tracer.Start(ctx, "defillama.historical-prices")
	defer sp.End()

	id := coinID(ref)
	sp.SetAttributes(attribute.String("coin", id), attribute.Int("span", span))

	body, err := p.doJSON(ctx, domain.SourceDefiLlama, http.MethodGet,
		fmt.Sprintf("%s/chart/%s?span=%d&period=1d", p.baseURL, id, span), nil)
	if err != nil {
		return nil, notFound(err, domain.SourceDefiLlama, id)
	}

	var raw llamaChartResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceDefiLlama, "chart", err)
	}
	coin, ok := raw.Coins[id]
	if !ok {
		return nil, &domain.NoDataError{Source: domain.SourceDefiLlama, Token: id}
	}

	series := make(domain.HistoricalSeries, 0, len(coin.Prices))
	for _, pt := range coin.Prices {
		series = append(series, domain.FlatCandle(pt.Timestamp*1000, pt.Price))
	}
	series.SortAscending()
	return series, nil
}
