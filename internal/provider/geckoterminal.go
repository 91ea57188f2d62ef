package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const geckoTerminalBaseURL = "https://api.geckoterminal.com/api/v2"

var geckoTerminalNetworks = map[string]string{
	"ethereum":  "eth",
	"polygon":   "polygon_pos",
	"base":      "base",
	"arbitrum":  "arbitrum",
	"optimism":  "optimism",
	"bsc":       "bsc",
	"avalanche": "avax",
}

// GeckoTerminalProvider prices tokens from DEX pool data. The free tier
// allows 30 calls per minute.
type GeckoTerminalProvider struct {
	session
	baseURL string
	tracer  trace.Tracer
}

func NewGeckoTerminalProvider(tracer trace.Tracer, baseURL string, timeout time.Duration, opts ...Option) *GeckoTerminalProvider {
	if baseURL == "" {
		baseURL = geckoTerminalBaseURL
	}
	p := &GeckoTerminalProvider{
		session: session{timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
	}
	p.configure(GeckoTerminalBudget, opts)
	return p
}

func geckoTerminalNetwork(network string) string {
	network = strings.ToLower(network)
	if id, ok := geckoTerminalNetworks[network]; ok {
		return id
	}
	return network
}

type gtTokenResponse struct {
	Data struct {
		Attributes struct {
			Name            string  `json:"name"`
			Symbol          string  `json:"symbol"`
			Decimals        *int    `json:"decimals"`
			PriceUSD        numeric `json:"price_usd"`
			FDVUSD          numeric `json:"fdv_usd"`
			MarketCapUSD    numeric `json:"market_cap_usd"`
			ImageURL        string  `json:"image_url"`
			CoingeckoCoinID string  `json:"coingecko_coin_id"`
			PriceChangePct  struct {
				H24 numeric `json:"h24"`
			} `json:"price_change_percentage"`
		} `json:"attributes"`
	} `json:"data"`
}

type gtPoolsResponse struct {
	Data []struct {
		ID         string `json:"id"`
		Attributes struct {
			Name              string  `json:"name"`
			DexID             string  `json:"dex_id"`
			ReserveInUSD      numeric `json:"reserve_in_usd"`
			BaseTokenPriceUSD numeric `json:"base_token_price_usd"`
			VolumeUSD         struct {
				H24 numeric `json:"h24"`
			} `json:"volume_usd"`
		} `json:"attributes"`
	} `json:"data"`
}

type gtOHLCVResponse struct {
	Data struct {
		Attributes struct {
			OHLCVList [][]float64 `json:"ohlcv_list"`
		} `json:"attributes"`
	} `json:"data"`
}

// Pool summarises a DEX pool as listed by GeckoTerminal.
type Pool struct {
	Address      string   `json:"address"`
	Name         string   `json:"name"`
	Network      string   `json:"network,omitempty"`
	Dex          string   `json:"dex"`
	PriceUSD     *float64 `json:"price_usd"`
	ReserveInUSD *float64 `json:"reserve_in_usd"`
	Volume24h    *float64 `json:"volume_24h"`
}

// poolAddress strips the network prefix from ids like "polygon_pos_0xabc".
func poolAddress(id string) string {
	if i := strings.LastIndex(id, "_"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// TokenPrice returns price, 24h change, FDV and the liquidity and volume of
// the token's most liquid pool.
func (p *GeckoTerminalProvider) TokenPrice(ctx context.Context, ref domain.TokenRef) (*domain.TokenPriceResult, error) {
	ctx, span := p.tracer.Start(ctx, "geckoterminal.token-price")
	defer span.End()
	span.SetAttributes(attribute.String("token", ref.String()))

	endpoint := fmt.Sprintf("%s/networks/%s/tokens/%s", p.baseURL, geckoTerminalNetwork(ref.Network), ref.Address)
	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, notFound(err, domain.SourceGeckoTerminal, ref.String())
	}

	var raw gtTokenResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceGeckoTerminal, "token", err)
	}
	attrs := raw.Data.Attributes
	price := attrs.PriceUSD.Ptr()
	if price == nil {
		return nil, &domain.NoDataError{Source: domain.SourceGeckoTerminal, Token: ref.String()}
	}

	result := &domain.TokenPriceResult{
		ContractAddress:   ref.Address,
		Network:           ref.Network,
		Symbol:            attrs.Symbol,
		Name:              attrs.Name,
		Decimals:          attrs.Decimals,
		CurrentPrice:      price,
		PriceChangePct24h: attrs.PriceChangePct.H24.Ptr(),
		MarketCap:         attrs.MarketCapUSD.Ptr(),
		FDVUSD:            attrs.FDVUSD.Ptr(),
		ImageURL:          domain.String(attrs.ImageURL),
		CoingeckoCoinID:   attrs.CoingeckoCoinID,
		Source:            domain.SourceGeckoTerminal,
		LastUpdated:       time.Now().UTC().Format(time.RFC3339),
	}

	// Pool data only enriches the result.
	pools, err := p.TokenPools(ctx, ref)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(pools) > 0 {
		top := pools[0]
		result.TopPoolAddress = top.Address
		result.LiquidityUSD = top.ReserveInUSD
		result.Volume24h = top.Volume24h
	}
	return result, nil
}

// TokenPools lists the token's pools, most liquid first.
func (p *GeckoTerminalProvider) TokenPools(ctx context.Context, ref domain.TokenRef) ([]Pool, error) {
	ctx, span := p.tracer.Start(ctx, "geckoterminal.token-pools")
	defer span.End()

	endpoint := fmt.Sprintf("%s/networks/%s/tokens/%s/pools?page=1", p.baseURL, geckoTerminalNetwork(ref.Network), ref.Address)
	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var raw gtPoolsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceGeckoTerminal, "pools", err)
	}
	return convertPools(raw), nil
}

// SearchPools finds pools by token name or symbol, optionally on one network.
func (p *GeckoTerminalProvider) SearchPools(ctx context.Context, query, network string) ([]Pool, error) {
	ctx, span := p.tracer.Start(ctx, "geckoterminal.search-pools")
	defer span.End()
	span.SetAttributes(attribute.String("query", query))

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", "1")
	if network != "" {
		params.Set("network", geckoTerminalNetwork(network))
	}
	body, err := p.get(ctx, p.baseURL+"/search/pools?"+params.Encode())
	if err != nil {
		return nil, err
	}
	var raw gtPoolsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceGeckoTerminal, "search results", err)
	}
	pools := convertPools(raw)
	for i, d := range raw.Data {
		if j := strings.LastIndex(d.ID, "_"); j > 0 {
			pools[i].Network = d.ID[:j]
		}
	}
	return pools, nil
}

func convertPools(raw gtPoolsResponse) []Pool {
	pools := make([]Pool, 0, len(raw.Data))
	for _, d := range raw.Data {
		a := d.Attributes
		pools = append(pools, Pool{
			Address:      poolAddress(d.ID),
			Name:         a.Name,
			Dex:          a.DexID,
			PriceUSD:     a.BaseTokenPriceUSD.Ptr(),
			ReserveInUSD: a.ReserveInUSD.Ptr(),
			Volume24h:    a.VolumeUSD.H24.Ptr(),
		})
	}
	return pools
}

// PoolOHLCV returns daily candles for a pool, oldest first.
func (p *GeckoTerminalProvider) PoolOHLCV(ctx context.Context, pool, network string, days int) (domain.HistoricalSeries, error) {
	ctx, span := p.tracer.Start(ctx, "geckoterminal.pool-ohlcv")
	defer span.End()
	span.SetAttributes(attribute.String("pool", pool), attribute.Int("days", days))

	endpoint := fmt.Sprintf("%s/networks/%s/pools/%s/ohlcv/day?aggregate=1&limit=%d&currency=usd",
		p.baseURL, geckoTerminalNetwork(network), strings.ToLower(pool), days)
	body, err := p.get(ctx, endpoint)
	if err != nil {
		return nil, notFound(err, domain.SourceGeckoTerminal, network+":"+pool)
	}
	var raw gtOHLCVResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceGeckoTerminal, "ohlcv", err)
	}

	series := make(domain.HistoricalSeries, 0, len(raw.Data.Attributes.OHLCVList))
	for _, row := range raw.Data.Attributes.OHLCVList {
		if len(row) < 5 {
			continue
		}
		c := domain.Candle{
			Timestamp: int64(row[0]) * 1000,
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
		}
		if len(row) > 5 {
			c.Volume = row[5]
		}
		series = append(series, c)
	}
	series.SortAscending()
	return series, nil
}

// TokenWithOHLCV returns the token price plus daily candles of its top pool.
// Only a price failure is an error; a missing pool or failed candle fetch
// leaves an empty series with HistoricalError set.
func (p *GeckoTerminalProvider) TokenWithOHLCV(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error) {
	ctx, span := p.tracer.Start(ctx, "geckoterminal.token-with-ohlcv")
	defer span.End()

	price, err := p.TokenPrice(ctx, ref)
	if err != nil {
		return nil, err
	}
	out := &domain.TokenWithHistory{TokenPriceResult: *price, HistoricalData: domain.HistoricalSeries{}}
	if price.TopPoolAddress == "" {
		out.HistoricalError = "no pool available for historical data"
		return out, nil
	}

	series, err := p.PoolOHLCV(ctx, price.TopPoolAddress, ref.Network, days)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		out.HistoricalError = err.Error()
		return out, nil
	}
	out.HistoricalData = series
	return out, nil
}

func (p *GeckoTerminalProvider) get(ctx context.Context, endpoint string) ([]byte, error) {
	return p.doJSON(ctx, domain.SourceGeckoTerminal, http.MethodGet, endpoint, nil)
}
