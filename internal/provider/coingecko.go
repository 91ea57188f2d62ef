package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider fetches symbol-keyed market data from the CoinGecko free API.
type CoinGeckoProvider struct {
	session
	baseURL string
	tracer  trace.Tracer
}

// NewCoinGeckoProvider creates a provider limited to CoinGeckoBudget unless
// opts say otherwise.
func NewCoinGeckoProvider(tracer trace.Tracer, baseURL string, timeout time.Duration, opts ...Option) *CoinGeckoProvider {
	if baseURL == "" {
		baseURL = coingeckoBaseURL
	}
	p := &CoinGeckoProvider{
		session: session{timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
	}
	p.configure(CoinGeckoBudget, opts)
	return p
}

// FetchPrices fetches current prices for the given symbols in a single API call.
func (p *CoinGeckoProvider) FetchPrices(ctx context.Context, symbols []string) (map[string]*domain.MarketQuote, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-prices")
	defer span.End()

	ids := make([]string, 0, len(symbols))
	symbolByID := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		id := domain.CoinIDForSymbol(sym)
		ids = append(ids, id)
		symbolByID[id] = strings.ToUpper(sym)
	}

	url := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd&include_24hr_vol=true&include_24hr_change=true&include_market_cap=true",
		p.baseURL, strings.Join(ids, ","))

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}

	// Response shape: {"bitcoin": {"usd": 97000, "usd_24h_vol": 45000000000, "usd_24h_change": 2.34}, ...}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceCoinGecko, "prices", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result := make(map[string]*domain.MarketQuote, len(raw))
	for cgID, data := range raw {
		symbol, ok := symbolByID[cgID]
		if !ok {
			continue
		}
		price, ok := data["usd"]
		if !ok {
			continue
		}
		quote := &domain.MarketQuote{
			Symbol:       symbol,
			CurrentPrice: price,
			Source:       domain.SourceCoinGecko,
			LastUpdated:  now,
		}
		if v, ok := data["usd_24h_vol"]; ok {
			quote.Volume24h = domain.Float(v)
		}
		if v, ok := data["usd_24h_change"]; ok {
			quote.PriceChangePct24h = domain.Float(v)
		}
		if v, ok := data["usd_market_cap"]; ok {
			quote.MarketCap = domain.Float(v)
		}
		result[symbol] = quote
	}

	return result, nil
}

type coinResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	MarketData struct {
		CurrentPrice      map[string]float64 `json:"current_price"`
		MarketCap         map[string]float64 `json:"market_cap"`
		TotalVolume       map[string]float64 `json:"total_volume"`
		PriceChange24h    *float64           `json:"price_change_24h"`
		PriceChangePct24h *float64           `json:"price_change_percentage_24h"`
	} `json:"market_data"`
	Image struct {
		Small string `json:"small"`
	} `json:"image"`
}

// CoinPrice returns the full market snapshot for a single symbol.
func (p *CoinGeckoProvider) CoinPrice(ctx context.Context, symbol string) (*domain.MarketQuote, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.coin-price")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	cgID := domain.CoinIDForSymbol(symbol)
	url := fmt.Sprintf("%s/coins/%s?localization=false&tickers=false&market_data=true&community_data=false&developer_data=false",
		p.baseURL, cgID)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, notFound(err, domain.SourceCoinGecko, symbol)
	}

	var raw coinResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceCoinGecko, "coin", err)
	}
	price, ok := raw.MarketData.CurrentPrice["usd"]
	if !ok {
		return nil, &domain.NoDataError{Source: domain.SourceCoinGecko, Token: symbol}
	}

	quote := &domain.MarketQuote{
		Symbol:            strings.ToUpper(symbol),
		Name:              raw.Name,
		CurrentPrice:      price,
		PriceChange24h:    raw.MarketData.PriceChange24h,
		PriceChangePct24h: raw.MarketData.PriceChangePct24h,
		Image:             raw.Image.Small,
		Source:            domain.SourceCoinGecko,
		LastUpdated:       time.Now().UTC().Format(time.RFC3339),
	}
	if v, ok := raw.MarketData.MarketCap["usd"]; ok {
		quote.MarketCap = domain.Float(v)
	}
	if v, ok := raw.MarketData.TotalVolume["usd"]; ok {
		quote.Volume24h = domain.Float(v)
	}
	return quote, nil
}

type marketsEntry struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	CurrentPrice      float64  `json:"current_price"`
	MarketCap         *float64 `json:"market_cap"`
	TotalVolume       *float64 `json:"total_volume"`
	PriceChange24h    *float64 `json:"price_change_24h"`
	PriceChangePct24h *float64 `json:"price_change_percentage_24h"`
	MarketCapRank     *int     `json:"market_cap_rank"`
	Image             string   `json:"image"`
	LastUpdated       string   `json:"last_updated"`
}

// TopCoins returns the top coins by market cap.
func (p *CoinGeckoProvider) TopCoins(ctx context.Context, limit int) ([]*domain.MarketQuote, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.top-coins")
	defer span.End()
	span.SetAttributes(attribute.Int("limit", limit))

	url := fmt.Sprintf("%s/coins/markets?vs_currency=usd&order=market_cap_desc&per_page=%d&page=1&sparkline=false",
		p.baseURL, limit)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch top coins: %w", err)
	}

	var raw []marketsEntry
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceCoinGecko, "markets", err)
	}

	out := make([]*domain.MarketQuote, 0, len(raw))
	for _, c := range raw {
		out = append(out, &domain.MarketQuote{
			Symbol:            strings.ToUpper(c.Symbol),
			Name:              c.Name,
			CurrentPrice:      c.CurrentPrice,
			MarketCap:         c.MarketCap,
			Volume24h:         c.TotalVolume,
			PriceChange24h:    c.PriceChange24h,
			PriceChangePct24h: c.PriceChangePct24h,
			MarketCapRank:     c.MarketCapRank,
			Image:             c.Image,
			Source:            domain.SourceCoinGecko,
			LastUpdated:       c.LastUpdated,
		})
	}
	return out, nil
}

// FetchMarketChart fetches market_chart data and buckets it into candles of
// the given interval ("hourly" or "daily").
func (p *CoinGeckoProvider) FetchMarketChart(ctx context.Context, symbol string, days int, interval string) (domain.HistoricalSeries, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-market-chart")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.Int("days", days))

	bucket := intervalToDuration(interval)
	if bucket == 0 {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}

	cgID := domain.CoinIDForSymbol(symbol)
	url := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d",
		p.baseURL, cgID, days)

	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, notFound(err, domain.SourceCoinGecko, symbol)
	}

	var raw struct {
		Prices       [][]float64 `json:"prices"`
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceCoinGecko, "market chart", err)
	}

	return buildCandlesFromMarketChart(bucket, raw.Prices, raw.TotalVolumes), nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	return p.doJSON(ctx, domain.SourceCoinGecko, http.MethodGet, url, nil)
}

type volumePoint struct {
	ts  int64
	vol float64
}

// buildCandlesFromMarketChart constructs candles of the given bucket width
// from raw market_chart price/volume arrays.
func buildCandlesFromMarketChart(bucket time.Duration, prices, volumes [][]float64) domain.HistoricalSeries {
	if len(prices) == 0 || bucket <= 0 {
		return domain.HistoricalSeries{}
	}

	volPoints := make([]volumePoint, 0, len(volumes))
	for _, v := range volumes {
		if len(v) >= 2 {
			volPoints = append(volPoints, volumePoint{ts: int64(v[0]), vol: v[1]})
		}
	}

	sort.Slice(prices, func(i, j int) bool {
		return prices[i][0] < prices[j][0]
	})

	buckets := make(map[int64]*domain.Candle)
	for _, pt := range prices {
		if len(pt) < 2 {
			continue
		}
		price := pt[1]
		key := time.UnixMilli(int64(pt[0])).Truncate(bucket).UnixMilli()

		c, exists := buckets[key]
		if !exists {
			buckets[key] = &domain.Candle{Timestamp: key, Open: price, High: price, Low: price, Close: price}
			continue
		}
		c.High = math.Max(c.High, price)
		c.Low = math.Min(c.Low, price)
		c.Close = price // last price in the bucket
	}

	series := make(domain.HistoricalSeries, 0, len(buckets))
	for key, c := range buckets {
		c.Volume = findClosestVolume(volPoints, key+bucket.Milliseconds())
		series = append(series, *c)
	}
	series.SortAscending()
	return series
}

func findClosestVolume(volumes []volumePoint, targetMs int64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	closest := volumes[0]
	minDiff := int64(math.MaxInt64)
	for _, v := range volumes {
		diff := v.ts - targetMs
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = v
		}
	}
	return closest.vol
}

func intervalToDuration(interval string) time.Duration {
	switch interval {
	case domain.IntervalHourly, "1h":
		return time.Hour
	case domain.IntervalDaily, "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}
