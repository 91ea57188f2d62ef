package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func stubClient(fn roundTripFunc) *http.Client {
	return &http.Client{Transport: fn}
}

func noopTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func newTestCoinGecko(fn roundTripFunc) *CoinGeckoProvider {
	provider := NewCoinGeckoProvider(noopTracer(), "http://example", time.Second, WithBudget(Budget{}))
	provider.client = stubClient(fn)
	return provider
}

func TestBuildCandlesFromMarketChart(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prices := [][]float64{
		{float64(base.Add(70 * time.Minute).UnixMilli()), 8},
		{float64(base.UnixMilli()), 10},
		{float64(base.Add(20 * time.Minute).UnixMilli()), 12},
		{float64(base.Add(40 * time.Minute).UnixMilli()), 11},
		{float64(base.Add(80 * time.Minute).UnixMilli()), 9},
	}
	volumes := [][]float64{
		{float64(base.Add(time.Hour).UnixMilli()), 100},
		{float64(base.Add(2 * time.Hour).UnixMilli()), 200},
	}

	candles := buildCandlesFromMarketChart(time.Hour, prices, volumes)
	if len(candles) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(candles))
	}

	first := candles[0]
	if first.Open != 10 || first.High != 12 || first.Low != 10 || first.Close != 11 {
		t.Fatalf("unexpected first candle: %+v", first)
	}
	if first.Volume != 100 {
		t.Fatalf("expected volume 100, got %f", first.Volume)
	}

	second := candles[1]
	if second.Timestamp != base.Add(time.Hour).UnixMilli() {
		t.Fatalf("unexpected timestamp: %v", second.Timestamp)
	}
	if second.Open != 8 || second.Close != 9 || second.Volume != 200 {
		t.Fatalf("unexpected second candle: %+v", second)
	}
}

func TestFindClosestVolume(t *testing.T) {
	volumes := []volumePoint{
		{ts: 1000, vol: 1},
		{ts: 1500, vol: 5},
		{ts: 2000, vol: 10},
	}
	vol := findClosestVolume(volumes, 1600)
	if vol != 5 {
		t.Fatalf("expected volume 5, got %f", vol)
	}
}

func TestIntervalToDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"hourly": time.Hour,
		"daily":  24 * time.Hour,
		"1h":     time.Hour,
		"1d":     24 * time.Hour,
		"bad":    0,
	}
	for interval, expected := range tests {
		if got := intervalToDuration(interval); got != expected {
			t.Fatalf("%s expected %v, got %v", interval, expected, got)
		}
	}
}

func TestCoinGeckoProviderFetchPrices(t *testing.T) {
	t.Parallel()

	provider := newTestCoinGecko(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, "/simple/price") {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if ids := req.URL.Query().Get("ids"); ids != "bitcoin,pepe" {
			t.Fatalf("unexpected ids: %s", ids)
		}
		resp := map[string]map[string]float64{
			"bitcoin": {"usd": 100, "usd_24h_vol": 10, "usd_24h_change": 1.5},
		}
		data, _ := json.Marshal(resp)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
		}, nil
	})

	result, err := provider.FetchPrices(context.Background(), []string{"BTC", "pepe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	quote, ok := result["BTC"]
	if !ok || quote.CurrentPrice != 100 {
		t.Fatalf("expected BTC quote, got %+v", quote)
	}
	if *quote.Volume24h != 10 || *quote.PriceChangePct24h != 1.5 {
		t.Fatalf("unexpected quote values: %+v", quote)
	}
	if quote.MarketCap != nil {
		t.Fatalf("market cap should be unset, got %v", *quote.MarketCap)
	}
}

func TestCoinGeckoProviderCoinPrice(t *testing.T) {
	t.Parallel()

	provider := newTestCoinGecko(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/coins/ethereum" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{
			"id": "ethereum", "name": "Ethereum",
			"market_data": {
				"current_price": {"usd": 3000.5},
				"market_cap": {"usd": 1000000},
				"total_volume": {"usd": 5000},
				"price_change_24h": -12.5,
				"price_change_percentage_24h": -0.4
			},
			"image": {"small": "https://img/eth.png"}
		}`), nil
	})

	quote, err := provider.CoinPrice(context.Background(), "eth")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Symbol != "ETH" || quote.Name != "Ethereum" || quote.CurrentPrice != 3000.5 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if quote.PriceChange24h == nil || *quote.PriceChange24h != -12.5 {
		t.Fatalf("unexpected change: %v", quote.PriceChange24h)
	}
	if quote.Image != "https://img/eth.png" {
		t.Fatalf("unexpected image: %s", quote.Image)
	}
}

func TestCoinGeckoProviderCoinPriceNotFound(t *testing.T) {
	t.Parallel()

	provider := newTestCoinGecko(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"error":"coin not found"}`), nil
	})

	_, err := provider.CoinPrice(context.Background(), "nope")
	var noData *domain.NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("expected NoDataError, got %v", err)
	}
}

func TestCoinGeckoProviderTopCoins(t *testing.T) {
	t.Parallel()

	provider := newTestCoinGecko(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/coins/markets" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if req.URL.Query().Get("per_page") != "2" {
			t.Fatalf("unexpected per_page: %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK, `[
			{"symbol":"btc","name":"Bitcoin","current_price":100,"market_cap_rank":1},
			{"symbol":"eth","name":"Ethereum","current_price":10,"market_cap_rank":2}
		]`), nil
	})

	coins, err := provider.TopCoins(context.Background(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(coins) != 2 || coins[0].Symbol != "BTC" || *coins[1].MarketCapRank != 2 {
		t.Fatalf("unexpected coins: %+v", coins)
	}
}

func TestCoinGeckoProviderFetchMarketChart(t *testing.T) {
	t.Parallel()

	provider := newTestCoinGecko(func(req *http.Request) (*http.Response, error) {
		if !strings.Contains(req.URL.Path, "/coins/bitcoin/market_chart") {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		resp := map[string]interface{}{
			"prices": [][]float64{
				{float64(time.Now().Add(-10 * time.Minute).UnixMilli()), 10},
				{float64(time.Now().UnixMilli()), 12},
			},
			"total_volumes": [][]float64{
				{float64(time.Now().UnixMilli()), 100},
			},
		}
		data, _ := json.Marshal(resp)
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     make(http.Header),
		}, nil
	})

	candles, err := provider.FetchMarketChart(context.Background(), "BTC", 1, domain.IntervalHourly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) == 0 {
		t.Fatalf("expected candles, got none")
	}

	if _, err := provider.FetchMarketChart(context.Background(), "BTC", 1, "5m"); err == nil {
		t.Fatal("expected unsupported interval error")
	}
}
