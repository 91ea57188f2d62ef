package provider

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"tokenlens/internal/domain"
)

var testRef = domain.TokenRef{Address: "0x4bf82cf0d6b2afc87367052b793097153c859d38", Network: "polygon"}

const gtTokenBody = `{"data":{"id":"polygon_pos_0x4bf8","attributes":{
	"name":"DDD Token","symbol":"DDD","decimals":18,
	"price_usd":"0.01234","fdv_usd":"123456.7","market_cap_usd":null,
	"image_url":"https://img/ddd.png","coingecko_coin_id":null,
	"price_change_percentage":{"h24":"-3.5"}}}}`

const gtPoolsBody = `{"data":[
	{"id":"polygon_pos_0xpoolA","attributes":{"name":"DDD / USDGLO","dex_id":"uniswap","reserve_in_usd":"5000.5","base_token_price_usd":"0.0123","volume_usd":{"h24":"250"}}},
	{"id":"polygon_pos_0xpoolB","attributes":{"name":"DDD / CCC","dex_id":"quickswap","reserve_in_usd":"10","volume_usd":{"h24":"1"}}}
]}`

func newTestGeckoTerminal(fn roundTripFunc) *GeckoTerminalProvider {
	p := NewGeckoTerminalProvider(noopTracer(), "http://gt", time.Second, WithBudget(Budget{}))
	p.client = stubClient(fn)
	return p
}

func TestGeckoTerminalTokenPrice(t *testing.T) {
	t.Parallel()

	p := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		switch req.URL.Path {
		case "/networks/polygon_pos/tokens/" + testRef.Address:
			return jsonResponse(http.StatusOK, gtTokenBody), nil
		case "/networks/polygon_pos/tokens/" + testRef.Address + "/pools":
			return jsonResponse(http.StatusOK, gtPoolsBody), nil
		}
		t.Fatalf("unexpected path: %s", req.URL.Path)
		return nil, nil
	})

	res, err := p.TokenPrice(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != domain.SourceGeckoTerminal || res.Symbol != "DDD" || res.Name != "DDD Token" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.CurrentPrice == nil || *res.CurrentPrice != 0.01234 {
		t.Fatalf("unexpected price: %v", res.CurrentPrice)
	}
	if res.PriceChangePct24h == nil || *res.PriceChangePct24h != -3.5 {
		t.Fatalf("unexpected change: %v", res.PriceChangePct24h)
	}
	if res.MarketCap != nil {
		t.Fatalf("market cap should be nil, got %v", *res.MarketCap)
	}
	if res.TopPoolAddress != "0xpoolA" {
		t.Fatalf("unexpected top pool: %s", res.TopPoolAddress)
	}
	if res.LiquidityUSD == nil || *res.LiquidityUSD != 5000.5 || *res.Volume24h != 250 {
		t.Fatalf("unexpected pool metrics: %+v", res)
	}
	if res.ImageURL == nil || *res.ImageURL != "https://img/ddd.png" {
		t.Fatalf("unexpected image: %v", res.ImageURL)
	}
}

func TestGeckoTerminalTokenPricePoolsFailureIsTolerated(t *testing.T) {
	t.Parallel()

	p := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		if strings.HasSuffix(req.URL.Path, "/pools") {
			return jsonResponse(http.StatusInternalServerError, "boom"), nil
		}
		return jsonResponse(http.StatusOK, gtTokenBody), nil
	})

	res, err := p.TokenPrice(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TopPoolAddress != "" || res.LiquidityUSD != nil {
		t.Fatalf("expected no pool data, got %+v", res)
	}
}

func TestGeckoTerminalTokenPriceErrors(t *testing.T) {
	t.Parallel()

	notFoundProvider := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusNotFound, `{"errors":[{"status":"404"}]}`), nil
	})
	_, err := notFoundProvider.TokenPrice(context.Background(), testRef)
	var noData *domain.NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("expected NoDataError, got %v", err)
	}

	failing := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusTooManyRequests, "slow down"), nil
	})
	_, err = failing.TokenPrice(context.Background(), testRef)
	var pe *domain.ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusTooManyRequests || pe.Message != "slow down" {
		t.Fatalf("expected ProviderError 429, got %v", err)
	}

	noPrice := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":{"attributes":{"symbol":"X","price_usd":null}}}`), nil
	})
	_, err = noPrice.TokenPrice(context.Background(), testRef)
	if !errors.As(err, &noData) {
		t.Fatalf("expected NoDataError for missing price, got %v", err)
	}
}

func TestGeckoTerminalTokenWithOHLCV(t *testing.T) {
	t.Parallel()

	p := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/pools"):
			return jsonResponse(http.StatusOK, gtPoolsBody), nil
		case strings.Contains(req.URL.Path, "/ohlcv/day"):
			if req.URL.Path != "/networks/polygon_pos/pools/0xpoola/ohlcv/day" {
				t.Fatalf("unexpected ohlcv path: %s", req.URL.Path)
			}
			if req.URL.Query().Get("limit") != "7" {
				t.Fatalf("unexpected limit: %s", req.URL.RawQuery)
			}
			return jsonResponse(http.StatusOK, `{"data":{"attributes":{"ohlcv_list":[
				[1700172800, 3, 4, 2, 3.5, 30],
				[1700086400, 2, 3, 1, 2.5, 20],
				[1700000000, 1, 2, 0.5, 1.5, 10]
			]}}}`), nil
		default:
			return jsonResponse(http.StatusOK, gtTokenBody), nil
		}
	})

	res, err := p.TokenWithOHLCV(context.Background(), testRef, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HistoricalError != "" {
		t.Fatalf("unexpected historical error: %s", res.HistoricalError)
	}
	if len(res.HistoricalData) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(res.HistoricalData))
	}
	first := res.HistoricalData[0]
	if first.Timestamp != 1700000000000 || first.Close != 1.5 || first.Volume != 10 {
		t.Fatalf("series not ascending or not converted: %+v", res.HistoricalData)
	}
}

func TestGeckoTerminalTokenWithOHLCVDegrades(t *testing.T) {
	t.Parallel()

	p := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		switch {
		case strings.HasSuffix(req.URL.Path, "/pools"):
			return jsonResponse(http.StatusOK, gtPoolsBody), nil
		case strings.Contains(req.URL.Path, "/ohlcv/"):
			return jsonResponse(http.StatusBadGateway, "upstream down"), nil
		default:
			return jsonResponse(http.StatusOK, gtTokenBody), nil
		}
	})

	res, err := p.TokenWithOHLCV(context.Background(), testRef, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.HistoricalError == "" || res.HistoricalData == nil || len(res.HistoricalData) != 0 {
		t.Fatalf("expected empty series with error, got %+v", res)
	}
	if !res.HasPrice() {
		t.Fatal("price should still be present")
	}
}

func TestGeckoTerminalSearchPools(t *testing.T) {
	t.Parallel()

	p := newTestGeckoTerminal(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/search/pools" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if q := req.URL.Query(); q.Get("query") != "DDD" || q.Get("network") != "polygon_pos" {
			t.Fatalf("unexpected query: %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK, gtPoolsBody), nil
	})

	pools, err := p.SearchPools(context.Background(), "DDD", "polygon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pools) != 2 || pools[0].Network != "polygon_pos" || pools[0].Dex != "uniswap" {
		t.Fatalf("unexpected pools: %+v", pools)
	}
}

func TestGeckoTerminalNetworkMapping(t *testing.T) {
	cases := map[string]string{
		"ethereum":  "eth",
		"Polygon":   "polygon_pos",
		"avalanche": "avax",
		"fantom":    "fantom",
	}
	for in, want := range cases {
		if got := geckoTerminalNetwork(in); got != want {
			t.Fatalf("%s: expected %s, got %s", in, want, got)
		}
	}
	if poolAddress("polygon_pos_0xabc") != "0xabc" || poolAddress("0xabc") != "0xabc" {
		t.Fatal("unexpected pool address parsing")
	}
}
