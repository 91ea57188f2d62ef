package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"tokenlens/internal/domain"
)

func newTestDefiLlama(fn roundTripFunc) *DefiLlamaProvider {
	p := NewDefiLlamaProvider(noopTracer(), "http://llama", time.Second)
	p.client = stubClient(fn)
	return p
}

func TestDefiLlamaTokenPrice(t *testing.T) {
	t.Parallel()

	id := "polygon:" + testRef.Address
	p := newTestDefiLlama(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/prices/current/"+id {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if req.URL.Query().Get("searchWidth") != "4h" {
			t.Fatalf("unexpected query: %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK, `{"coins":{"`+id+`":{"decimals":18,"symbol":"DDD","price":0.0125,"timestamp":1700000000,"confidence":0.99}}}`), nil
	})

	res, err := p.TokenPrice(context.Background(), testRef)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Source != domain.SourceDefiLlama || *res.CurrentPrice != 0.0125 || *res.Decimals != 18 || *res.Confidence != 0.99 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Volume24h != nil || res.LiquidityUSD != nil {
		t.Fatalf("DeFiLlama results carry no market data: %+v", res)
	}
}

func TestDefiLlamaTokenPriceMissingCoin(t *testing.T) {
	t.Parallel()

	p := newTestDefiLlama(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"coins":{}}`), nil
	})
	_, err := p.TokenPrice(context.Background(), testRef)
	var noData *domain.NoDataError
	if !errors.As(err, &noData) {
		t.Fatalf("expected NoDataError, got %v", err)
	}
}

func TestDefiLlamaChainMapping(t *testing.T) {
	ref := domain.TokenRef{Address: "0xABC", Network: "avalanche"}
	if got := coinID(ref); got != "avax:0xabc" {
		t.Fatalf("unexpected coin id: %s", got)
	}
}

func TestDefiLlamaHistoricalPrices(t *testing.T) {
	t.Parallel()

	id := "polygon:" + testRef.Address
	p := newTestDefiLlama(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/chart/"+id {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if q := req.URL.Query(); q.Get("span") != "3" || q.Get("period") != "1d" {
			t.Fatalf("unexpected query: %s", req.URL.RawQuery)
		}
		return jsonResponse(http.StatusOK, `{"coins":{"`+id+`":{"symbol":"DDD","prices":[
			{"timestamp":1700172800,"price":3},
			{"timestamp":1700000000,"price":1},
			{"timestamp":1700086400,"price":2}
		]}}}`), nil
	})

	series, err := p.HistoricalPrices(context.Background(), testRef, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 3 {
		t.Fatalf("expected 3 points, got %d", len(series))
	}
	for i, c := range series {
		if c.Close != float64(i+1) || c.Open != c.Close || c.High != c.Close || c.Low != c.Close || c.Volume != 0 {
			t.Fatalf("unexpected candle %d: %+v", i, c)
		}
	}
	if series[0].Timestamp != 1700000000000 {
		t.Fatalf("expected ms timestamps, got %d", series[0].Timestamp)
	}
}

func TestDefiLlamaTokenPrices(t *testing.T) {
	t.Parallel()

	other := domain.TokenRef{Address: "0x7ee2dd0022e3460177b90b8f8fa3b3a76d970ff6", Network: "polygon"}
	p := newTestDefiLlama(func(req *http.Request) (*http.Response, error) {
		want := "/prices/current/polygon:" + testRef.Address + ",polygon:" + other.Address
		if req.URL.Path != want {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"coins":{"polygon:`+other.Address+`":{"symbol":"USDGLO","price":1}}}`), nil
	})

	out, err := p.TokenPrices(context.Background(), []domain.TokenRef{testRef, other})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[other] == nil || out[other].Symbol != "USDGLO" {
		t.Fatalf("unexpected results: %+v", out)
	}
}
