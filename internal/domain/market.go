package domain

import "strings"

// MarketQuote is the latest CEX-aggregated price for a symbol.
type MarketQuote struct {
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name,omitempty"`
	CurrentPrice      float64  `json:"current_price"`
	MarketCap         *float64 `json:"market_cap"`
	Volume24h         *float64 `json:"volume_24h"`
	PriceChange24h    *float64 `json:"price_change_24h"`
	PriceChangePct24h *float64 `json:"price_change_percentage_24h"`
	MarketCapRank     *int     `json:"market_cap_rank,omitempty"`
	Image             string   `json:"image,omitempty"`
	Source            Source   `json:"source"`
	LastUpdated       string   `json:"last_updated"`
}

// MarketHistory is a symbol's historical series at a given interval.
type MarketHistory struct {
	Symbol   string           `json:"symbol"`
	Interval string           `json:"interval"`
	Data     HistoricalSeries `json:"data"`
}

// CoinGeckoID maps ticker symbols to CoinGecko coin identifiers.
var CoinGeckoID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"BNB":   "binancecoin",
	"XRP":   "ripple",
	"ADA":   "cardano",
	"DOGE":  "dogecoin",
	"SOL":   "solana",
	"DOT":   "polkadot",
	"MATIC": "matic-network",
	"LTC":   "litecoin",
	"AVAX":  "avalanche-2",
	"LINK":  "chainlink",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
}

// CoinGeckoIDToSymbol is the reverse mapping.
var CoinGeckoIDToSymbol map[string]string

func init() {
	CoinGeckoIDToSymbol = make(map[string]string, len(CoinGeckoID))
	for sym, id := range CoinGeckoID {
		CoinGeckoIDToSymbol[id] = sym
	}
}

// CoinIDForSymbol resolves a symbol to a CoinGecko id. Unknown symbols are
// assumed to already be ids.
func CoinIDForSymbol(symbol string) string {
	if id, ok := CoinGeckoID[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return id
	}
	return strings.ToLower(strings.TrimSpace(symbol))
}

// DefaultTrackedSymbols are refreshed by the background poller.
var DefaultTrackedSymbols = []string{"BTC", "ETH", "BNB", "SOL", "ADA"}

// Market history intervals accepted by the symbol endpoints.
const (
	IntervalHourly = "hourly"
	IntervalDaily  = "daily"
)
