package domain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Source identifies which provider produced a result.
type Source string

const (
	SourceGeckoTerminal Source = "geckoterminal"
	SourceDefiLlama     Source = "defillama"
	SourceAlchemy       Source = "alchemy"
	SourceMetadataOnly  Source = "metadata-only"
	SourceCoinGecko     Source = "coingecko"
)

// DefaultNetwork is assumed when a caller does not name one.
const DefaultNetwork = "polygon"

// TokenRef identifies a token by contract address on a network.
type TokenRef struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

func (r TokenRef) String() string {
	return r.Network + ":" + r.Address
}

// NewTokenRef validates an EVM contract address and lowercases both fields.
func NewTokenRef(address, network string) (TokenRef, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return TokenRef{}, fmt.Errorf("invalid contract address: %q", address)
	}
	network = strings.ToLower(strings.TrimSpace(network))
	if network == "" {
		network = DefaultNetwork
	}
	return TokenRef{Address: strings.ToLower(address), Network: network}, nil
}

// TokenPriceResult is the canonical output of a price lookup. CurrentPrice is nil
// only for metadata-only results.
type TokenPriceResult struct {
	ContractAddress   string   `json:"contract_address"`
	Network           string   `json:"network"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name,omitempty"`
	Decimals          *int     `json:"decimals,omitempty"`
	CurrentPrice      *float64 `json:"current_price"`
	PriceChange24h    *float64 `json:"price_change_24h"`
	PriceChangePct24h *float64 `json:"price_change_percentage_24h"`
	Volume24h         *float64 `json:"volume_24h"`
	LiquidityUSD      *float64 `json:"liquidity_usd"`
	MarketCap         *float64 `json:"market_cap"`
	FDVUSD            *float64 `json:"fdv_usd"`
	ImageURL          *string  `json:"image_url"`
	CoingeckoCoinID   string   `json:"coingecko_coin_id,omitempty"`
	TopPoolAddress    string   `json:"top_pool_address,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	Source            Source   `json:"source"`
	LastUpdated       string   `json:"last_updated"`
	Note              string   `json:"note,omitempty"`
}

// HasPrice reports whether the result carries a usable price.
func (r *TokenPriceResult) HasPrice() bool {
	return r != nil && r.CurrentPrice != nil
}

// PartialMetadata is descriptive token information without any pricing.
type PartialMetadata struct {
	ContractAddress string  `json:"contract_address"`
	Symbol          string  `json:"symbol"`
	Name            string  `json:"name"`
	Decimals        *int    `json:"decimals,omitempty"`
	Logo            *string `json:"logo"`
	LastUpdated     string  `json:"last_updated"`
}

// Merge copies the metadata fields onto r. Empty metadata fields never
// overwrite populated ones.
func (m PartialMetadata) Merge(r *TokenPriceResult) {
	if r == nil {
		return
	}
	if m.Name != "" {
		r.Name = m.Name
	} else if r.Name == "" {
		r.Name = r.Symbol
	}
	if m.Logo != nil {
		r.ImageURL = m.Logo
	}
	if m.Decimals != nil {
		r.Decimals = m.Decimals
	}
	if r.Symbol == "" {
		r.Symbol = m.Symbol
	}
}

// TokenWithHistory is a price result with its historical series spliced on.
type TokenWithHistory struct {
	TokenPriceResult
	HistoricalData  HistoricalSeries `json:"historical_data"`
	HistoricalError string           `json:"historical_error,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// String returns a pointer to v, or nil when v is empty.
func String(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// ValueOrZero dereferences p, treating nil as 0.
func ValueOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
