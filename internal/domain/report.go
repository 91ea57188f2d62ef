package domain

// ConsistencyThresholdPct is the maximum deviation from the mean for prices
// across sources to count as consistent.
const ConsistencyThresholdPct = 5.0

// SourceOutcome is one source's answer in a comparison.
type SourceOutcome struct {
	Success bool     `json:"success"`
	Price   *float64 `json:"price"`
	Data    any      `json:"data,omitempty"`
	Note    string   `json:"note,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type SourcePrice struct {
	Source string  `json:"source"`
	Price  float64 `json:"price"`
}

// PriceAnalysis is present only when two or more sources priced the token.
type PriceAnalysis struct {
	Prices              []SourcePrice `json:"prices"`
	Average             float64       `json:"average"`
	MaxDeviationPercent float64       `json:"max_deviation_percent"`
	Consistent          bool          `json:"consistent"`
}

// SourceComparison is a diagnostic view of every source's answer for one token.
type SourceComparison struct {
	ContractAddress string                   `json:"contract_address"`
	Network         string                   `json:"network"`
	Timestamp       string                   `json:"timestamp"`
	Sources         map[string]SourceOutcome `json:"sources"`
	PriceAnalysis   *PriceAnalysis           `json:"price_analysis,omitempty"`
}

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

type ServiceHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type HealthReport struct {
	Timestamp string                   `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services"`
	Overall   bool                     `json:"overall"`
}

// TokenOutcome wraps a portfolio token's resolution, successful or not.
type TokenOutcome struct {
	Success  bool              `json:"success"`
	Symbol   string            `json:"symbol"`
	Pair     string            `json:"pair,omitempty"`
	Contract string            `json:"contract,omitempty"`
	Data     *TokenPriceResult `json:"data,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type QuoteTokenGroups struct {
	Successful []TokenOutcome `json:"successful"`
	Failed     []TokenOutcome `json:"failed"`
	Total      int            `json:"total"`
}

type LPPoolListing struct {
	Count int      `json:"count"`
	Pools []LPPool `json:"pools"`
	Note  string   `json:"note"`
}

type PortfolioStatistics struct {
	TotalTokens       int     `json:"total_tokens"`
	Successful        int     `json:"successful"`
	Failed            int     `json:"failed"`
	SuccessRate       string  `json:"success_rate"`
	TotalLiquidityUSD float64 `json:"total_liquidity_usd"`
	TotalVolume24hUSD float64 `json:"total_volume_24h_usd"`
}

type PortfolioSummary struct {
	PortfolioName string              `json:"portfolio_name"`
	Network       string              `json:"network"`
	Timestamp     string              `json:"timestamp"`
	MainToken     TokenOutcome        `json:"main_token"`
	QuoteTokens   QuoteTokenGroups    `json:"quote_tokens"`
	LPPools       LPPoolListing       `json:"lp_pools"`
	Statistics    PortfolioStatistics `json:"statistics"`
}

// PairRanking is one entry of a top-pairs list.
type PairRanking struct {
	Pair         string   `json:"pair"`
	Symbol       string   `json:"symbol"`
	LiquidityUSD float64  `json:"liquidity_usd"`
	Volume24h    float64  `json:"volume_24h"`
	Price        *float64 `json:"price"`
	Source       Source   `json:"source"`
}

type PriceLine struct {
	Symbol         string   `json:"symbol"`
	Pair           string   `json:"pair,omitempty"`
	Price          *float64 `json:"price"`
	PriceChange24h *float64 `json:"price_change_24h"`
	Volume24h      *float64 `json:"volume_24h,omitempty"`
	Source         Source   `json:"source,omitempty"`
}

// PortfolioPrices is the light-weight dashboard snapshot.
type PortfolioPrices struct {
	Timestamp string      `json:"timestamp"`
	MainToken PriceLine   `json:"main_token"`
	Pairs     []PriceLine `json:"pairs"`
}

type PortfolioHealth struct {
	Status              string `json:"status"`
	Timestamp           string `json:"timestamp"`
	MainTokenAccessible bool   `json:"main_token_accessible"`
	Error               string `json:"error,omitempty"`
}

type HistoryOutcome struct {
	Success bool              `json:"success"`
	Data    *TokenWithHistory `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// TokenAnalysis pairs a token's price and history with its indicators.
type TokenAnalysis struct {
	Token      TokenWithHistory `json:"token"`
	Indicators IndicatorSet     `json:"indicators"`
}

// MarketAnalysis is the indicator view for a CEX symbol.
type MarketAnalysis struct {
	Symbol     string       `json:"symbol"`
	Interval   string       `json:"interval"`
	Indicators IndicatorSet `json:"indicators"`
}
