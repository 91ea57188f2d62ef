package domain

import (
	"slices"
	"strings"
)

// PortfolioToken is a tracked token. Pair is empty for the main token.
type PortfolioToken struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name,omitempty"`
	Pair     string `json:"pair,omitempty"`
	Contract string `json:"contract"`
	Network  string `json:"network"`
}

// Ref returns the token's address/network reference.
func (t PortfolioToken) Ref() TokenRef {
	return TokenRef{Address: strings.ToLower(t.Contract), Network: t.Network}
}

// LPPool is a liquidity pool tracked alongside the tokens. Pools are listed,
// never priced through the token path.
type LPPool struct {
	Pair        string `json:"pair"`
	PoolAddress string `json:"pool_address"`
	Network     string `json:"network"`
}

// PortfolioConfig is the static set of tokens a portfolio tracks.
type PortfolioConfig struct {
	Name        string
	Network     string
	MainToken   PortfolioToken
	QuoteTokens []PortfolioToken
	LPPools     []LPPool
}

// Clone returns a copy that shares no slices with c.
func (c PortfolioConfig) Clone() PortfolioConfig {
	c.QuoteTokens = slices.Clone(c.QuoteTokens)
	c.LPPools = slices.Clone(c.LPPools)
	return c
}

// AllTokens returns the main token followed by every quote token.
func (c PortfolioConfig) AllTokens() []PortfolioToken {
	out := make([]PortfolioToken, 0, len(c.QuoteTokens)+1)
	out = append(out, c.MainToken)
	return append(out, c.QuoteTokens...)
}

// TokenByAddress finds a tracked token by contract address, case-insensitively.
func (c PortfolioConfig) TokenByAddress(address string) (PortfolioToken, bool) {
	for _, t := range c.AllTokens() {
		if strings.EqualFold(t.Contract, address) {
			return t, true
		}
	}
	return PortfolioToken{}, false
}

// PoolByAddress finds a tracked LP pool by address, case-insensitively.
func (c PortfolioConfig) PoolByAddress(address string) (LPPool, bool) {
	for _, p := range c.LPPools {
		if strings.EqualFold(p.PoolAddress, address) {
			return p, true
		}
	}
	return LPPool{}, false
}

// TotalPairs counts quote pairs plus LP pools.
func (c PortfolioConfig) TotalPairs() int {
	return len(c.QuoteTokens) + len(c.LPPools)
}

// DefaultPortfolio is the DDD portfolio on Polygon.
func DefaultPortfolio() PortfolioConfig {
	quote := func(symbol, pair, contract string) PortfolioToken {
		return PortfolioToken{Symbol: symbol, Pair: pair, Contract: contract, Network: "polygon"}
	}
	return PortfolioConfig{
		Name:    "DDD Portfolio",
		Network: "polygon",
		MainToken: PortfolioToken{
			Symbol:   "DDD",
			Name:     "DDD Token",
			Contract: "0x4bf82cf0d6b2afc87367052b793097153c859d38",
			Network:  "polygon",
		},
		QuoteTokens: []PortfolioToken{
			quote("USDGLO", "DDD/USDGLO", "0x7ee2dd0022e3460177b90b8f8fa3b3a76d970ff6"),
			quote("axiREGEN", "DDD/axiREGEN", "0x520a3b3faca7ddc8dc8cd3380c8475b67f3c7b8d"),
			quote("CCC", "DDD/CCC", "0x73e6a1630486d0874ec56339327993a3e4684691"),
			quote("PR24", "DDD/PR24", "0xa249cc5719da5457b212d9c5f4b1e95c7f597441"),
			quote("NCT", "DDD/NCT", "0xfc983c854683b562c6e0f858a15b32698b32ba45"),
			quote("JCGWR", "DDD/JCGWR", "0x7aadf47b49202b904b0f62e533442b09fcaa2614"),
			quote("AU24T", "DDD/AU24T", "0xdaa015423b5965f1b198119cd8940e0e551cd74c"),
			quote("JLT-F24", "DDD/JLT-F24", "0x4faf57a632bd809974358a5fff9ae4aec5a51b7d"),
			// second JLT-F24 deployment
			quote("JLT-F24-2", "DDD/JLT-F24", "0xf2bda2e42fbd1ec6ee61b9e11aeb690eb88956c1"),
		},
		LPPools: []LPPool{
			{Pair: "DDD/JLT-B23", PoolAddress: "0xac6c98888209c2cccb500e0b1afb70fb2474611b1520d4f55e1968518179f40c", Network: "polygon"},
			{Pair: "DDD/TB01", PoolAddress: "0x54c0a64be7d50e9a8e6b7de50055982934b3d09bfaedfff6cc1c5190d0ba83d7", Network: "polygon"},
			{Pair: "DDD/MC02", PoolAddress: "0xebb0ef84907875a6004d89268df1534c6a8dff2441e653c90f1c07f51adcfb8a", Network: "polygon"},
		},
	}
}
