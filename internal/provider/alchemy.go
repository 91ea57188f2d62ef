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

var alchemyNetworks = map[string]string{
	"ethereum": "eth",
	"polygon":  "polygon",
	"base":     "base",
	"arbitrum": "arb",
	"optimism": "opt",
}

// AlchemyProvider reads ERC-20 metadata over Alchemy's JSON-RPC API. It never
// returns prices.
type AlchemyProvider struct {
	session
	apiKey string
	tracer trace.Tracer
	// endpoint builds the RPC URL for a network subdomain.
	endpoint func(subdomain, apiKey string) string
}

func NewAlchemyProvider(tracer trace.Tracer, apiKey string, timeout time.Duration, opts ...Option) *AlchemyProvider {
	p := &AlchemyProvider{
		session: session{timeout: timeout},
		apiKey:  apiKey,
		tracer:  tracer,
		endpoint: func(subdomain, apiKey string) string {
			return fmt.Sprintf("https://%s-mainnet.g.alchemy.com/v2/%s", subdomain, apiKey)
		},
	}
	p.configure(AlchemyBudget, opts)
	return p
}

type rpcRequest struct {
	ID      int    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type tokenMetadataResponse struct {
	Result *struct {
		Symbol   string  `json:"symbol"`
		Name     string  `json:"name"`
		Decimals *int    `json:"decimals"`
		Logo     *string `json:"logo"`
	} `json:"result"`
	Error *rpcError `json:"error"`
}

// TokenMetadata returns symbol, name, decimals and logo for a contract.
func (p *AlchemyProvider) TokenMetadata(ctx context.Context, ref domain.TokenRef) (*domain.PartialMetadata, error) {
	ctx, span := p.tracer.Start(ctx, "alchemy.token-metadata")
	defer span.End()
	span.SetAttributes(attribute.String("token", ref.String()))

	if p.apiKey == "" {
		return nil, &domain.ProviderError{Source: domain.SourceAlchemy, Message: "ALCHEMY_API_KEY not configured"}
	}
	subdomain, ok := alchemyNetworks[strings.ToLower(ref.Network)]
	if !ok {
		return nil, &domain.ProviderError{Source: domain.SourceAlchemy, Message: "unsupported network: " + ref.Network}
	}

	payload := rpcRequest{ID: 1, JSONRPC: "2.0", Method: "alchemy_getTokenMetadata", Params: []any{ref.Address}}
	body, err := p.doJSON(ctx, domain.SourceAlchemy, http.MethodPost, p.endpoint(subdomain, p.apiKey), payload)
	if err != nil {
		return nil, err
	}

	var raw tokenMetadataResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, decodeError(domain.SourceAlchemy, "token metadata", err)
	}
	if raw.Error != nil {
		return nil, &domain.ProviderError{
			Source:  domain.SourceAlchemy,
			Message: fmt.Sprintf("rpc error %d: %s", raw.Error.Code, raw.Error.Message),
		}
	}
	if raw.Result == nil {
		return nil, &domain.NoDataError{Source: domain.SourceAlchemy, Token: ref.String()}
	}

	return &domain.PartialMetadata{
		ContractAddress: ref.Address,
		Symbol:          raw.Result.Symbol,
		Name:            raw.Result.Name,
		Decimals:        raw.Result.Decimals,
		Logo:            raw.Result.Logo,
		LastUpdated:     time.Now().UTC().Format(time.RFC3339),
	}, nil
}
