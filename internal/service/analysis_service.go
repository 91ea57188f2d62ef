package service

import (
	"context"

	"tokenlens/internal/domain"
	"tokenlens/internal/ta"
)

// HistoryResolver resolves a token's price with its historical series.
type HistoryResolver interface {
	ResolveWithHistory(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenWithHistory, error)
}

// AnalysisService computes indicators over on-chain token history.
type AnalysisService struct {
	resolver HistoryResolver
}

func NewAnalysisService(resolver HistoryResolver) *AnalysisService {
	return &AnalysisService{resolver: resolver}
}

// TokenIndicators resolves days of history for ref and derives indicators
// from it. An empty series yields neutral indicators, not an error.
func (s *AnalysisService) TokenIndicators(ctx context.Context, ref domain.TokenRef, days int) (*domain.TokenAnalysis, error) {
	token, err := s.resolver.ResolveWithHistory(ctx, ref, days)
	if err != nil {
		return nil, err
	}
	return &domain.TokenAnalysis{
		Token:      *token,
		Indicators: ta.Compute(token.HistoricalData),
	}, nil
}
