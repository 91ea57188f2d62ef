package provider

import (
	"context"
	"time"

	"tokenlens/internal/domain"

	"golang.org/x/time/rate"
)

// Budget is an upstream's request allowance. A zero PerMinute means
// unlimited.
type Budget struct {
	PerMinute int
	Burst     int
}

// Free-tier allowances of each upstream.
var (
	GeckoTerminalBudget = Budget{PerMinute: 30, Burst: 5}
	DefiLlamaBudget     = Budget{PerMinute: 300, Burst: 20}
	AlchemyBudget       = Budget{PerMinute: 300, Burst: 20}
	CoinGeckoBudget     = Budget{PerMinute: 8, Burst: 8}
)

// WithPerMinute returns b with its rate replaced by n. Non-positive n keeps
// b unchanged; the burst never exceeds the new rate.
func (b Budget) WithPerMinute(n int) Budget {
	if n <= 0 {
		return b
	}
	b.PerMinute = n
	if b.Burst > n {
		b.Burst = n
	}
	return b
}

func (b Budget) limiter() *rate.Limiter {
	if b.PerMinute <= 0 {
		return nil
	}
	burst := b.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(b.PerMinute)), burst)
}

// Option configures a provider.
type Option func(*session)

// WithBudget replaces a provider's default request budget.
func WithBudget(b Budget) Option {
	return func(s *session) {
		s.limiter = b.limiter()
	}
}

// configure applies the provider's default budget, then opts.
func (s *session) configure(budget Budget, opts []Option) {
	s.limiter = budget.limiter()
	for _, opt := range opts {
		opt(s)
	}
}

// wait blocks until the budget allows another call. A cancelled ctx is
// returned as is; a wait that cannot finish before the deadline becomes a
// ProviderError so the caller moves on to the next source.
func (s *session) wait(ctx context.Context, source domain.Source) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &domain.ProviderError{Source: source, Message: "rate limit: " + err.Error()}
	}
	return nil
}
