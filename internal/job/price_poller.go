package job

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tokenlens/internal/domain"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultHealthInterval = 5 * time.Minute

// MarketRefresher keeps tracked CEX quotes warm in the cache.
type MarketRefresher interface {
	RefreshPrices(ctx context.Context) (int, error)
}

// SourceProber checks every upstream price source.
type SourceProber interface {
	HealthCheck(ctx context.Context) *domain.HealthReport
}

// PricePoller runs background loops that refresh cached quotes and probe
// source health.
type PricePoller struct {
	tracer         trace.Tracer
	logger         *zap.Logger
	market         MarketRefresher
	prober         SourceProber
	pollInterval   time.Duration
	healthInterval time.Duration

	refreshes atomic.Int64
	failures  atomic.Int64

	mu         sync.RWMutex
	lastHealth *domain.HealthReport
}

func NewPricePoller(tracer trace.Tracer, logger *zap.Logger, market MarketRefresher, prober SourceProber, pollIntervalSecs int) *PricePoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PricePoller{
		tracer:         tracer,
		logger:         logger,
		market:         market,
		prober:         prober,
		pollInterval:   time.Duration(pollIntervalSecs) * time.Second,
		healthInterval: defaultHealthInterval,
	}
}

// Start launches the polling loops. Blocks until ctx is cancelled.
func (p *PricePoller) Start(ctx context.Context) {
	p.logger.Info("price poller starting", zap.Duration("interval", p.pollInterval))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.pollLoop(ctx, "market-prices", p.pollInterval, p.refreshMarket)
	}()

	if p.prober != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.pollLoop(ctx, "source-health", p.healthInterval, p.probeSources)
		}()
	}

	<-ctx.Done()
	wg.Wait()
	p.logger.Info("price poller stopped",
		zap.Int64("refreshes", p.refreshes.Load()),
		zap.Int64("failures", p.failures.Load()),
	)
}

// Stats reports how many refresh runs succeeded and failed.
func (p *PricePoller) Stats() (refreshes, failures int64) {
	return p.refreshes.Load(), p.failures.Load()
}

// LastHealth returns the most recent source health report, or nil.
func (p *PricePoller) LastHealth() *domain.HealthReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastHealth
}

func (p *PricePoller) pollLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		p.logger.Warn("poller initial run failed", zap.String("poller", name), zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil {
				p.logger.Warn("poller run failed", zap.String("poller", name), zap.Error(err))
			}
		}
	}
}

func (p *PricePoller) refreshMarket(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "poller.refresh-market")
	defer span.End()

	n, err := p.market.RefreshPrices(ctx)
	if err != nil {
		p.failures.Add(1)
		return err
	}
	p.refreshes.Add(1)
	p.logger.Debug("market prices refreshed", zap.Int("assets", n))
	return nil
}

func (p *PricePoller) probeSources(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "poller.probe-sources")
	defer span.End()

	report := p.prober.HealthCheck(ctx)
	p.mu.Lock()
	p.lastHealth = report
	p.mu.Unlock()

	if report != nil && !report.Overall {
		for name, svc := range report.Services {
			if svc.Status != domain.StatusHealthy {
				p.logger.Warn("price source unhealthy", zap.String("source", name), zap.String("error", svc.Error))
			}
		}
	}
	return nil
}
