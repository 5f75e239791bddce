package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/internal/cache"
	"github.com/fd1az/fee-advisor/internal/logger"
)

const (
	tracerName = "github.com/fd1az/fee-advisor/business/quotes/app"
	meterName  = "github.com/fd1az/fee-advisor/business/quotes/app"
)

// DefaultCacheTTL applies to every entry kind.
const DefaultCacheTTL = 30 * time.Second

// DefaultFetchTimeout bounds one shared fan-out. It covers a provider's full
// retry budget with default settings.
const DefaultFetchTimeout = 10 * time.Second

var _ QuoteProvider = (*Aggregator)(nil)

// Config for the Aggregator.
type Config struct {
	// GasChain is the chain gas sources are asked about.
	GasChain string
	// RequestTimeout bounds GetComprehensiveQuote. Zero means no deadline.
	RequestTimeout time.Duration
	// FetchTimeout bounds a fan-out shared by concurrent callers. It runs
	// independently of any single caller's context. Defaults to the larger of
	// RequestTimeout and DefaultFetchTimeout.
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	// Clock drives cache expiry and bundle timestamps. Nil means time.Now.
	Clock cache.Clock
}

// Sources are the configured adapters, in fan-out order.
type Sources struct {
	Gas     []GasSource
	Routes  []RouteSource
	Bridges []BridgeSource
}

type aggregatorMetrics struct {
	lookups   metric.Int64Counter
	fanout    metric.Float64Histogram
	quotes    metric.Int64Histogram
	evictions metric.Int64Counter
}

// Aggregator fans requests out to every source of a kind, caches joined
// results, and assembles QuoteBundles.
type Aggregator struct {
	cfg     Config
	sources Sources
	log     logger.LoggerInterface

	gas     *cache.Cache[cacheKey, []domain.GasQuote]
	routes  *cache.Cache[cacheKey, []domain.RouteQuote]
	bridges *cache.Cache[cacheKey, []domain.BridgeQuote]
	flights singleflight.Group
	// inflight maps a cacheKey to the *progress of its running fan-out.
	inflight sync.Map

	tracer  trace.Tracer
	metrics *aggregatorMetrics
}

// NewAggregator builds an Aggregator over sources.
func NewAggregator(cfg Config, sources Sources, log logger.LoggerInterface) (*Aggregator, error) {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.GasChain == "" {
		cfg.GasChain = "ethereum"
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = max(cfg.RequestTimeout, DefaultFetchTimeout)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}

	opts := []cache.Option{cache.WithClock(cfg.Clock)}

	a := &Aggregator{
		cfg:     cfg,
		sources: sources,
		log:     log,
		gas:     cache.New[cacheKey, []domain.GasQuote](cfg.CacheTTL, opts...),
		routes:  cache.New[cacheKey, []domain.RouteQuote](cfg.CacheTTL, opts...),
		bridges: cache.New[cacheKey, []domain.BridgeQuote](cfg.CacheTTL, opts...),
		tracer:  otel.Tracer(tracerName),
	}
	if err := a.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return a, nil
}

func (a *Aggregator) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	a.metrics = &aggregatorMetrics{}

	a.metrics.lookups, err = meter.Int64Counter(
		"quote_cache_lookups_total",
		metric.WithDescription("Quote cache lookups by kind and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	a.metrics.fanout, err = meter.Float64Histogram(
		"quote_fanout_duration_ms",
		metric.WithDescription("Time to join one fan-out"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	a.metrics.quotes, err = meter.Int64Histogram(
		"quotes_fetched",
		metric.WithDescription("Successful quotes per fan-out"),
		metric.WithUnit("{quote}"),
	)
	if err != nil {
		return err
	}

	a.metrics.evictions, err = meter.Int64Counter(
		"quote_cache_evictions_total",
		metric.WithDescription("Expired cache entries removed"),
		metric.WithUnit("{entry}"),
	)
	return err
}

// GetGasQuotes returns one quote per gas source that answered. Every source
// failing yields an empty slice, not an error.
func (a *Aggregator) GetGasQuotes(ctx context.Context) ([]domain.GasQuote, error) {
	params := GasParams{Chain: a.cfg.GasChain}
	quotes := fanOut(ctx, a, KindGas, a.gas, gasKey(params.Chain), a.sources.Gas,
		func(ctx context.Context, s GasSource) (domain.GasQuote, error) {
			return s.Fetch(ctx, params)
		})
	return domain.CloneGas(quotes), nil
}

// GetRouteQuotes returns one quote per route source that answered.
func (a *Aggregator) GetRouteQuotes(ctx context.Context, req domain.TradeRequest) ([]domain.RouteQuote, error) {
	quotes := fanOut(ctx, a, KindRoute, a.routes, routeKey(req), a.sources.Routes,
		func(ctx context.Context, s RouteSource) (domain.RouteQuote, error) {
			return s.Fetch(ctx, req)
		})
	return domain.CloneRoutes(quotes), nil
}

// GetBridgeQuotes returns one quote per bridge source that answered. Requests
// without a bridge leg never reach the sources.
func (a *Aggregator) GetBridgeQuotes(ctx context.Context, req domain.TradeRequest) ([]domain.BridgeQuote, error) {
	if !req.HasBridgeLeg() {
		return []domain.BridgeQuote{}, nil
	}
	quotes := fanOut(ctx, a, KindBridge, a.bridges, bridgeKey(req), a.sources.Bridges,
		func(ctx context.Context, s BridgeSource) (domain.BridgeQuote, error) {
			return s.Fetch(ctx, req)
		})
	return domain.CloneBridges(quotes), nil
}

// GetComprehensiveQuote runs the three fan-outs concurrently under
// RequestTimeout. Sources still running at the deadline are abandoned and the
// bundle holds whatever arrived in time.
func (a *Aggregator) GetComprehensiveQuote(ctx context.Context, req domain.TradeRequest) (domain.QuoteBundle, error) {
	if err := req.Validate(); err != nil {
		return domain.QuoteBundle{}, err
	}
	if a.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RequestTimeout)
		defer cancel()
	}

	ctx, span := a.tracer.Start(ctx, "aggregator.comprehensive_quote")
	defer span.End()

	var bundle domain.QuoteBundle
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		bundle.GasQuotes, err = a.GetGasQuotes(gctx)
		return err
	})
	g.Go(func() (err error) {
		bundle.RouteQuotes, err = a.GetRouteQuotes(gctx, req)
		return err
	})
	g.Go(func() (err error) {
		bundle.BridgeQuotes, err = a.GetBridgeQuotes(gctx, req)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.QuoteBundle{}, err
	}

	bundle.AssembledAt = a.cfg.Clock()
	span.SetAttributes(
		attribute.Int("gas_quotes", len(bundle.GasQuotes)),
		attribute.Int("route_quotes", len(bundle.RouteQuotes)),
		attribute.Int("bridge_quotes", len(bundle.BridgeQuotes)),
	)
	return bundle, nil
}

// fanOut serves key from c or joins the fan-out for key. Concurrent misses
// share one fan-out that runs detached from every caller, bounded by
// FetchTimeout. A caller whose ctx ends first returns what has arrived so far
// and leaves the fan-out running for the others. Only a fan-out in which every
// source reported is stored.
func fanOut[S, Q any](
	ctx context.Context,
	a *Aggregator,
	kind Kind,
	c *cache.Cache[cacheKey, []Q],
	key cacheKey,
	sources []S,
	fetch func(context.Context, S) (Q, error),
) []Q {
	if v, ok := c.Get(ctx, key); ok {
		a.recordLookup(ctx, kind, "hit")
		return v
	}
	a.recordLookup(ctx, kind, "miss")

	ch := a.flights.DoChan(string(key[:]), func() (any, error) {
		if v, ok := c.Get(ctx, key); ok {
			return v, nil
		}

		p := newProgress[Q](len(sources))
		a.inflight.Store(key, p)
		defer a.inflight.Delete(key)

		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.FetchTimeout)
		defer cancel()
		fctx, span := a.tracer.Start(fctx, "aggregator.fanout",
			trace.WithAttributes(
				attribute.String("kind", string(kind)),
				attribute.Int("sources", len(sources)),
			),
		)
		defer span.End()

		start := time.Now()
		res := gather(fctx, sources, p, fetch)
		a.metrics.fanout.Record(fctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(
				attribute.String("kind", string(kind)),
				attribute.Bool("complete", res.complete),
			))
		a.metrics.quotes.Record(fctx, int64(len(res.quotes)),
			metric.WithAttributes(attribute.String("kind", string(kind))))
		span.SetAttributes(
			attribute.Int("quotes", len(res.quotes)),
			attribute.Int("failed", res.failed),
			attribute.Bool("complete", res.complete),
		)

		if res.complete {
			c.Set(fctx, key, res.quotes, a.cfg.CacheTTL)
		} else {
			a.log.Warn(fctx, "fan-out cut short, result not cached",
				"kind", kind, "quotes", len(res.quotes), "sources", len(sources))
		}
		if len(res.quotes) == 0 && len(sources) > 0 {
			a.log.Warn(fctx, "no quotes from any source", "kind", kind, "failed", res.failed)
		}
		return res.quotes, nil
	})

	select {
	case r := <-ch:
		return r.Val.([]Q)
	case <-ctx.Done():
	}

	select {
	case r := <-ch:
		return r.Val.([]Q)
	default:
	}
	if p, ok := a.inflight.Load(key); ok {
		return p.(*progress[Q]).join().quotes
	}
	return []Q{}
}

func (a *Aggregator) recordLookup(ctx context.Context, kind Kind, result string) {
	a.metrics.lookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", string(kind)),
		attribute.String("result", result),
	))
}

type healthChecker interface {
	Name() string
	HealthCheck(ctx context.Context) bool
}

// CheckHealth checks every source concurrently. A check that panics is
// recorded as unhealthy.
func (a *Aggregator) CheckHealth(ctx context.Context) map[string]bool {
	var checkers []healthChecker
	for _, s := range a.sources.Gas {
		checkers = append(checkers, s)
	}
	for _, s := range a.sources.Routes {
		checkers = append(checkers, s)
	}
	for _, s := range a.sources.Bridges {
		checkers = append(checkers, s)
	}

	type health struct {
		name string
		ok   bool
	}
	ch := make(chan health, len(checkers))
	for _, hc := range checkers {
		go func() {
			ok := false
			defer func() {
				if r := recover(); r != nil {
					a.log.Error(ctx, "health check panicked", "provider", hc.Name(), "panic", r)
				}
				ch <- health{name: hc.Name(), ok: ok}
			}()
			ok = hc.HealthCheck(ctx)
		}()
	}

	report := make(map[string]bool, len(checkers))
	for range checkers {
		p := <-ch
		report[p.name] = p.ok
	}
	return report
}

// ProviderNames lists configured sources by kind.
func (a *Aggregator) ProviderNames() map[Kind][]string {
	names := map[Kind][]string{}
	for _, s := range a.sources.Gas {
		names[KindGas] = append(names[KindGas], s.Name())
	}
	for _, s := range a.sources.Routes {
		names[KindRoute] = append(names[KindRoute], s.Name())
	}
	for _, s := range a.sources.Bridges {
		names[KindBridge] = append(names[KindBridge], s.Name())
	}
	return names
}

// StartEvictionLoop sweeps expired entries every TTL until ctx is done or
// Close is called. Only the first call starts the loop.
func (a *Aggregator) StartEvictionLoop(ctx context.Context) bool {
	onEvict := func(kind Kind) func(int) {
		return func(n int) {
			a.metrics.evictions.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", string(kind))))
			a.log.Debug(ctx, "evicted expired quotes", "kind", kind, "entries", n)
		}
	}
	started := a.gas.StartEviction(ctx, a.cfg.CacheTTL, onEvict(KindGas))
	a.routes.StartEviction(ctx, a.cfg.CacheTTL, onEvict(KindRoute))
	a.bridges.StartEviction(ctx, a.cfg.CacheTTL, onEvict(KindBridge))
	if started {
		a.log.Info(ctx, "quote cache eviction started", "interval", a.cfg.CacheTTL)
	}
	return started
}

// EvictExpired runs one sweep over every cache and returns the number of
// entries removed.
func (a *Aggregator) EvictExpired() int {
	return a.gas.EvictExpired() + a.routes.EvictExpired() + a.bridges.EvictExpired()
}

// Close stops the eviction loop.
func (a *Aggregator) Close() {
	a.gas.Close()
	a.routes.Close()
	a.bridges.Close()
}
