// Package quotes implements the quote aggregation bounded context.
package quotes

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	quotesDI "github.com/fd1az/fee-advisor/business/quotes/di"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/config"
	"github.com/fd1az/fee-advisor/internal/di"
	"github.com/fd1az/fee-advisor/internal/events"
	"github.com/fd1az/fee-advisor/internal/logger"
	"github.com/fd1az/fee-advisor/internal/monolith"
	"github.com/fd1az/fee-advisor/internal/ratelimit"
)

// Module implements the quotes bounded context.
type Module struct{}

// RegisterServices registers all quotes services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, quotesDI.FetchDeps, func(sr di.ServiceRegistry) provider.Deps {
		cfg := sr.Get("config").(*config.Config)
		return provider.Deps{
			Log:      sr.Get("logger").(logger.LoggerInterface),
			Events:   sr.Get("events").(*events.Bus),
			Limiters: ratelimit.NewRegistry(cfg.Aggregator.RateLimitRPM),
		}
	})

	di.RegisterToken(c, quotesDI.Sources, func(sr di.ServiceRegistry) app.Sources {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		var eth *ethclient.Client
		if sr.Has("ethClient") {
			eth = sr.Get("ethClient").(*ethclient.Client)
		}

		sources, err := buildSources(cfg, quotesDI.GetFetchDeps(sr), eth, log)
		if err != nil {
			panic("failed to build quote sources: " + err.Error())
		}
		return sources
	})

	// Register Aggregator (public - exposed to other modules)
	di.RegisterToken(c, quotesDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		agg, err := app.NewAggregator(app.Config{
			GasChain:       provider.ChainName(cfg.Ethereum.ChainID),
			RequestTimeout: cfg.Aggregator.RequestTimeout,
			CacheTTL:       cfg.Aggregator.CacheTTL,
		}, quotesDI.GetSources(sr), log)
		if err != nil {
			panic("failed to create aggregator: " + err.Error())
		}
		return agg
	})

	di.RegisterToken(c, quotesDI.QuoteProvider, func(sr di.ServiceRegistry) app.QuoteProvider {
		return quotesDI.GetAggregator(sr)
	})

	return nil
}

// Startup starts the cache eviction loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	agg := quotesDI.GetAggregator(mono.Services())

	names := agg.ProviderNames()
	if len(names[app.KindGas]) == 0 || len(names[app.KindRoute]) == 0 {
		log.Warn(ctx, "no gas or route providers configured, recommendations will fail",
			"gas", names[app.KindGas], "route", names[app.KindRoute])
	}

	agg.StartEvictionLoop(ctx)
	log.Info(ctx, "quotes module started",
		"gas", names[app.KindGas], "route", names[app.KindRoute], "bridge", names[app.KindBridge])
	return nil
}
