// Package advisor implements the fee decision bounded context.
package advisor

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/advisor/app"
	advisorDI "github.com/fd1az/fee-advisor/business/advisor/di"
	"github.com/fd1az/fee-advisor/business/advisor/domain"
	"github.com/fd1az/fee-advisor/business/advisor/infra"
	quotesDI "github.com/fd1az/fee-advisor/business/quotes/di"
	"github.com/fd1az/fee-advisor/internal/config"
	"github.com/fd1az/fee-advisor/internal/di"
	"github.com/fd1az/fee-advisor/internal/events"
	"github.com/fd1az/fee-advisor/internal/logger"
	"github.com/fd1az/fee-advisor/internal/monolith"
)

// Module implements the advisor bounded context.
type Module struct{}

// PolicyFromConfig maps configured thresholds onto a Policy.
func PolicyFromConfig(c config.PolicyConfig) domain.Policy {
	return domain.Policy{
		BridgeMinSavingsUSD: decimal.NewFromFloat(c.BridgeMinSavingsUSD),
		WaitMinSavingsUSD:   decimal.NewFromFloat(c.WaitMinSavingsUSD),
		WaitMinConfidence:   c.WaitMinConfidence,
		BlockInterval:       c.BlockInterval,
		BridgeConfidence:    c.BridgeConfidence,
	}
}

// RegisterServices registers all advisor services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, advisorDI.PriceOracle, func(sr di.ServiceRegistry) app.PriceOracle {
		cfg := sr.Get("config").(*config.Config)

		oracle, err := app.NewStaticPriceOracle(domain.PriceInput{
			NativeToUSD:            cfg.Price.NativeUSDDecimal(),
			RateToNativeUnitFactor: cfg.Price.RateFactorDecimal(),
		})
		if err != nil {
			panic("failed to create price oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, advisorDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		return infra.NewConsoleReporter(nil)
	})

	// Register Engine (public - consumed by the CLI)
	di.RegisterToken(c, advisorDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		bus := sr.Get("events").(*events.Bus)

		engine, err := app.NewEngine(quotesDI.GetQuoteProvider(sr), PolicyFromConfig(cfg.Policy), bus, log)
		if err != nil {
			panic("failed to create engine: " + err.Error())
		}
		return engine
	})

	return nil
}

// Startup resolves the engine so wiring errors surface at boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	engine := advisorDI.GetEngine(mono.Services())
	p := engine.Policy()
	mono.Logger().Info(ctx, "advisor module started",
		"bridge_min_savings_usd", p.BridgeMinSavingsUSD.String(),
		"wait_min_savings_usd", p.WaitMinSavingsUSD.String(),
		"wait_min_confidence", p.WaitMinConfidence,
	)
	return nil
}
