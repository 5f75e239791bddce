// Package di contains dependency injection tokens for the advisor context.
package di

import (
	"github.com/fd1az/fee-advisor/business/advisor/app"
	"github.com/fd1az/fee-advisor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Engine      = di.NewToken[*app.Engine]("advisor.Engine")
	PriceOracle = di.NewToken[app.PriceOracle]("advisor.PriceOracle")
	Reporter    = di.NewToken[app.Reporter]("advisor.Reporter")
)

func GetEngine(c di.ServiceRegistry) *app.Engine {
	return di.GetToken(c, Engine)
}

func GetPriceOracle(c di.ServiceRegistry) app.PriceOracle {
	return di.GetToken(c, PriceOracle)
}

func GetReporter(c di.ServiceRegistry) app.Reporter {
	return di.GetToken(c, Reporter)
}
