// Package di contains dependency injection tokens for the quotes context.
package di

import (
	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Aggregator    = di.NewToken[*app.Aggregator]("quotes.Aggregator")
	QuoteProvider = di.NewToken[app.QuoteProvider]("quotes.QuoteProvider")
)

// Private dependency tokens - internal to quotes module
var (
	FetchDeps = di.NewToken[provider.Deps]("quotes:fetchDeps")
	Sources   = di.NewToken[app.Sources]("quotes:sources")
)

func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

func GetQuoteProvider(c di.ServiceRegistry) app.QuoteProvider {
	return di.GetToken(c, QuoteProvider)
}

func GetFetchDeps(c di.ServiceRegistry) provider.Deps {
	return di.GetToken(c, FetchDeps)
}

func GetSources(c di.ServiceRegistry) app.Sources {
	return di.GetToken(c, Sources)
}
