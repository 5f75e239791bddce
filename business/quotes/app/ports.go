// Package app contains the aggregation service and the provider ports.
package app

import (
	"context"

	"github.com/fd1az/fee-advisor/business/quotes/domain"
)

// Kind is the capability a source serves.
type Kind string

const (
	KindGas    Kind = "gas"
	KindRoute  Kind = "route"
	KindBridge Kind = "bridge"
)

// Source fetches one kind of quote from one upstream.
type Source[P, Q any] interface {
	Name() string
	Kind() Kind
	Fetch(ctx context.Context, params P) (Q, error)
	// HealthCheck never returns an error; any failure is false.
	HealthCheck(ctx context.Context) bool
}

// GasParams scopes a gas fetch.
type GasParams struct {
	Chain string
}

type (
	GasSource    = Source[GasParams, domain.GasQuote]
	RouteSource  = Source[domain.TradeRequest, domain.RouteQuote]
	BridgeSource = Source[domain.TradeRequest, domain.BridgeQuote]
)

// QuoteProvider is the port the advisor consumes.
type QuoteProvider interface {
	GetComprehensiveQuote(ctx context.Context, req domain.TradeRequest) (domain.QuoteBundle, error)
}
