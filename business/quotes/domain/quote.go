package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ForecastHorizon is the number of future blocks in a gas forecast.
const ForecastHorizon = 5

// GasForecast projects the standard rate over the next blocks.
type GasForecast struct {
	NextBlockRate  decimal.Decimal
	Next5BlockRate [ForecastHorizon]decimal.Decimal
	// Confidence is in [0,1].
	Confidence float64
}

// FlatForecast repeats rate with the given confidence. Used by sources with
// no upstream projection.
func FlatForecast(rate decimal.Decimal, confidence float64) GasForecast {
	f := GasForecast{NextBlockRate: rate, Confidence: confidence}
	for i := range f.Next5BlockRate {
		f.Next5BlockRate[i] = rate
	}
	return f
}

// GasQuote is one provider's view of network fee rates, in gwei.
type GasQuote struct {
	Provider string
	Chain    string
	// CurrentRate is what a transaction pays right now, base fee plus tip.
	CurrentRate  decimal.Decimal
	FastRate     decimal.Decimal
	StandardRate decimal.Decimal
	EconomyRate  decimal.Decimal
	BaseFee      decimal.Decimal
	PriorityFee  decimal.Decimal
	Forecast     GasForecast
	Timestamp    time.Time
}

// RateFor returns the rate for a priority tier.
func (q GasQuote) RateFor(tier PriorityTier) decimal.Decimal {
	switch tier {
	case PriorityFast:
		return q.FastRate
	case PriorityEconomy:
		return q.EconomyRate
	default:
		return q.StandardRate
	}
}

// FeeAmount is a fee in a token's smallest unit.
type FeeAmount struct {
	Kind   string
	Token  string
	Amount decimal.Decimal
}

// RouteQuote is one same-chain swap route.
type RouteQuote struct {
	Provider    string
	FromTokenID string
	ToTokenID   string
	AmountIn    string
	// AmountOut is the provider's integer string, kept verbatim so an
	// unparseable value can be excluded at selection time. It is net of any
	// fee listed in PlatformFees.
	AmountOut string
	// PriceImpactPct is zero when the upstream does not report it.
	PriceImpactPct decimal.Decimal
	GasUnits       uint64
	Protocols      []string
	// PlatformFees are the fees already taken out of AmountOut.
	PlatformFees []FeeAmount
	// PlatformFeeUSD covers fees charged on top of AmountOut.
	PlatformFeeUSD decimal.Decimal
	// NetworkFeeEstimate is the upstream's gas cost guess in the native
	// token's smallest unit. The engine prices gas from gas quotes instead.
	NetworkFeeEstimate decimal.Decimal
	// TotalFeeUSD is every non-gas fee not reflected in AmountOut.
	TotalFeeUSD decimal.Decimal
	Timestamp   time.Time
}

// BridgeQuote is one cross-chain transfer option.
type BridgeQuote struct {
	Provider  string
	FromChain string
	ToChain   string
	// BridgeCostUSD is the bridge's own fees.
	BridgeCostUSD decimal.Decimal
	// TotalCostUSD adds source and destination gas to BridgeCostUSD.
	TotalCostUSD  decimal.Decimal
	EstimatedTime time.Duration
	// EstimatedSavingsUSD is set by a consumer that prices the bridge against
	// a same-chain execution. Sources leave it zero.
	EstimatedSavingsUSD decimal.Decimal
	Timestamp           time.Time
}

// QuoteBundle is everything gathered for one request.
type QuoteBundle struct {
	GasQuotes    []GasQuote
	RouteQuotes  []RouteQuote
	BridgeQuotes []BridgeQuote
	AssembledAt  time.Time
}

// Clone returns a copy that shares no slices with b.
func (b QuoteBundle) Clone() QuoteBundle {
	return QuoteBundle{
		GasQuotes:    CloneGas(b.GasQuotes),
		RouteQuotes:  CloneRoutes(b.RouteQuotes),
		BridgeQuotes: CloneBridges(b.BridgeQuotes),
		AssembledAt:  b.AssembledAt,
	}
}

// CloneGas copies a gas quote slice.
func CloneGas(in []GasQuote) []GasQuote {
	return append([]GasQuote{}, in...)
}

// CloneRoutes copies a route quote slice including its inner slices.
func CloneRoutes(in []RouteQuote) []RouteQuote {
	out := make([]RouteQuote, len(in))
	for i, q := range in {
		q.Protocols = append([]string(nil), q.Protocols...)
		q.PlatformFees = append([]FeeAmount(nil), q.PlatformFees...)
		out[i] = q
	}
	return out
}

// CloneBridges copies a bridge quote slice.
func CloneBridges(in []BridgeQuote) []BridgeQuote {
	return append([]BridgeQuote{}, in...)
}
