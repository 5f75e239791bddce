// Package app contains the decision engine for the advisor context.
package app

import (
	"github.com/shopspring/decimal"

	quotesDomain "github.com/fd1az/fee-advisor/business/quotes/domain"
)

// SelectBestGas returns the quote with the lowest standard rate. Ties keep the
// first one. ok is false for an empty slice.
func SelectBestGas(quotes []quotesDomain.GasQuote) (best quotesDomain.GasQuote, ok bool) {
	for i, q := range quotes {
		if i == 0 || q.StandardRate.LessThan(best.StandardRate) {
			best = q
		}
	}
	return best, len(quotes) > 0
}

// SelectBestRoute returns the quote with the highest amountOut. Quotes whose
// amountOut does not parse as a non-negative number are skipped; skipped
// reports how many. Ties keep the first one.
func SelectBestRoute(quotes []quotesDomain.RouteQuote) (best quotesDomain.RouteQuote, ok bool, skipped int) {
	var bestOut decimal.Decimal
	for _, q := range quotes {
		out, err := decimal.NewFromString(q.AmountOut)
		if err != nil || out.IsNegative() {
			skipped++
			continue
		}
		if !ok || out.GreaterThan(bestOut) {
			best, bestOut, ok = q, out, true
		}
	}
	return best, ok, skipped
}

// SelectBestBridge returns the quote with the lowest total cost. Ties keep the
// first one.
func SelectBestBridge(quotes []quotesDomain.BridgeQuote) (best quotesDomain.BridgeQuote, ok bool) {
	for i, q := range quotes {
		if i == 0 || q.TotalCostUSD.LessThan(best.TotalCostUSD) {
			best = q
		}
	}
	return best, len(quotes) > 0
}
