package app

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/advisor/domain"
	quotesDomain "github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/internal/apperror"
)

var hundred = decimal.NewFromInt(100)

// executionCost is rate × gasUnits / factor × nativeToUSD + feeUSD.
func executionCost(rate decimal.Decimal, gasUnits uint64, feeUSD decimal.Decimal, price domain.PriceInput) decimal.Decimal {
	return rate.
		Mul(decimal.NewFromInt(int64(gasUnits))).
		Div(price.RateToNativeUnitFactor).
		Mul(price.NativeToUSD).
		Add(feeUSD)
}

// cheapestForecast prices route at every forecast step and returns the lowest
// cost with its zero-based step index. Ties keep the earlier step.
func cheapestForecast(f quotesDomain.GasForecast, route quotesDomain.RouteQuote, price domain.PriceInput) (decimal.Decimal, int) {
	var minCost decimal.Decimal
	minIdx := 0
	for i, rate := range f.Next5BlockRate {
		c := executionCost(rate, route.GasUnits, route.TotalFeeUSD, price)
		if i == 0 || c.LessThan(minCost) {
			minCost, minIdx = c, i
		}
	}
	return minCost, minIdx
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

// Decide turns a bundle into a recommendation. It is deterministic: the same
// bundle, price and policy always give the same action and figures. The
// caller stamps AnalysisID and GeneratedAt.
func Decide(bundle quotesDomain.QuoteBundle, price domain.PriceInput, policy domain.Policy) (*domain.Recommendation, error) {
	if len(bundle.GasQuotes) == 0 || len(bundle.RouteQuotes) == 0 {
		return nil, apperror.New(apperror.CodeInsufficientData)
	}

	gas, _ := SelectBestGas(bundle.GasQuotes)
	route, ok, _ := SelectBestRoute(bundle.RouteQuotes)
	if !ok {
		return nil, apperror.New(apperror.CodeAnalysisFailure,
			apperror.WithContext("no route quote has a numeric amountOut"),
			apperror.WithCause(apperror.New(apperror.CodeInsufficientData)))
	}

	currentCost := executionCost(gas.StandardRate, route.GasUnits, route.TotalFeeUSD, price)
	current := domain.RouteSummary{
		Provider:      route.Provider,
		CostUSD:       currentCost,
		GasUnits:      route.GasUnits,
		ExecutionMode: domain.ModeImmediate,
	}

	bridge, hasBridge := SelectBestBridge(bundle.BridgeQuotes)
	if hasBridge {
		bridge.EstimatedSavingsUSD = nonNegative(currentCost.Sub(bridge.TotalCostUSD))
	}
	bridgeSavings := bridge.EstimatedSavingsUSD

	waitCost, waitIdx := cheapestForecast(gas.Forecast, route, price)
	waitSavings := nonNegative(currentCost.Sub(waitCost))
	waitSteps := waitIdx + 1
	waitConfidence := gas.Forecast.Confidence

	rec := &domain.Recommendation{
		CurrentRoute: current,
		SavingsUSD:   decimal.Zero,
	}

	switch {
	case hasBridge && bridgeSavings.GreaterThan(policy.BridgeMinSavingsUSD) && bridgeSavings.GreaterThan(waitSavings):
		rec.Action = domain.ActionUseBridge
		rec.SavingsUSD = bridgeSavings
		rec.Confidence = policy.BridgeConfidence
		rec.OptimalRoute = domain.RouteSummary{
			Provider:      bridge.Provider,
			CostUSD:       bridge.TotalCostUSD,
			ExecutionMode: domain.ModeBridge,
			Delay:         bridge.EstimatedTime,
		}

	case waitSavings.GreaterThan(policy.WaitMinSavingsUSD) && waitConfidence > policy.WaitMinConfidence:
		delay := time.Duration(waitSteps) * policy.BlockInterval
		rec.Action = domain.ActionWait
		rec.SavingsUSD = waitSavings
		rec.Confidence = waitConfidence
		rec.WaitTimeSeconds = int(delay / time.Second)
		rec.OptimalRoute = domain.RouteSummary{
			Provider:      route.Provider,
			CostUSD:       waitCost,
			GasUnits:      route.GasUnits,
			ExecutionMode: domain.ModeDelayed,
			Delay:         delay,
		}

	default:
		rec.Action = domain.ActionExecuteNow
		rec.Confidence = 1
		rec.OptimalRoute = current
	}

	rec.SavingsPercent = percentOf(rec.SavingsUSD, currentCost)
	return rec, nil
}
