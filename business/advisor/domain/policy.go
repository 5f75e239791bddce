package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/internal/apperror"
)

// Policy holds the decision thresholds.
type Policy struct {
	// BridgeMinSavingsUSD must be strictly exceeded to recommend a bridge.
	BridgeMinSavingsUSD decimal.Decimal
	// WaitMinSavingsUSD must be strictly exceeded to recommend waiting.
	WaitMinSavingsUSD decimal.Decimal
	// WaitMinConfidence must be strictly exceeded by the forecast confidence.
	WaitMinConfidence float64
	// BlockInterval is the delay represented by one forecast step.
	BlockInterval time.Duration
	// BridgeConfidence is reported for bridge recommendations.
	BridgeConfidence float64
}

// DefaultPolicy returns $5 / $2 / 0.7 / 12s / 0.85.
func DefaultPolicy() Policy {
	return Policy{
		BridgeMinSavingsUSD: decimal.NewFromInt(5),
		WaitMinSavingsUSD:   decimal.NewFromInt(2),
		WaitMinConfidence:   0.7,
		BlockInterval:       12 * time.Second,
		BridgeConfidence:    0.85,
	}
}

// PriceInput converts gas rates into USD. Values come from a price oracle
// outside this service.
type PriceInput struct {
	NativeToUSD decimal.Decimal
	// RateToNativeUnitFactor divides rate × gas units into native units
	// (1e9 for gwei rates).
	RateToNativeUnitFactor decimal.Decimal
}

// Validate rejects non-positive prices and factors.
func (p PriceInput) Validate() error {
	if !p.NativeToUSD.IsPositive() {
		return apperror.Validation("nativeToUSD must be positive")
	}
	if !p.RateToNativeUnitFactor.IsPositive() {
		return apperror.Validation("rateToNativeUnitFactor must be positive")
	}
	return nil
}
