// Package domain contains the canonical quote shapes shared by every provider.
package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/fee-advisor/internal/apperror"
)

// PriorityTier selects which gas rate applies to the user's transaction.
type PriorityTier string

const (
	PriorityFast     PriorityTier = "fast"
	PriorityStandard PriorityTier = "standard"
	PriorityEconomy  PriorityTier = "economy"
)

// Valid reports whether t is a known tier.
func (t PriorityTier) Valid() bool {
	switch t {
	case PriorityFast, PriorityStandard, PriorityEconomy:
		return true
	}
	return false
}

const maxSlippageBps = 10_000

// TradeRequest is what the caller wants to do.
type TradeRequest struct {
	FromTokenID string
	ToTokenID   string
	// Amount is a decimal integer string in the source token's smallest unit.
	Amount           string
	SourceChain      string
	DestinationChain string
	UserAddress      string
	// SlippageToleranceBps is in basis points, 0..10000.
	SlippageToleranceBps int
	PriorityTier         PriorityTier
}

// HasBridgeLeg reports whether the request crosses chains.
func (r TradeRequest) HasBridgeLeg() bool {
	return r.DestinationChain != "" && !strings.EqualFold(r.DestinationChain, r.SourceChain)
}

// AmountInt parses Amount. Validate guarantees success.
func (r TradeRequest) AmountInt() *big.Int {
	n, _ := new(big.Int).SetString(r.Amount, 10)
	return n
}

// Validate rejects malformed requests before any network call.
func (r TradeRequest) Validate() error {
	switch {
	case r.FromTokenID == "":
		return apperror.Validation("fromTokenId is required")
	case r.ToTokenID == "":
		return apperror.Validation("toTokenId is required")
	case r.SourceChain == "":
		return apperror.Validation("sourceChain is required")
	case !r.PriorityTier.Valid():
		return apperror.Validation("unknown priority tier " + string(r.PriorityTier))
	case r.SlippageToleranceBps < 0 || r.SlippageToleranceBps > maxSlippageBps:
		return apperror.Validation("slippageToleranceBps must be within [0, 10000]")
	case r.UserAddress != "" && !common.IsHexAddress(r.UserAddress):
		return apperror.Validation("userAddress is not a hex address")
	}

	n, ok := new(big.Int).SetString(r.Amount, 10)
	if !ok || n.Sign() <= 0 {
		return apperror.Validation("amount must be a positive integer, got " + r.Amount)
	}
	return nil
}
