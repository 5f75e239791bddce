package app

import (
	"context"

	"github.com/fd1az/fee-advisor/business/advisor/domain"
)

// PriceOracle supplies the native token price and rate unit factor.
type PriceOracle interface {
	Price(ctx context.Context) (domain.PriceInput, error)
}

// StaticPriceOracle returns fixed values, typically from configuration.
type StaticPriceOracle struct {
	input domain.PriceInput
}

var _ PriceOracle = (*StaticPriceOracle)(nil)

// NewStaticPriceOracle validates input and wraps it.
func NewStaticPriceOracle(input domain.PriceInput) (*StaticPriceOracle, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	return &StaticPriceOracle{input: input}, nil
}

func (o *StaticPriceOracle) Price(context.Context) (domain.PriceInput, error) {
	return o.input, nil
}
