package provider

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/internal/apperror"
)

func invalid(field, value string, cause error) error {
	opts := []apperror.Option{apperror.WithContext(fmt.Sprintf("%s=%q", field, value))}
	if cause != nil {
		opts = append(opts, apperror.WithCause(cause))
	}
	return apperror.New(apperror.CodeInvalidQuote, opts...)
}

// ParseDecimal parses a non-negative decimal. Empty or garbage input is an
// error, never zero.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, invalid(field, s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, invalid(field, s, nil)
	}
	return d, nil
}

// ParseAmount checks s is a non-negative base-10 integer and returns it
// unchanged.
func ParseAmount(field, s string) (string, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return "", invalid(field, s, nil)
	}
	return s, nil
}

// ParseUint parses gas units given as a decimal string.
func ParseUint(field, s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, invalid(field, s, err)
	}
	return n, nil
}
