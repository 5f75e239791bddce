package provider

import (
	"strconv"
	"strings"

	"github.com/fd1az/fee-advisor/internal/apperror"
)

var chainIDs = map[string]uint64{
	"ethereum": 1,
	"mainnet":  1,
	"optimism": 10,
	"bsc":      56,
	"polygon":  137,
	"base":     8453,
	"arbitrum": 42161,
}

// ChainID resolves a chain name or numeric id.
func ChainID(chain string) (uint64, error) {
	key := strings.ToLower(strings.TrimSpace(chain))
	if id, ok := chainIDs[key]; ok {
		return id, nil
	}
	if id, err := strconv.ParseUint(key, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	return 0, apperror.Validation("unsupported chain " + chain)
}

// MissingKey is returned by constructors of sources that need an API key.
func MissingKey(name string) error {
	return apperror.New(apperror.CodeConfiguration, apperror.WithContext(name+": api key not configured"))
}

// ChainName returns the canonical name for id, or the decimal id when the
// chain has no name here.
func ChainName(id uint64) string {
	name := ""
	for n, v := range chainIDs {
		if v == id && n != "mainnet" {
			name = n
		}
	}
	if name == "" {
		return strconv.FormatUint(id, 10)
	}
	return name
}
