package app

import (
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/fd1az/fee-advisor/business/quotes/domain"
)

// cacheKey identifies one fan-out result.
type cacheKey [32]byte

func hashKey(kind Kind, fields ...string) cacheKey {
	h := blake3.New()
	h.Write([]byte(kind))
	for _, f := range fields {
		h.Write([]byte{0})
		h.Write([]byte(f))
	}

	var k cacheKey
	copy(k[:], h.Sum(nil))
	return k
}

func gasKey(chain string) cacheKey {
	return hashKey(KindGas, normalize(chain))
}

// routeKey covers the token pair, amount, slippage and source chain.
func routeKey(req domain.TradeRequest) cacheKey {
	return hashKey(KindRoute,
		normalize(req.SourceChain),
		normalize(req.FromTokenID),
		normalize(req.ToTokenID),
		normalizeAmount(req.Amount),
		strconv.Itoa(req.SlippageToleranceBps),
	)
}

func bridgeKey(req domain.TradeRequest) cacheKey {
	return hashKey(KindBridge,
		normalize(req.SourceChain),
		normalize(req.DestinationChain),
		normalize(req.FromTokenID),
		normalize(req.ToTokenID),
		normalizeAmount(req.Amount),
		strconv.Itoa(req.SlippageToleranceBps),
	)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeAmount drops leading zeros so "007" and "7" share an entry.
func normalizeAmount(s string) string {
	trimmed := strings.TrimLeft(strings.TrimSpace(s), "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
