package gas

import (
	"context"
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
)

// EIP-1559 base fee update: at most 1/8 change per block, scaled by how far
// gas used is from the 50% target.
const (
	baseFeeChangeDenominator = 8
	gasTarget                = 0.5
)

var rewardPercentiles = []float64{10, 50, 90}

// FeeReader is the subset of *ethclient.Client the RPC source needs.
type FeeReader interface {
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

var _ app.GasSource = (*RPC)(nil)

// RPC derives rates from the node's fee history and projects base fees
// forward with the EIP-1559 update rule.
type RPC struct {
	client  FeeReader
	fetcher *provider.Fetcher[domain.GasQuote]
	blocks  uint64
}

// NewRPC builds the source over client, sampling the last blocks blocks.
func NewRPC(client FeeReader, blocks int, cfg provider.Config, deps provider.Deps) (*RPC, error) {
	if blocks < 2 {
		blocks = 20
	}
	fetcher, err := provider.NewFetcher[domain.GasQuote](cfg, deps)
	if err != nil {
		return nil, err
	}
	return &RPC{client: client, fetcher: fetcher, blocks: uint64(blocks)}, nil
}

func (r *RPC) Name() string  { return "rpc" }
func (r *RPC) Kind() app.Kind { return app.KindGas }

// Fetch samples fee history and the node's tip suggestion.
func (r *RPC) Fetch(ctx context.Context, params app.GasParams) (domain.GasQuote, error) {
	return r.fetcher.Do(ctx, func(ctx context.Context) (domain.GasQuote, error) {
		history, err := r.client.FeeHistory(ctx, r.blocks, nil, rewardPercentiles)
		if err != nil {
			return domain.GasQuote{}, apperror.New(apperror.CodeEthereumRPCError, apperror.WithContext("eth_feeHistory"), apperror.WithCause(err))
		}
		tip, err := r.client.SuggestGasTipCap(ctx)
		if err != nil {
			return domain.GasQuote{}, apperror.New(apperror.CodeEthereumRPCError, apperror.WithContext("eth_maxPriorityFeePerGas"), apperror.WithCause(err))
		}
		return buildRPCQuote(history, tip, chainOrDefault(params.Chain))
	})
}

func buildRPCQuote(h *ethereum.FeeHistory, suggestedTip *big.Int, chain string) (domain.GasQuote, error) {
	if h == nil || len(h.BaseFee) == 0 || len(h.GasUsedRatio) == 0 || suggestedTip == nil {
		return domain.GasQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("rpc: empty fee history"))
	}

	// The last BaseFee entry is the base fee of the pending block.
	next := gwei(h.BaseFee[len(h.BaseFee)-1])
	low, high := meanReward(h.Reward, 0), meanReward(h.Reward, 2)
	tip := gwei(suggestedTip)
	if high.LessThan(tip) {
		high = tip
	}
	if low.GreaterThan(tip) {
		low = tip
	}

	mean, stddev := stats(h.GasUsedRatio)
	growth := decimal.NewFromFloat(1 + (mean-gasTarget)/gasTarget/baseFeeChangeDenominator)

	forecast := domain.GasForecast{
		NextBlockRate: next.Add(tip),
		Confidence:    math.Max(0, 1-2*stddev),
	}
	base := next
	for i := range forecast.Next5BlockRate {
		forecast.Next5BlockRate[i] = base.Add(tip).Round(9)
		base = base.Mul(growth)
	}

	return domain.GasQuote{
		Provider:     "rpc",
		Chain:        chain,
		CurrentRate:  next.Add(tip),
		FastRate:     next.Add(high),
		StandardRate: next.Add(tip),
		EconomyRate:  next.Add(low),
		BaseFee:      next,
		PriorityFee:  tip,
		Forecast:     forecast,
		Timestamp:    time.Now(),
	}, nil
}

func gwei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -9)
}

// meanReward averages the reward at percentile index col across blocks.
func meanReward(rewards [][]*big.Int, col int) decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, row := range rewards {
		if col < len(row) && row[col] != nil {
			sum = sum.Add(gwei(row[col]))
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

func stats(xs []float64) (mean, stddev float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(v / float64(len(xs)))
}

// HealthCheck fetches the latest header.
func (r *RPC) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := r.client.HeaderByNumber(ctx, nil)
	return err == nil
}

func chainOrDefault(chain string) string {
	if chain == "" {
		return "ethereum"
	}
	return chain
}

// tipOver is the part of rate above baseFee, floored at zero.
func tipOver(rate, baseFee decimal.Decimal) decimal.Decimal {
	if rate.LessThan(baseFee) {
		return decimal.Zero
	}
	return rate.Sub(baseFee)
}

func formatUint(n uint64) string {
	return strconv.FormatUint(n, 10)
}
