package route

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
)

const tracerName = "github.com/fd1az/fee-advisor/business/quotes/infra/route"

// ContractCaller is the subset of *ethclient.Client the Uniswap source needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ app.RouteSource = (*Uniswap)(nil)

// Uniswap quotes single-pool swaps through the V3 QuoterV2 contract, trying
// every fee tier and keeping the highest output.
type Uniswap struct {
	client    ContractCaller
	quoter    common.Address
	quoterABI abi.ABI
	fetcher   *provider.Fetcher[domain.RouteQuote]
	tracer    trace.Tracer
}

// NewUniswap builds the source against the quoter at quoter.
func NewUniswap(client ContractCaller, quoter common.Address, cfg provider.Config, deps provider.Deps) (*Uniswap, error) {
	parsed, err := abi.JSON(strings.NewReader(quoterV2ABI))
	if err != nil {
		return nil, fmt.Errorf("parse quoter abi: %w", err)
	}
	fetcher, err := provider.NewFetcher[domain.RouteQuote](cfg, deps)
	if err != nil {
		return nil, err
	}
	return &Uniswap{
		client:    client,
		quoter:    quoter,
		quoterABI: parsed,
		fetcher:   fetcher,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

func (u *Uniswap) Name() string  { return "uniswap" }
func (u *Uniswap) Kind() app.Kind { return app.KindRoute }

// Fetch quotes req across all fee tiers. Token ids must be hex addresses.
func (u *Uniswap) Fetch(ctx context.Context, req domain.TradeRequest) (domain.RouteQuote, error) {
	if !common.IsHexAddress(req.FromTokenID) || !common.IsHexAddress(req.ToTokenID) {
		return domain.RouteQuote{}, apperror.Validation("uniswap requires token addresses")
	}
	tokenIn := common.HexToAddress(req.FromTokenID)
	tokenOut := common.HexToAddress(req.ToTokenID)
	amountIn := req.AmountInt()

	return u.fetcher.Do(ctx, func(ctx context.Context) (domain.RouteQuote, error) {
		best, err := u.bestTier(ctx, tokenIn, tokenOut, amountIn)
		if err != nil {
			return domain.RouteQuote{}, err
		}
		return domain.RouteQuote{
			Provider:    "uniswap",
			FromTokenID: req.FromTokenID,
			ToTokenID:   req.ToTokenID,
			AmountIn:    req.Amount,
			AmountOut:   best.amountOut.String(),
			GasUnits:    best.gasEstimate.Uint64(),
			Protocols:   []string{fmt.Sprintf("UNISWAP_V3_%d", best.fee)},
			Timestamp:   time.Now(),
		}, nil
	})
}

func (u *Uniswap) bestTier(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int) (*tierQuote, error) {
	ctx, span := u.tracer.Start(ctx, "uniswap.best_tier",
		trace.WithAttributes(
			attribute.String("token_in", tokenIn.Hex()),
			attribute.String("token_out", tokenOut.Hex()),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	var best *tierQuote
	var lastErr error
	for _, fee := range feeTiers {
		q, err := u.quoteTier(ctx, tokenIn, tokenOut, amountIn, fee)
		if err != nil {
			// Missing pools revert; skip the tier.
			span.AddEvent("fee_tier_failed", trace.WithAttributes(
				attribute.Int64("fee_tier", fee),
				attribute.String("error", err.Error()),
			))
			lastErr = err
			continue
		}
		if best == nil || q.amountOut.Cmp(best.amountOut) > 0 {
			best = q
		}
	}

	if best == nil {
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithContext("no uniswap pool quoted the pair"),
			apperror.WithCause(lastErr))
	}
	span.SetAttributes(attribute.Int64("fee_tier", best.fee), attribute.String("amount_out", best.amountOut.String()))
	return best, nil
}

func (u *Uniswap) quoteTier(ctx context.Context, tokenIn, tokenOut common.Address, amountIn *big.Int, fee int64) (*tierQuote, error) {
	data, err := u.quoterABI.Pack("quoteExactInputSingle", quoteParams{
		TokenIn:           tokenIn,
		TokenOut:          tokenOut,
		AmountIn:          amountIn,
		Fee:               big.NewInt(fee),
		SqrtPriceLimitX96: big.NewInt(0),
	})
	if err != nil {
		return nil, fmt.Errorf("encode quote call: %w", err)
	}

	out, err := u.client.CallContract(ctx, ethereum.CallMsg{To: &u.quoter, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	values, err := u.quoterABI.Unpack("quoteExactInputSingle", out)
	if err != nil {
		return nil, fmt.Errorf("decode quote result: %w", err)
	}
	if len(values) < 4 {
		return nil, fmt.Errorf("unexpected output length %d", len(values))
	}
	amountOut, ok1 := values[0].(*big.Int)
	gas, ok2 := values[3].(*big.Int)
	if !ok1 || !ok2 || amountOut.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("uniswap quoter output"))
	}
	return &tierQuote{fee: fee, amountOut: amountOut, gasEstimate: gas}, nil
}

// HealthCheck reads the latest block number.
func (u *Uniswap) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := u.client.BlockNumber(ctx)
	return err == nil
}
