// Package bridge implements cross-chain transfer quote sources.
package bridge

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/httpclient"
)

const healthTimeout = 2 * time.Second

// HTTPConfig configures an HTTP bridge source.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Fetch   provider.Config
}

var _ app.BridgeSource = (*LiFi)(nil)

// LiFi quotes through the LI.FI API. The key is optional and only raises
// upstream rate limits.
type LiFi struct {
	client  httpclient.Client
	fetcher *provider.Fetcher[domain.BridgeQuote]
}

type lifiCost struct {
	AmountUSD string `json:"amountUSD"`
}

type lifiQuote struct {
	Tool     string `json:"tool"`
	Estimate *struct {
		ExecutionDuration *float64   `json:"executionDuration"`
		FeeCosts          []lifiCost `json:"feeCosts"`
		GasCosts          []lifiCost `json:"gasCosts"`
	} `json:"estimate"`
}

// NewLiFi builds the source.
func NewLiFi(cfg HTTPConfig, deps provider.Deps, opts ...httpclient.ClientOption) (*LiFi, error) {
	base := []httpclient.ClientOption{
		httpclient.WithProviderName("lifi"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Fetch.AttemptTimeout),
	}
	if cfg.APIKey != "" {
		base = append(base,
			httpclient.WithHeaders(map[string]string{"x-lifi-api-key": cfg.APIKey}),
			httpclient.WithMaskedHeaders("x-lifi-api-key"))
	}
	client, err := httpclient.NewInstrumentedClient(append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	fetcher, err := provider.NewFetcher[domain.BridgeQuote](cfg.Fetch, deps)
	if err != nil {
		return nil, err
	}
	return &LiFi{client: client, fetcher: fetcher}, nil
}

func (l *LiFi) Name() string  { return "lifi" }
func (l *LiFi) Kind() app.Kind { return app.KindBridge }

// Fetch quotes moving req's amount from the source to the destination chain.
func (l *LiFi) Fetch(ctx context.Context, req domain.TradeRequest) (domain.BridgeQuote, error) {
	from, to, err := chainPair(req)
	if err != nil {
		return domain.BridgeQuote{}, err
	}

	return l.fetcher.Do(ctx, func(ctx context.Context) (domain.BridgeQuote, error) {
		r := l.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("endpoint", "quote"))).
			SetQueryParam("fromChain", strconv.FormatUint(from, 10)).
			SetQueryParam("toChain", strconv.FormatUint(to, 10)).
			SetQueryParam("fromToken", req.FromTokenID).
			SetQueryParam("toToken", req.ToTokenID).
			SetQueryParam("fromAmount", req.Amount).
			SetQueryParam("slippage", bpsToFraction(req.SlippageToleranceBps))
		if req.UserAddress != "" {
			r.SetQueryParam("fromAddress", req.UserAddress)
		}

		var resp lifiQuote
		if _, err := r.SetResult(&resp).Get(ctx, "/v1/quote"); err != nil {
			return domain.BridgeQuote{}, err
		}
		if resp.Estimate == nil || resp.Estimate.ExecutionDuration == nil || *resp.Estimate.ExecutionDuration < 0 {
			return domain.BridgeQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("lifi: missing estimate"))
		}

		bridgeCost, err := sumUSD(resp.Estimate.FeeCosts)
		if err != nil {
			return domain.BridgeQuote{}, err
		}
		gasCost, err := sumUSD(resp.Estimate.GasCosts)
		if err != nil {
			return domain.BridgeQuote{}, err
		}

		return domain.BridgeQuote{
			Provider:      "lifi",
			FromChain:     req.SourceChain,
			ToChain:       req.DestinationChain,
			BridgeCostUSD: bridgeCost,
			TotalCostUSD:  bridgeCost.Add(gasCost),
			EstimatedTime: time.Duration(*resp.Estimate.ExecutionDuration * float64(time.Second)),
			Timestamp:     time.Now(),
		}, nil
	})
}

func sumUSD(costs []lifiCost) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, c := range costs {
		usd, err := provider.ParseDecimal("amountUSD", c.AmountUSD)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(usd)
	}
	return total, nil
}

// HealthCheck lists supported chains.
func (l *LiFi) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := l.client.NewRequest().Get(ctx, "/v1/chains")
	return err == nil
}

func chainPair(req domain.TradeRequest) (uint64, uint64, error) {
	if !req.HasBridgeLeg() {
		return 0, 0, apperror.Validation("request has no bridge leg")
	}
	from, err := provider.ChainID(req.SourceChain)
	if err != nil {
		return 0, 0, err
	}
	to, err := provider.ChainID(req.DestinationChain)
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

// bpsToFraction renders 50 as "0.005".
func bpsToFraction(bps int) string {
	return decimal.New(int64(bps), -4).String()
}
