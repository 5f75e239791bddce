package route

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

var _ app.RouteSource = (*ZeroEx)(nil)

// ZeroEx quotes through the 0x swap price API. 0x deducts its fees from
// buyAmount, so they land in PlatformFees and the USD fee fields stay zero.
type ZeroEx struct {
	client  httpclient.Client
	fetcher *provider.Fetcher[domain.RouteQuote]
}

type zeroExPrice struct {
	LiquidityAvailable *bool  `json:"liquidityAvailable"`
	BuyAmount          string `json:"buyAmount"`
	Gas                string `json:"gas"`
	TotalNetworkFee    string `json:"totalNetworkFee"`
	Fees               struct {
		IntegratorFee *zeroExFee `json:"integratorFee"`
		ZeroExFee     *zeroExFee `json:"zeroExFee"`
	} `json:"fees"`
	Route struct {
		Fills []struct {
			Source string `json:"source"`
		} `json:"fills"`
	} `json:"route"`
}

type zeroExFee struct {
	Amount string `json:"amount"`
	Token  string `json:"token"`
	Type   string `json:"type"`
}

// NewZeroEx builds the source. An empty API key is a configuration error.
func NewZeroEx(cfg HTTPConfig, deps provider.Deps, opts ...httpclient.ClientOption) (*ZeroEx, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKey("zeroex")
	}
	client, err := httpclient.NewInstrumentedClient(append([]httpclient.ClientOption{
		httpclient.WithProviderName("zeroex"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Fetch.AttemptTimeout),
		httpclient.WithHeaders(map[string]string{"0x-api-key": cfg.APIKey, "0x-version": "v2"}),
		httpclient.WithMaskedHeaders("0x-api-key"),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	fetcher, err := provider.NewFetcher[domain.RouteQuote](cfg.Fetch, deps)
	if err != nil {
		return nil, err
	}
	return &ZeroEx{client: client, fetcher: fetcher}, nil
}

func (z *ZeroEx) Name() string  { return "zeroex" }
func (z *ZeroEx) Kind() app.Kind { return app.KindRoute }

// Fetch requests an indicative price for req.
func (z *ZeroEx) Fetch(ctx context.Context, req domain.TradeRequest) (domain.RouteQuote, error) {
	chainID, err := provider.ChainID(req.SourceChain)
	if err != nil {
		return domain.RouteQuote{}, err
	}

	return z.fetcher.Do(ctx, func(ctx context.Context) (domain.RouteQuote, error) {
		r := z.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("endpoint", "price"))).
			SetQueryParam("chainId", strconv.FormatUint(chainID, 10)).
			SetQueryParam("sellToken", req.FromTokenID).
			SetQueryParam("buyToken", req.ToTokenID).
			SetQueryParam("sellAmount", req.Amount).
			SetQueryParam("slippageBps", strconv.Itoa(req.SlippageToleranceBps))
		if req.UserAddress != "" {
			r.SetQueryParam("taker", req.UserAddress)
		}

		var resp zeroExPrice
		if _, err := r.SetResult(&resp).Get(ctx, "/swap/permit2/price"); err != nil {
			return domain.RouteQuote{}, err
		}
		if resp.LiquidityAvailable != nil && !*resp.LiquidityAvailable {
			return domain.RouteQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("zeroex: no liquidity"))
		}

		amountOut, err := provider.ParseAmount("buyAmount", resp.BuyAmount)
		if err != nil {
			return domain.RouteQuote{}, err
		}
		gas, err := provider.ParseUint("gas", resp.Gas)
		if err != nil {
			return domain.RouteQuote{}, err
		}

		fees, err := zeroExFees(resp)
		if err != nil {
			return domain.RouteQuote{}, err
		}
		var networkFee decimal.Decimal
		if resp.TotalNetworkFee != "" {
			if networkFee, err = provider.ParseDecimal("totalNetworkFee", resp.TotalNetworkFee); err != nil {
				return domain.RouteQuote{}, err
			}
		}

		seen := make(map[string]bool)
		var protocols []string
		for _, f := range resp.Route.Fills {
			if f.Source != "" && !seen[f.Source] {
				seen[f.Source] = true
				protocols = append(protocols, f.Source)
			}
		}

		return domain.RouteQuote{
			Provider:           "zeroex",
			FromTokenID:        req.FromTokenID,
			ToTokenID:          req.ToTokenID,
			AmountIn:           req.Amount,
			AmountOut:          amountOut,
			GasUnits:           gas,
			Protocols:          protocols,
			PlatformFees:       fees,
			NetworkFeeEstimate: networkFee,
			Timestamp:          time.Now(),
		}, nil
	})
}

func zeroExFees(resp zeroExPrice) ([]domain.FeeAmount, error) {
	var out []domain.FeeAmount
	for _, f := range []struct {
		kind string
		fee  *zeroExFee
	}{
		{"integrator", resp.Fees.IntegratorFee},
		{"zeroex", resp.Fees.ZeroExFee},
	} {
		if f.fee == nil {
			continue
		}
		amount, err := provider.ParseDecimal("fees."+f.kind, f.fee.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.FeeAmount{Kind: f.kind, Token: f.fee.Token, Amount: amount})
	}
	return out, nil
}

// HealthCheck lists liquidity sources on mainnet.
func (z *ZeroEx) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := z.client.NewRequest().SetQueryParam("chainId", "1").Get(ctx, "/sources")
	return err == nil
}
