// Package route implements same-chain swap route sources.
package route

import (
	"context"
	"fmt"
	"time"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/httpclient"
)

const healthTimeout = 2 * time.Second

var _ app.RouteSource = (*OneInch)(nil)

// HTTPConfig configures an HTTP route source.
type HTTPConfig struct {
	BaseURL string
	APIKey  string
	Fetch   provider.Config
}

// OneInch quotes through the 1inch aggregation API.
type OneInch struct {
	client  httpclient.Client
	fetcher *provider.Fetcher[domain.RouteQuote]
}

type oneInchQuote struct {
	DstAmount string `json:"dstAmount"`
	Gas       uint64 `json:"gas"`
	Protocols [][][]struct {
		Name string  `json:"name"`
		Part float64 `json:"part"`
	} `json:"protocols"`
}

// NewOneInch builds the source. An empty API key is a configuration error.
func NewOneInch(cfg HTTPConfig, deps provider.Deps, opts ...httpclient.ClientOption) (*OneInch, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKey("oneinch")
	}
	client, err := httpclient.NewInstrumentedClient(append([]httpclient.ClientOption{
		httpclient.WithProviderName("oneinch"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Fetch.AttemptTimeout),
		httpclient.WithHeaders(map[string]string{"Authorization": "Bearer " + cfg.APIKey}),
		httpclient.WithMaskedHeaders("Authorization"),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	fetcher, err := provider.NewFetcher[domain.RouteQuote](cfg.Fetch, deps)
	if err != nil {
		return nil, err
	}
	return &OneInch{client: client, fetcher: fetcher}, nil
}

func (o *OneInch) Name() string  { return "oneinch" }
func (o *OneInch) Kind() app.Kind { return app.KindRoute }

// Fetch requests a quote for req's pair and amount.
func (o *OneInch) Fetch(ctx context.Context, req domain.TradeRequest) (domain.RouteQuote, error) {
	chainID, err := provider.ChainID(req.SourceChain)
	if err != nil {
		return domain.RouteQuote{}, err
	}
	path := fmt.Sprintf("/swap/v6.0/%d/quote", chainID)

	return o.fetcher.Do(ctx, func(ctx context.Context) (domain.RouteQuote, error) {
		var resp oneInchQuote
		_, err := o.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("endpoint", "quote"))).
			SetQueryParam("src", req.FromTokenID).
			SetQueryParam("dst", req.ToTokenID).
			SetQueryParam("amount", req.Amount).
			SetQueryParam("includeGas", "true").
			SetQueryParam("includeProtocols", "true").
			SetResult(&resp).
			Get(ctx, path)
		if err != nil {
			return domain.RouteQuote{}, err
		}

		amountOut, err := provider.ParseAmount("dstAmount", resp.DstAmount)
		if err != nil {
			return domain.RouteQuote{}, err
		}
		if resp.Gas == 0 {
			return domain.RouteQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("oneinch: missing gas"))
		}

		return domain.RouteQuote{
			Provider:    "oneinch",
			FromTokenID: req.FromTokenID,
			ToTokenID:   req.ToTokenID,
			AmountIn:    req.Amount,
			AmountOut:   amountOut,
			GasUnits:    resp.Gas,
			Protocols:   oneInchProtocols(resp),
			Timestamp:   time.Now(),
		}, nil
	})
}

func oneInchProtocols(resp oneInchQuote) []string {
	seen := make(map[string]bool)
	var out []string
	for _, route := range resp.Protocols {
		for _, hop := range route {
			for _, p := range hop {
				if p.Name != "" && !seen[p.Name] {
					seen[p.Name] = true
					out = append(out, p.Name)
				}
			}
		}
	}
	return out
}

// HealthCheck hits the mainnet healthcheck endpoint.
func (o *OneInch) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := o.client.NewRequest().Get(ctx, "/swap/v6.0/1/healthcheck")
	return err == nil
}
