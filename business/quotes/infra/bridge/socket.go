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

var _ app.BridgeSource = (*Socket)(nil)

// Socket quotes through the Socket (Bungee) API and keeps the cheapest route.
type Socket struct {
	client  httpclient.Client
	fetcher *provider.Fetcher[domain.BridgeQuote]
}

type socketFees struct {
	FeesInUsd *decimal.Decimal `json:"feesInUsd"`
}

type socketRoute struct {
	TotalGasFeesInUsd *decimal.Decimal `json:"totalGasFeesInUsd"`
	ServiceTime       *int64           `json:"serviceTime"`
	UsedBridgeNames   []string         `json:"usedBridgeNames"`
	IntegratorFee     *struct {
		Amount *struct {
			AmountUSD *decimal.Decimal `json:"amountUSD"`
		} `json:"amount"`
	} `json:"integratorFee"`
	UserTxs           []struct {
		Steps []struct {
			ProtocolFees *socketFees `json:"protocolFees"`
		} `json:"steps"`
		ProtocolFees *socketFees `json:"protocolFees"`
	} `json:"userTxs"`
}

type socketQuote struct {
	Success bool `json:"success"`
	Result  struct {
		Routes []socketRoute `json:"routes"`
	} `json:"result"`
}

// NewSocket builds the source. An empty API key is a configuration error.
func NewSocket(cfg HTTPConfig, deps provider.Deps, opts ...httpclient.ClientOption) (*Socket, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKey("socket")
	}
	client, err := httpclient.NewInstrumentedClient(append([]httpclient.ClientOption{
		httpclient.WithProviderName("socket"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Fetch.AttemptTimeout),
		httpclient.WithHeaders(map[string]string{"API-KEY": cfg.APIKey}),
		httpclient.WithMaskedHeaders("API-KEY"),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	fetcher, err := provider.NewFetcher[domain.BridgeQuote](cfg.Fetch, deps)
	if err != nil {
		return nil, err
	}
	return &Socket{client: client, fetcher: fetcher}, nil
}

func (s *Socket) Name() string  { return "socket" }
func (s *Socket) Kind() app.Kind { return app.KindBridge }

// Fetch quotes req and returns the route with the lowest total USD fee.
func (s *Socket) Fetch(ctx context.Context, req domain.TradeRequest) (domain.BridgeQuote, error) {
	from, to, err := chainPair(req)
	if err != nil {
		return domain.BridgeQuote{}, err
	}

	return s.fetcher.Do(ctx, func(ctx context.Context) (domain.BridgeQuote, error) {
		r := s.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("endpoint", "quote"))).
			SetQueryParam("fromChainId", strconv.FormatUint(from, 10)).
			SetQueryParam("toChainId", strconv.FormatUint(to, 10)).
			SetQueryParam("fromTokenAddress", req.FromTokenID).
			SetQueryParam("toTokenAddress", req.ToTokenID).
			SetQueryParam("fromAmount", req.Amount).
			SetQueryParam("singleTxOnly", "true").
			SetQueryParam("sort", "output")
		if req.UserAddress != "" {
			r.SetQueryParam("userAddress", req.UserAddress)
		}

		var resp socketQuote
		if _, err := r.SetResult(&resp).Get(ctx, "/v2/quote"); err != nil {
			return domain.BridgeQuote{}, err
		}
		if !resp.Success || len(resp.Result.Routes) == 0 {
			return domain.BridgeQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("socket: no routes"))
		}

		var best *domain.BridgeQuote
		for _, route := range resp.Result.Routes {
			q, err := socketRouteQuote(route)
			if err != nil {
				return domain.BridgeQuote{}, err
			}
			if best == nil || q.TotalCostUSD.LessThan(best.TotalCostUSD) {
				q.FromChain, q.ToChain = req.SourceChain, req.DestinationChain
				best = &q
			}
		}
		return *best, nil
	})
}

// socketRouteQuote prices one route. Integrator and protocol fees make up the
// bridge cost; gas is added on top for the total.
func socketRouteQuote(r socketRoute) (domain.BridgeQuote, error) {
	if r.TotalGasFeesInUsd == nil || r.TotalGasFeesInUsd.IsNegative() || r.ServiceTime == nil || *r.ServiceTime < 0 {
		return domain.BridgeQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("socket: incomplete route"))
	}
	fees := decimal.Zero
	if f := r.IntegratorFee; f != nil && f.Amount != nil && f.Amount.AmountUSD != nil {
		fees = fees.Add(*f.Amount.AmountUSD)
	}
	add := func(f *socketFees) {
		if f != nil && f.FeesInUsd != nil {
			fees = fees.Add(*f.FeesInUsd)
		}
	}
	for _, tx := range r.UserTxs {
		add(tx.ProtocolFees)
		for _, step := range tx.Steps {
			add(step.ProtocolFees)
		}
	}
	if fees.IsNegative() {
		return domain.BridgeQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("socket: negative fees"))
	}
	return domain.BridgeQuote{
		Provider:      "socket",
		BridgeCostUSD: fees,
		TotalCostUSD:  fees.Add(*r.TotalGasFeesInUsd),
		EstimatedTime: time.Duration(*r.ServiceTime) * time.Second,
		Timestamp:     time.Now(),
	}, nil
}

// HealthCheck lists supported chains.
func (s *Socket) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := s.client.NewRequest().Get(ctx, "/v2/supported/chains")
	return err == nil
}
