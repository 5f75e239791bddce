package gas

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/httpclient"
)

// Confidence levels requested from the block prices API.
const (
	confidenceFast     = 99
	confidenceStandard = 90
	confidenceEconomy  = 70
)

var _ app.GasSource = (*Blocknative)(nil)

// BlocknativeConfig configures the block prices source.
type BlocknativeConfig struct {
	BaseURL string
	APIKey  string
	Fetch   provider.Config
}

// Blocknative reads per-block price projections.
type Blocknative struct {
	client  httpclient.Client
	fetcher *provider.Fetcher[domain.GasQuote]
}

type blockPricesResponse struct {
	BlockPrices []struct {
		BlockNumber     int64            `json:"blockNumber"`
		BaseFeePerGas   *decimal.Decimal `json:"baseFeePerGas"`
		EstimatedPrices []struct {
			Confidence int              `json:"confidence"`
			Price      *decimal.Decimal `json:"price"`
		} `json:"estimatedPrices"`
	} `json:"blockPrices"`
}

// NewBlocknative builds the source. An empty API key is a configuration error.
func NewBlocknative(cfg BlocknativeConfig, deps provider.Deps, opts ...httpclient.ClientOption) (*Blocknative, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKey("blocknative")
	}
	client, err := httpclient.NewInstrumentedClient(append([]httpclient.ClientOption{
		httpclient.WithProviderName("blocknative"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Fetch.AttemptTimeout),
		httpclient.WithHeaders(map[string]string{"Authorization": cfg.APIKey}),
		httpclient.WithMaskedHeaders("Authorization"),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	fetcher, err := provider.NewFetcher[domain.GasQuote](cfg.Fetch, deps)
	if err != nil {
		return nil, err
	}
	return &Blocknative{client: client, fetcher: fetcher}, nil
}

func (b *Blocknative) Name() string  { return "blocknative" }
func (b *Blocknative) Kind() app.Kind { return app.KindGas }

// Fetch returns rates for the next block plus projections for later blocks.
func (b *Blocknative) Fetch(ctx context.Context, params app.GasParams) (domain.GasQuote, error) {
	chainID, err := provider.ChainID(chainOrDefault(params.Chain))
	if err != nil {
		return domain.GasQuote{}, err
	}
	return b.fetcher.Do(ctx, func(ctx context.Context) (domain.GasQuote, error) {
		var resp blockPricesResponse
		_, err := b.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("endpoint", "blockprices"))).
			SetQueryParam("chainid", formatUint(chainID)).
			SetQueryParam("confidenceLevels", "70,90,99").
			SetResult(&resp).
			Get(ctx, "/gasprices/blockprices")
		if err != nil {
			return domain.GasQuote{}, err
		}
		return parseBlockPrices(resp, chainOrDefault(params.Chain))
	})
}

func parseBlockPrices(resp blockPricesResponse, chain string) (domain.GasQuote, error) {
	if len(resp.BlockPrices) == 0 {
		return domain.GasQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("blocknative: no block prices"))
	}

	standards := make([]decimal.Decimal, 0, len(resp.BlockPrices))
	var q domain.GasQuote
	for i, bp := range resp.BlockPrices {
		tiers := make(map[int]decimal.Decimal, len(bp.EstimatedPrices))
		for _, ep := range bp.EstimatedPrices {
			if ep.Price == nil || ep.Price.IsNegative() {
				return domain.GasQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("blocknative: bad price"))
			}
			tiers[ep.Confidence] = *ep.Price
		}
		std, ok := tiers[confidenceStandard]
		if !ok {
			return domain.GasQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("blocknative: missing standard tier"))
		}
		standards = append(standards, std)

		if i > 0 {
			continue
		}
		fast, okFast := tiers[confidenceFast]
		economy, okEco := tiers[confidenceEconomy]
		if !okFast || !okEco || bp.BaseFeePerGas == nil {
			return domain.GasQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("blocknative: incomplete next block"))
		}
		q.FastRate, q.StandardRate, q.EconomyRate = fast, std, economy
		q.BaseFee = *bp.BaseFeePerGas
		q.CurrentRate = std
		q.PriorityFee = tipOver(std, q.BaseFee)
	}

	q.Provider = "blocknative"
	q.Chain = chain
	q.Timestamp = time.Now()
	q.Forecast = domain.GasForecast{
		NextBlockRate: standards[0],
		Confidence:    float64(confidenceStandard) / 100,
	}
	for i := range q.Forecast.Next5BlockRate {
		j := i
		if j >= len(standards) {
			j = len(standards) - 1
		}
		q.Forecast.Next5BlockRate[i] = standards[j]
	}
	return q, nil
}

// HealthCheck hits the chains endpoint.
func (b *Blocknative) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	_, err := b.client.NewRequest().Get(ctx, "/chains")
	return err == nil
}
