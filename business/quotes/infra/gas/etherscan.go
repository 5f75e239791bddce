// Package gas implements network fee sources.
package gas

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/httpclient"
)

const healthTimeout = 2 * time.Second

var _ app.GasSource = (*Etherscan)(nil)

// EtherscanConfig configures the gas tracker source.
type EtherscanConfig struct {
	BaseURL string
	APIKey  string
	Fetch   provider.Config
}

// Etherscan reads the gas tracker oracle. It has no forecast, so its quotes
// carry a flat zero-confidence forecast.
type Etherscan struct {
	client  httpclient.Client
	fetcher *provider.Fetcher[domain.GasQuote]
	apiKey  string
}

type etherscanEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscanOracle struct {
	LastBlock       string `json:"LastBlock"`
	SafeGasPrice    string `json:"SafeGasPrice"`
	ProposeGasPrice string `json:"ProposeGasPrice"`
	FastGasPrice    string `json:"FastGasPrice"`
	SuggestBaseFee  string `json:"suggestBaseFee"`
}

// NewEtherscan builds the source. An empty API key is a configuration error.
func NewEtherscan(cfg EtherscanConfig, deps provider.Deps, opts ...httpclient.ClientOption) (*Etherscan, error) {
	if cfg.APIKey == "" {
		return nil, provider.MissingKey("etherscan")
	}
	client, err := httpclient.NewInstrumentedClient(append([]httpclient.ClientOption{
		httpclient.WithProviderName("etherscan"),
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithRequestTimeout(cfg.Fetch.AttemptTimeout),
	}, opts...)...)
	if err != nil {
		return nil, err
	}
	fetcher, err := provider.NewFetcher[domain.GasQuote](cfg.Fetch, deps)
	if err != nil {
		return nil, err
	}
	return &Etherscan{client: client, fetcher: fetcher, apiKey: cfg.APIKey}, nil
}

func (e *Etherscan) Name() string  { return "etherscan" }
func (e *Etherscan) Kind() app.Kind { return app.KindGas }

// Fetch returns the current oracle rates.
func (e *Etherscan) Fetch(ctx context.Context, params app.GasParams) (domain.GasQuote, error) {
	return e.fetcher.Do(ctx, func(ctx context.Context) (domain.GasQuote, error) {
		var env etherscanEnvelope
		_, err := e.client.NewRequest(httpclient.WithLabels(httpclient.NewLabel("endpoint", "gasoracle"))).
			SetQueryParam("module", "gastracker").
			SetQueryParam("action", "gasoracle").
			SetQueryParam("apikey", e.apiKey).
			SetResult(&env).
			Get(ctx, "/api")
		if err != nil {
			return domain.GasQuote{}, err
		}
		return parseEtherscan(env, params.Chain)
	})
}

func parseEtherscan(env etherscanEnvelope, chain string) (domain.GasQuote, error) {
	if env.Status != "1" {
		return domain.GasQuote{}, apperror.New(apperror.CodeProviderHTTPError,
			apperror.WithContext(fmt.Sprintf("etherscan: %s: %s", env.Message, string(env.Result))))
	}
	var o etherscanOracle
	if err := json.Unmarshal(env.Result, &o); err != nil {
		return domain.GasQuote{}, apperror.New(apperror.CodeInvalidQuote, apperror.WithContext("etherscan result"), apperror.WithCause(err))
	}

	fast, err := provider.ParseDecimal("FastGasPrice", o.FastGasPrice)
	if err != nil {
		return domain.GasQuote{}, err
	}
	standard, err := provider.ParseDecimal("ProposeGasPrice", o.ProposeGasPrice)
	if err != nil {
		return domain.GasQuote{}, err
	}
	economy, err := provider.ParseDecimal("SafeGasPrice", o.SafeGasPrice)
	if err != nil {
		return domain.GasQuote{}, err
	}
	baseFee, err := provider.ParseDecimal("suggestBaseFee", o.SuggestBaseFee)
	if err != nil {
		return domain.GasQuote{}, err
	}

	return domain.GasQuote{
		Provider:     "etherscan",
		Chain:        chainOrDefault(chain),
		CurrentRate:  standard,
		FastRate:     fast,
		StandardRate: standard,
		EconomyRate:  economy,
		BaseFee:      baseFee,
		PriorityFee:  tipOver(standard, baseFee),
		Forecast:     domain.FlatForecast(standard, 0),
		Timestamp:    time.Now(),
	}, nil
}

// HealthCheck makes one unretried oracle call. A rejected key comes back as
// HTTP 200 with status "0" and counts as unhealthy.
func (e *Etherscan) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	var env etherscanEnvelope
	_, err := e.client.NewRequest().
		SetQueryParam("module", "gastracker").
		SetQueryParam("action", "gasoracle").
		SetQueryParam("apikey", e.apiKey).
		SetResult(&env).
		Get(ctx, "/api")
	return err == nil && env.Status == "1"
}
