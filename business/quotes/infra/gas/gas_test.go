package gas

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/logger"
)

func fetchConfig(name string, attempts int) provider.Config {
	cfg := provider.DefaultConfig(name, "gas")
	cfg.MaxAttempts = attempts
	cfg.AttemptTimeout = time.Second
	cfg.BaseDelay = time.Millisecond
	return cfg
}

func testDeps() provider.Deps {
	return provider.Deps{Log: logger.Nop()}
}

func TestEtherscan_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("module") != "gastracker" || q.Get("apikey") != "key" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"status":"1","message":"OK","result":{"LastBlock":"19000000","SafeGasPrice":"20","ProposeGasPrice":"25","FastGasPrice":"30.5","suggestBaseFee":"19.8"}}`))
	}))
	defer srv.Close()

	src, err := NewEtherscan(EtherscanConfig{BaseURL: srv.URL, APIKey: "key", Fetch: fetchConfig("etherscan", 1)}, testDeps())
	if err != nil {
		t.Fatal(err)
	}

	q, err := src.Fetch(context.Background(), app.GasParams{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !q.StandardRate.Equal(decimal.NewFromInt(25)) || !q.FastRate.Equal(decimal.RequireFromString("30.5")) {
		t.Errorf("rates = %+v", q)
	}
	if q.Forecast.Confidence != 0 || !q.Forecast.Next5BlockRate[4].Equal(q.StandardRate) {
		t.Errorf("expected flat zero-confidence forecast, got %+v", q.Forecast)
	}
	if q.Chain != "ethereum" {
		t.Errorf("chain = %s", q.Chain)
	}
	if !q.CurrentRate.Equal(decimal.NewFromInt(25)) || !q.PriorityFee.Equal(decimal.RequireFromString("5.2")) {
		t.Errorf("current = %s, tip = %s; want 25 and 5.2", q.CurrentRate, q.PriorityFee)
	}
}

func TestEtherscan_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"api error", `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`},
		{"unparseable rate", `{"status":"1","message":"OK","result":{"SafeGasPrice":"x","ProposeGasPrice":"25","FastGasPrice":"30","suggestBaseFee":"1"}}`},
		{"missing rate", `{"status":"1","message":"OK","result":{"SafeGasPrice":"20","FastGasPrice":"30","suggestBaseFee":"1"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src, err := NewEtherscan(EtherscanConfig{BaseURL: srv.URL, APIKey: "key", Fetch: fetchConfig("etherscan", 2)}, testDeps())
			if err != nil {
				t.Fatal(err)
			}
			_, err = src.Fetch(context.Background(), app.GasParams{})
			if !errors.Is(err, apperror.ErrProviderUnavailable) {
				t.Errorf("err = %v, want PROVIDER_UNAVAILABLE", err)
			}
			if hits.Load() != 2 {
				t.Errorf("hits = %d, want every attempt to be retried", hits.Load())
			}
		})
	}
}

func TestEtherscan_HealthCheck(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"valid key", `{"status":"1","message":"OK","result":{"ProposeGasPrice":"25"}}`, true},
		{"rejected key", `{"status":"0","message":"NOTOK","result":"Invalid API Key"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			src, err := NewEtherscan(EtherscanConfig{BaseURL: srv.URL, APIKey: "key", Fetch: fetchConfig("etherscan", 1)}, testDeps())
			if err != nil {
				t.Fatal(err)
			}
			if got := src.HealthCheck(context.Background()); got != tt.want {
				t.Errorf("HealthCheck = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEtherscan_RequiresKey(t *testing.T) {
	if _, err := NewEtherscan(EtherscanConfig{BaseURL: "http://x"}, testDeps()); apperror.GetCode(err) != apperror.CodeConfiguration {
		t.Errorf("err = %v, want CONFIGURATION_ERROR", err)
	}
}

func TestBlocknative_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "bn-key" {
			t.Errorf("missing auth header")
		}
		w.Write([]byte(`{"blockPrices":[
			{"blockNumber":1,"baseFeePerGas":40.1,"estimatedPrices":[
				{"confidence":99,"price":55},{"confidence":90,"price":50},{"confidence":70,"price":45}]},
			{"blockNumber":2,"baseFeePerGas":39,"estimatedPrices":[{"confidence":90,"price":48}]},
			{"blockNumber":3,"baseFeePerGas":38,"estimatedPrices":[{"confidence":90,"price":46}]}
		]}`))
	}))
	defer srv.Close()

	src, err := NewBlocknative(BlocknativeConfig{BaseURL: srv.URL, APIKey: "bn-key", Fetch: fetchConfig("blocknative", 1)}, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	q, err := src.Fetch(context.Background(), app.GasParams{Chain: "ethereum"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if !q.FastRate.Equal(decimal.NewFromInt(55)) || !q.StandardRate.Equal(decimal.NewFromInt(50)) || !q.EconomyRate.Equal(decimal.NewFromInt(45)) {
		t.Errorf("tiers = %s/%s/%s", q.FastRate, q.StandardRate, q.EconomyRate)
	}
	want := []int64{50, 48, 46, 46, 46}
	for i, w := range want {
		if !q.Forecast.Next5BlockRate[i].Equal(decimal.NewFromInt(w)) {
			t.Errorf("forecast[%d] = %s, want %d", i, q.Forecast.Next5BlockRate[i], w)
		}
	}
	if q.Forecast.Confidence != 0.9 {
		t.Errorf("confidence = %v", q.Forecast.Confidence)
	}
	if !q.CurrentRate.Equal(decimal.NewFromInt(50)) || !q.PriorityFee.Equal(decimal.RequireFromString("9.9")) {
		t.Errorf("current = %s, tip = %s; want 50 and 9.9", q.CurrentRate, q.PriorityFee)
	}
}

func TestBlocknative_MissingTierFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"blockPrices":[{"blockNumber":1,"baseFeePerGas":40,"estimatedPrices":[{"confidence":99,"price":55}]}]}`))
	}))
	defer srv.Close()

	src, _ := NewBlocknative(BlocknativeConfig{BaseURL: srv.URL, APIKey: "k", Fetch: fetchConfig("blocknative", 1)}, testDeps())
	if _, err := src.Fetch(context.Background(), app.GasParams{}); !errors.Is(err, apperror.ErrInvalidQuote) {
		t.Errorf("err = %v, want INVALID_QUOTE in chain", err)
	}
}

type fakeFeeReader struct {
	history *ethereum.FeeHistory
	tip     *big.Int
	err     error
}

func (f *fakeFeeReader) FeeHistory(context.Context, uint64, *big.Int, []float64) (*ethereum.FeeHistory, error) {
	return f.history, f.err
}

func (f *fakeFeeReader) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return f.tip, f.err
}

func (f *fakeFeeReader) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &types.Header{Number: big.NewInt(1)}, nil
}

func gweiInt(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func TestRPC_ProjectsFallingBaseFee(t *testing.T) {
	reader := &fakeFeeReader{
		history: &ethereum.FeeHistory{
			BaseFee:      []*big.Int{gweiInt(22), gweiInt(21), gweiInt(20)},
			GasUsedRatio: []float64{0.1, 0.1},
			Reward: [][]*big.Int{
				{gweiInt(1), gweiInt(2), gweiInt(5)},
				{gweiInt(1), gweiInt(2), gweiInt(5)},
			},
		},
		tip: gweiInt(2),
	}
	src, err := NewRPC(reader, 2, fetchConfig("rpc", 1), testDeps())
	if err != nil {
		t.Fatal(err)
	}

	q, err := src.Fetch(context.Background(), app.GasParams{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !q.BaseFee.Equal(decimal.NewFromInt(20)) || !q.StandardRate.Equal(decimal.NewFromInt(22)) {
		t.Errorf("base=%s standard=%s", q.BaseFee, q.StandardRate)
	}
	if !q.FastRate.Equal(decimal.NewFromInt(25)) || !q.EconomyRate.Equal(decimal.NewFromInt(21)) {
		t.Errorf("fast=%s economy=%s", q.FastRate, q.EconomyRate)
	}
	if !q.CurrentRate.Equal(decimal.NewFromInt(22)) || !q.PriorityFee.Equal(decimal.NewFromInt(2)) {
		t.Errorf("current=%s tip=%s", q.CurrentRate, q.PriorityFee)
	}
	// Gas used 10% of limit: base fee shrinks by 10% per block.
	if !q.Forecast.Next5BlockRate[1].Equal(decimal.NewFromInt(20)) {
		t.Errorf("forecast[1] = %s, want 20", q.Forecast.Next5BlockRate[1])
	}
	for i := 1; i < len(q.Forecast.Next5BlockRate); i++ {
		if !q.Forecast.Next5BlockRate[i].LessThan(q.Forecast.Next5BlockRate[i-1]) {
			t.Errorf("forecast not decreasing at %d: %v", i, q.Forecast.Next5BlockRate)
		}
	}
	if q.Forecast.Confidence != 1 {
		t.Errorf("uniform ratios should give full confidence, got %v", q.Forecast.Confidence)
	}
}

func TestRPC_VolatileRatiosLowerConfidence(t *testing.T) {
	h := &ethereum.FeeHistory{
		BaseFee:      []*big.Int{gweiInt(20), gweiInt(20), gweiInt(20), gweiInt(20), gweiInt(20)},
		GasUsedRatio: []float64{0, 1, 0, 1},
	}
	q, err := buildRPCQuote(h, gweiInt(1), "ethereum")
	if err != nil {
		t.Fatal(err)
	}
	if q.Forecast.Confidence != 0 {
		t.Errorf("confidence = %v, want 0 for maximal variance", q.Forecast.Confidence)
	}
}

func TestRPC_ErrorsAndHealth(t *testing.T) {
	reader := &fakeFeeReader{err: errors.New("connection refused")}
	src, _ := NewRPC(reader, 10, fetchConfig("rpc", 1), testDeps())

	if _, err := src.Fetch(context.Background(), app.GasParams{}); !errors.Is(err, apperror.ErrProviderUnavailable) {
		t.Errorf("err = %v", err)
	}
	if src.HealthCheck(context.Background()) {
		t.Error("expected unhealthy")
	}
	reader.err = nil
	if !src.HealthCheck(context.Background()) {
		t.Error("expected healthy")
	}
}

func TestTipOver(t *testing.T) {
	tests := []struct {
		rate, base, want string
	}{
		{"25", "19.8", "5.2"},
		{"20", "20", "0"},
		{"18", "20", "0"},
	}
	for _, tt := range tests {
		got := tipOver(decimal.RequireFromString(tt.rate), decimal.RequireFromString(tt.base))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("tipOver(%s, %s) = %s, want %s", tt.rate, tt.base, got, tt.want)
		}
	}
}
