package bridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/logger"
)

func fetchConfig(name string) provider.Config {
	cfg := provider.DefaultConfig(name, "bridge")
	cfg.MaxAttempts = 1
	cfg.AttemptTimeout = time.Second
	return cfg
}

func testDeps() provider.Deps {
	return provider.Deps{Log: logger.Nop()}
}

func bridgeRequest() domain.TradeRequest {
	return domain.TradeRequest{
		FromTokenID:          "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		ToTokenID:            "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		Amount:               "1000000000",
		SourceChain:          "ethereum",
		DestinationChain:     "arbitrum",
		UserAddress:          "0x000000000000000000000000000000000000dEaD",
		SlippageToleranceBps: 50,
		PriorityTier:         domain.PriorityStandard,
	}
}

func TestLiFi_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fromChain") != "1" || q.Get("toChain") != "42161" || q.Get("slippage") != "0.005" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		if r.Header.Get("x-lifi-api-key") != "" {
			t.Error("no key configured, header should be absent")
		}
		w.Write([]byte(`{"tool":"stargate","estimate":{"executionDuration":95.5,
			"feeCosts":[{"amountUSD":"1.25"},{"amountUSD":"0.75"}],"gasCosts":[{"amountUSD":"6.00"}]}}`))
	}))
	defer srv.Close()

	src, err := NewLiFi(HTTPConfig{BaseURL: srv.URL, Fetch: fetchConfig("lifi")}, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	q, err := src.Fetch(context.Background(), bridgeRequest())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !q.BridgeCostUSD.Equal(decimal.NewFromInt(2)) || !q.TotalCostUSD.Equal(decimal.NewFromInt(8)) {
		t.Errorf("bridge cost = %s, total = %s; want 2 and 8", q.BridgeCostUSD, q.TotalCostUSD)
	}
	if !q.EstimatedSavingsUSD.IsZero() {
		t.Errorf("savings = %s, sources leave it unset", q.EstimatedSavingsUSD)
	}
	if q.EstimatedTime != 95500*time.Millisecond || q.ToChain != "arbitrum" {
		t.Errorf("quote = %+v", q)
	}
}

func TestLiFi_Failures(t *testing.T) {
	for name, body := range map[string]string{
		"no estimate":    `{"tool":"x"}`,
		"bad fee string": `{"estimate":{"executionDuration":10,"feeCosts":[{"amountUSD":"?"}]}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			src, _ := NewLiFi(HTTPConfig{BaseURL: srv.URL, Fetch: fetchConfig("lifi")}, testDeps())
			if _, err := src.Fetch(context.Background(), bridgeRequest()); !errors.Is(err, apperror.ErrInvalidQuote) {
				t.Errorf("err = %v, want INVALID_QUOTE cause", err)
			}
		})
	}
}

func TestLiFi_SameChainRejected(t *testing.T) {
	src, _ := NewLiFi(HTTPConfig{BaseURL: "http://unused", Fetch: fetchConfig("lifi")}, testDeps())
	req := bridgeRequest()
	req.DestinationChain = ""
	if _, err := src.Fetch(context.Background(), req); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
}

func TestSocket_PicksCheapestRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("API-KEY") != "sk" {
			t.Error("missing api key")
		}
		w.Write([]byte(`{"success":true,"result":{"routes":[
			{"totalGasFeesInUsd":4.5,"serviceTime":60,"usedBridgeNames":["hop"],"userTxs":[],
			 "integratorFee":{"amount":{"amountUSD":1.0}}},
			{"totalGasFeesInUsd":4.0,"serviceTime":300,"usedBridgeNames":["across"],
			 "userTxs":[{"protocolFees":{"feesInUsd":0.5},"steps":[{"protocolFees":{"feesInUsd":0.25}}]}]}
		]}}`))
	}))
	defer srv.Close()

	src, err := NewSocket(HTTPConfig{BaseURL: srv.URL, APIKey: "sk", Fetch: fetchConfig("socket")}, testDeps())
	if err != nil {
		t.Fatal(err)
	}
	q, err := src.Fetch(context.Background(), bridgeRequest())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !q.TotalCostUSD.Equal(decimal.RequireFromString("4.75")) || q.EstimatedTime != 5*time.Minute {
		t.Errorf("quote = %+v", q)
	}
	if !q.BridgeCostUSD.Equal(decimal.RequireFromString("0.75")) || q.FromChain != "ethereum" || q.ToChain != "arbitrum" {
		t.Errorf("quote = %+v", q)
	}
}

func TestSocket_RequiresKeyAndRoutes(t *testing.T) {
	if _, err := NewSocket(HTTPConfig{BaseURL: "http://x"}, testDeps()); apperror.GetCode(err) != apperror.CodeConfiguration {
		t.Errorf("err = %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"result":{"routes":[]}}`))
	}))
	defer srv.Close()
	src, _ := NewSocket(HTTPConfig{BaseURL: srv.URL, APIKey: "sk", Fetch: fetchConfig("socket")}, testDeps())
	if _, err := src.Fetch(context.Background(), bridgeRequest()); !errors.Is(err, apperror.ErrProviderUnavailable) {
		t.Errorf("err = %v", err)
	}
}
