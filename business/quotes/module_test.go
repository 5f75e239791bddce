package quotes

import (
	"testing"
	"time"

	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/internal/config"
	"github.com/fd1az/fee-advisor/internal/logger"
)

func testConfig() *config.Config {
	on := func(key string) config.ProviderConfig {
		return config.ProviderConfig{Enabled: true, BaseURL: "http://127.0.0.1:1", APIKey: key}
	}
	return &config.Config{
		Providers: config.ProvidersConfig{
			Etherscan:   on("es-key"),
			Blocknative: on(""),
			OneInch:     on(""),
			ZeroEx:      on("zx-key"),
			LiFi:        on(""),
			Socket:      on(""),
		},
		Aggregator: config.AggregatorConfig{
			MaxAttempts:    1,
			AttemptTimeout: time.Second,
			BaseDelay:      time.Millisecond,
		},
	}
}

func TestBuildSources_MissingKeysExcludeProviders(t *testing.T) {
	s, err := buildSources(testConfig(), provider.Deps{Log: logger.Nop()}, nil, logger.Nop())
	if err != nil {
		t.Fatalf("buildSources: %v", err)
	}

	names := func(n int, name func(i int) string) []string {
		out := make([]string, n)
		for i := range out {
			out[i] = name(i)
		}
		return out
	}
	gas := names(len(s.Gas), func(i int) string { return s.Gas[i].Name() })
	routes := names(len(s.Routes), func(i int) string { return s.Routes[i].Name() })
	bridges := names(len(s.Bridges), func(i int) string { return s.Bridges[i].Name() })

	if len(gas) != 1 || gas[0] != "etherscan" {
		t.Errorf("gas = %v", gas)
	}
	if len(routes) != 1 || routes[0] != "zeroex" {
		t.Errorf("routes = %v", routes)
	}
	// LI.FI works without a key; Socket does not.
	if len(bridges) != 1 || bridges[0] != "lifi" {
		t.Errorf("bridges = %v", bridges)
	}
}

func TestBuildSources_DisabledProvidersSkipped(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.Etherscan.Enabled = false
	cfg.Providers.LiFi.Enabled = false

	s, err := buildSources(cfg, provider.Deps{Log: logger.Nop()}, nil, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Gas) != 0 || len(s.Bridges) != 0 {
		t.Errorf("sources = %+v", s)
	}
}
