package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ETHERSCAN_API_KEY", "from-env")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Aggregator.CacheTTL != 30*time.Second || cfg.Aggregator.MaxAttempts != 3 {
		t.Errorf("aggregator defaults = %+v", cfg.Aggregator)
	}
	if cfg.Policy.BridgeMinSavingsUSD != 5 || cfg.Policy.WaitMinConfidence != 0.7 {
		t.Errorf("policy defaults = %+v", cfg.Policy)
	}
	if cfg.Providers.Etherscan.APIKey != "from-env" {
		t.Errorf("etherscan key = %q, want from-env", cfg.Providers.Etherscan.APIKey)
	}
	if len(cfg.Events.KafkaBrokers) != 2 {
		t.Errorf("kafka brokers = %v", cfg.Events.KafkaBrokers)
	}
	if !cfg.Price.RateFactorDecimal().Equal(decimal.NewFromInt(1_000_000_000)) {
		t.Errorf("rate factor = %s", cfg.Price.RateFactor)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for an explicit path that does not exist")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte(`
aggregator:
  request_timeout: 4s
  max_attempts: 2
policy:
  bridge_min_savings_usd: 10
providers:
  lifi:
    enabled: false
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Aggregator.RequestTimeout != 4*time.Second || cfg.Aggregator.MaxAttempts != 2 {
		t.Errorf("aggregator = %+v", cfg.Aggregator)
	}
	if cfg.Policy.BridgeMinSavingsUSD != 10 {
		t.Errorf("bridge min = %v", cfg.Policy.BridgeMinSavingsUSD)
	}
	if cfg.Providers.LiFi.Enabled {
		t.Error("lifi should be disabled")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Ethereum:   EthereumConfig{QuoterAddress: "0x61fFE014bA17989E743c5F6cB21bF9697530B21e"},
			Aggregator: AggregatorConfig{MaxAttempts: 3, AttemptTimeout: time.Second, RequestTimeout: time.Second, CacheTTL: time.Second},
			Policy:     PolicyConfig{WaitMinConfidence: 0.7, BridgeConfidence: 0.85},
			Price:      PriceConfig{NativeUSD: "3000", RateFactor: "1000000000"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad quoter", func(c *Config) { c.Ethereum.QuoterAddress = "nope" }},
		{"zero attempts", func(c *Config) { c.Aggregator.MaxAttempts = 0 }},
		{"confidence out of range", func(c *Config) { c.Policy.WaitMinConfidence = 1.5 }},
		{"zero price", func(c *Config) { c.Price.NativeUSD = "0" }},
		{"garbage factor", func(c *Config) { c.Price.RateFactor = "abc" }},
		{"brokers without topic", func(c *Config) { c.Events.KafkaBrokers = []string{"localhost:9092"} }},
	}

	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
