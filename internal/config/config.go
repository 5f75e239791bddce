// Package config loads configuration from an optional YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Ethereum   EthereumConfig   `mapstructure:"ethereum"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Policy     PolicyConfig     `mapstructure:"policy"`
	Price      PriceConfig      `mapstructure:"price"`
	Events     EventsConfig     `mapstructure:"events"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Health     HealthConfig     `mapstructure:"health"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds the JSON-RPC endpoint used by on-chain sources.
// An empty RPCURL disables them.
type EthereumConfig struct {
	RPCURL        string `mapstructure:"rpc_url"`
	ChainID       uint64 `mapstructure:"chain_id"`
	QuoterAddress string `mapstructure:"quoter_address"`
	FeeHistory    int    `mapstructure:"fee_history_blocks"`
}

// QuoterAddressHex returns the Uniswap QuoterV2 address.
func (c *EthereumConfig) QuoterAddressHex() common.Address {
	return common.HexToAddress(c.QuoterAddress)
}

// ProviderConfig configures one upstream API.
type ProviderConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// ProvidersConfig lists every HTTP provider.
type ProvidersConfig struct {
	Etherscan   ProviderConfig `mapstructure:"etherscan"`
	Blocknative ProviderConfig `mapstructure:"blocknative"`
	OneInch     ProviderConfig `mapstructure:"oneinch"`
	ZeroEx      ProviderConfig `mapstructure:"zeroex"`
	LiFi        ProviderConfig `mapstructure:"lifi"`
	Socket      ProviderConfig `mapstructure:"socket"`
}

// AggregatorConfig holds fan-out and retry settings.
type AggregatorConfig struct {
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	BaseDelay      time.Duration `mapstructure:"base_delay"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	RateLimitRPM   int           `mapstructure:"rate_limit_rpm"`
	BreakerTrips   uint32        `mapstructure:"breaker_trips"`
}

// PolicyConfig holds decision thresholds.
type PolicyConfig struct {
	BridgeMinSavingsUSD float64       `mapstructure:"bridge_min_savings_usd"`
	WaitMinSavingsUSD   float64       `mapstructure:"wait_min_savings_usd"`
	WaitMinConfidence   float64       `mapstructure:"wait_min_confidence"`
	BlockInterval       time.Duration `mapstructure:"block_interval"`
	BridgeConfidence    float64       `mapstructure:"bridge_confidence"`
}

// PriceConfig holds the static price oracle values.
type PriceConfig struct {
	NativeUSD  string `mapstructure:"native_usd"`
	RateFactor string `mapstructure:"rate_factor"`
}

// NativeUSDDecimal parses NativeUSD; Validate guarantees it parses.
func (c *PriceConfig) NativeUSDDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.NativeUSD)
}

// RateFactorDecimal parses RateFactor; Validate guarantees it parses.
func (c *PriceConfig) RateFactorDecimal() decimal.Decimal {
	return decimal.RequireFromString(c.RateFactor)
}

// EventsConfig holds the optional Kafka sink. No brokers disables it.
type EventsConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
	BufferSize   int      `mapstructure:"buffer_size"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	TraceProvider  string `mapstructure:"trace_provider"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
}

// HealthConfig holds the health server port.
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("FEE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	v.BindEnv("app.name", "FEE_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "FEE_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "FEE_LOG_LEVEL", "LOG_LEVEL")

	v.BindEnv("ethereum.rpc_url", "FEE_ETH_RPC_URL", "ETH_RPC_URL")
	v.BindEnv("ethereum.chain_id", "FEE_ETH_CHAIN_ID", "ETH_CHAIN_ID")

	v.BindEnv("providers.etherscan.api_key", "FEE_ETHERSCAN_API_KEY", "ETHERSCAN_API_KEY")
	v.BindEnv("providers.blocknative.api_key", "FEE_BLOCKNATIVE_API_KEY", "BLOCKNATIVE_API_KEY")
	v.BindEnv("providers.oneinch.api_key", "FEE_ONEINCH_API_KEY", "ONEINCH_API_KEY")
	v.BindEnv("providers.zeroex.api_key", "FEE_ZEROEX_API_KEY", "ZEROEX_API_KEY")
	v.BindEnv("providers.lifi.api_key", "FEE_LIFI_API_KEY", "LIFI_API_KEY")
	v.BindEnv("providers.socket.api_key", "FEE_SOCKET_API_KEY", "SOCKET_API_KEY")

	v.BindEnv("price.native_usd", "FEE_NATIVE_USD", "NATIVE_USD")

	v.BindEnv("events.kafka_brokers", "FEE_KAFKA_BROKERS", "KAFKA_BROKERS")
	v.BindEnv("events.kafka_topic", "FEE_KAFKA_TOPIC", "KAFKA_TOPIC")

	v.BindEnv("telemetry.enabled", "FEE_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "FEE_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "FEE_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.otlp_headers", "FEE_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fee-advisor")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.quoter_address", "0x61fFE014bA17989E743c5F6cB21bF9697530B21e")
	v.SetDefault("ethereum.fee_history_blocks", 20)

	v.SetDefault("providers.etherscan.enabled", true)
	v.SetDefault("providers.etherscan.base_url", "https://api.etherscan.io")
	v.SetDefault("providers.blocknative.enabled", true)
	v.SetDefault("providers.blocknative.base_url", "https://api.blocknative.com")
	v.SetDefault("providers.oneinch.enabled", true)
	v.SetDefault("providers.oneinch.base_url", "https://api.1inch.dev")
	v.SetDefault("providers.zeroex.enabled", true)
	v.SetDefault("providers.zeroex.base_url", "https://api.0x.org")
	v.SetDefault("providers.lifi.enabled", true)
	v.SetDefault("providers.lifi.base_url", "https://li.quest")
	v.SetDefault("providers.socket.enabled", true)
	v.SetDefault("providers.socket.base_url", "https://api.socket.tech")

	v.SetDefault("aggregator.request_timeout", "10s")
	v.SetDefault("aggregator.attempt_timeout", "3s")
	v.SetDefault("aggregator.max_attempts", 3)
	v.SetDefault("aggregator.base_delay", "200ms")
	v.SetDefault("aggregator.cache_ttl", "30s")
	v.SetDefault("aggregator.rate_limit_rpm", 120)
	v.SetDefault("aggregator.breaker_trips", 5)

	v.SetDefault("policy.bridge_min_savings_usd", 5)
	v.SetDefault("policy.wait_min_savings_usd", 2)
	v.SetDefault("policy.wait_min_confidence", 0.7)
	v.SetDefault("policy.block_interval", "12s")
	v.SetDefault("policy.bridge_confidence", 0.85)

	v.SetDefault("price.native_usd", "3000")
	v.SetDefault("price.rate_factor", "1000000000")

	v.SetDefault("events.kafka_topic", "fee-advisor.events")
	v.SetDefault("events.buffer_size", 256)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "fee-advisor")
	v.SetDefault("telemetry.trace_provider", "zipkin")
	v.SetDefault("telemetry.prometheus_port", 9090)

	v.SetDefault("health.port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Ethereum.QuoterAddress != "" && !common.IsHexAddress(c.Ethereum.QuoterAddress) {
		return fmt.Errorf("invalid ethereum.quoter_address: %s", c.Ethereum.QuoterAddress)
	}
	if c.Aggregator.MaxAttempts < 1 {
		return fmt.Errorf("aggregator.max_attempts must be at least 1")
	}
	if c.Aggregator.AttemptTimeout <= 0 || c.Aggregator.RequestTimeout <= 0 {
		return fmt.Errorf("aggregator timeouts must be positive")
	}
	if c.Aggregator.CacheTTL <= 0 {
		return fmt.Errorf("aggregator.cache_ttl must be positive")
	}
	if c.Policy.WaitMinConfidence < 0 || c.Policy.WaitMinConfidence > 1 {
		return fmt.Errorf("policy.wait_min_confidence must be within [0,1]")
	}
	if c.Policy.BridgeConfidence < 0 || c.Policy.BridgeConfidence > 1 {
		return fmt.Errorf("policy.bridge_confidence must be within [0,1]")
	}
	for name, s := range map[string]string{"price.native_usd": c.Price.NativeUSD, "price.rate_factor": c.Price.RateFactor} {
		d, err := decimal.NewFromString(s)
		if err != nil || !d.IsPositive() {
			return fmt.Errorf("%s must be a positive number, got %q", name, s)
		}
	}
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return fmt.Errorf("events.kafka_topic is required when brokers are set")
	}
	return nil
}
