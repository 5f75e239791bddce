package quotes

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/fee-advisor/business/quotes/app"
	"github.com/fd1az/fee-advisor/business/quotes/infra/bridge"
	"github.com/fd1az/fee-advisor/business/quotes/infra/gas"
	"github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	"github.com/fd1az/fee-advisor/business/quotes/infra/route"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/config"
	"github.com/fd1az/fee-advisor/internal/logger"
)

// buildSources constructs every enabled adapter. A provider missing its API
// key is left out of the fan-out; any other construction error is returned.
// On-chain sources need eth, which may be nil.
func buildSources(cfg *config.Config, deps provider.Deps, eth *ethclient.Client, log logger.LoggerInterface) (app.Sources, error) {
	ctx := context.Background()
	var s app.Sources

	fetchCfg := func(name string, kind app.Kind) provider.Config {
		c := provider.DefaultConfig(name, string(kind))
		c.MaxAttempts = cfg.Aggregator.MaxAttempts
		c.AttemptTimeout = cfg.Aggregator.AttemptTimeout
		c.BaseDelay = cfg.Aggregator.BaseDelay
		if cfg.Aggregator.BreakerTrips > 0 {
			c.BreakerTrips = cfg.Aggregator.BreakerTrips
		}
		return c
	}

	// skip reports whether err only means the provider is unconfigured.
	skip := func(name string, err error) (bool, error) {
		if err == nil {
			return false, nil
		}
		if apperror.GetCode(err) == apperror.CodeConfiguration {
			log.Info(ctx, "provider excluded, no api key", "provider", name)
			return true, nil
		}
		return true, err
	}

	p := cfg.Providers

	if p.Etherscan.Enabled {
		src, err := gas.NewEtherscan(gas.EtherscanConfig{
			BaseURL: p.Etherscan.BaseURL, APIKey: p.Etherscan.APIKey, Fetch: fetchCfg("etherscan", app.KindGas),
		}, deps)
		if skipped, err := skip("etherscan", err); err != nil {
			return s, err
		} else if !skipped {
			s.Gas = append(s.Gas, src)
		}
	}
	if p.Blocknative.Enabled {
		src, err := gas.NewBlocknative(gas.BlocknativeConfig{
			BaseURL: p.Blocknative.BaseURL, APIKey: p.Blocknative.APIKey, Fetch: fetchCfg("blocknative", app.KindGas),
		}, deps)
		if skipped, err := skip("blocknative", err); err != nil {
			return s, err
		} else if !skipped {
			s.Gas = append(s.Gas, src)
		}
	}
	if eth != nil {
		src, err := gas.NewRPC(eth, cfg.Ethereum.FeeHistory, fetchCfg("rpc", app.KindGas), deps)
		if err != nil {
			return s, err
		}
		s.Gas = append(s.Gas, src)
	}

	if p.OneInch.Enabled {
		src, err := route.NewOneInch(route.HTTPConfig{
			BaseURL: p.OneInch.BaseURL, APIKey: p.OneInch.APIKey, Fetch: fetchCfg("oneinch", app.KindRoute),
		}, deps)
		if skipped, err := skip("oneinch", err); err != nil {
			return s, err
		} else if !skipped {
			s.Routes = append(s.Routes, src)
		}
	}
	if p.ZeroEx.Enabled {
		src, err := route.NewZeroEx(route.HTTPConfig{
			BaseURL: p.ZeroEx.BaseURL, APIKey: p.ZeroEx.APIKey, Fetch: fetchCfg("zeroex", app.KindRoute),
		}, deps)
		if skipped, err := skip("zeroex", err); err != nil {
			return s, err
		} else if !skipped {
			s.Routes = append(s.Routes, src)
		}
	}
	if eth != nil && cfg.Ethereum.QuoterAddress != "" {
		src, err := route.NewUniswap(eth, cfg.Ethereum.QuoterAddressHex(), fetchCfg("uniswap", app.KindRoute), deps)
		if err != nil {
			return s, err
		}
		s.Routes = append(s.Routes, src)
	}

	if p.LiFi.Enabled {
		src, err := bridge.NewLiFi(bridge.HTTPConfig{
			BaseURL: p.LiFi.BaseURL, APIKey: p.LiFi.APIKey, Fetch: fetchCfg("lifi", app.KindBridge),
		}, deps)
		if err != nil {
			return s, err
		}
		s.Bridges = append(s.Bridges, src)
	}
	if p.Socket.Enabled {
		src, err := bridge.NewSocket(bridge.HTTPConfig{
			BaseURL: p.Socket.BaseURL, APIKey: p.Socket.APIKey, Fetch: fetchCfg("socket", app.KindBridge),
		}, deps)
		if skipped, err := skip("socket", err); err != nil {
			return s, err
		} else if !skipped {
			s.Bridges = append(s.Bridges, src)
		}
	}

	return s, nil
}
