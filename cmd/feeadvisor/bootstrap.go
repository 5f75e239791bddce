package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/fd1az/fee-advisor/business/advisor"
	"github.com/fd1az/fee-advisor/business/quotes"
	"github.com/fd1az/fee-advisor/internal/apm"
	"github.com/fd1az/fee-advisor/internal/config"
	"github.com/fd1az/fee-advisor/internal/logger"
	"github.com/fd1az/fee-advisor/internal/metrics"
	"github.com/fd1az/fee-advisor/internal/monolith"
)

// container is the part of the monolith the commands drive.
type container interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

// bootstrap builds the container and starts modules in dependency order.
func bootstrap(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (container, error) {
	mono, err := monolith.New(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create monolith: %w", err)
	}

	modules := []monolith.Module{
		&quotes.Module{},  // Must be first - provides the quote provider
		&advisor.Module{}, // Depends on quotes
	}

	if err := mono.RegisterModules(modules...); err != nil {
		mono.Close()
		return nil, fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		mono.Close()
		return nil, fmt.Errorf("failed to start modules: %w", err)
	}
	return mono, nil
}

// telemetry owns the trace and meter providers. Both are nil when disabled.
type telemetry struct {
	traces  apm.TraceProvider
	metrics *metrics.Provider
}

func setupTelemetry(ctx context.Context, cfg *config.Config, log logger.LoggerInterface) (*telemetry, error) {
	t := &telemetry{}
	if !cfg.Telemetry.Enabled {
		return t, nil
	}

	tp, err := apm.NewTraceProvider(ctx, apm.Config{
		Provider:    apm.Provider(cfg.Telemetry.TraceProvider),
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Headers:     cfg.Telemetry.OTLPHeaders,
	}, log)
	if err != nil {
		return nil, err
	}
	t.traces = tp

	mp, err := metrics.NewProvider(ctx, metrics.Config{ServiceName: cfg.Telemetry.ServiceName})
	if err != nil {
		tp.Stop()
		return nil, err
	}
	t.metrics = mp
	return t, nil
}

func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	if t.metrics != nil {
		errs = append(errs, t.metrics.Shutdown(ctx))
	}
	if t.traces != nil {
		errs = append(errs, t.traces.Stop())
	}
	return errors.Join(errs...)
}
