package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	quotesDI "github.com/fd1az/fee-advisor/business/quotes/di"
	"github.com/fd1az/fee-advisor/internal/events"
	"github.com/fd1az/fee-advisor/internal/health"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the eviction loop, health and metrics servers and the event sink until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	cfg, log := c.cfg, c.log
	log.Info(ctx, "starting fee advisor", "version", version, "environment", cfg.App.Environment)

	tel, err := setupTelemetry(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.shutdown(shutdownCtx); err != nil {
			log.Warn(ctx, "telemetry shutdown", "error", err)
		}
	}()
	if tel.metrics != nil {
		go tel.metrics.Serve(ctx, cfg.Telemetry.PrometheusPort, log)
	}

	mono, err := bootstrap(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer mono.Close()

	agg := quotesDI.GetAggregator(mono.Services())
	defer agg.Close()

	healthServer := health.NewServer(cfg.Health.Port, version, log)
	healthServer.RegisterReport(agg.CheckHealth)
	healthServer.Start(ctx)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		healthServer.Stop(shutdownCtx)
	}()

	if len(cfg.Events.KafkaBrokers) > 0 {
		sink := events.NewKafkaSink(events.NewKafkaWriter(events.KafkaConfig{
			Brokers: cfg.Events.KafkaBrokers,
			Topic:   cfg.Events.KafkaTopic,
		}), log)
		sub, unsubscribe := mono.Events().Subscribe(cfg.Events.BufferSize)
		defer unsubscribe()
		defer sink.Close()
		go sink.Run(ctx, sub)
		log.Info(ctx, "event sink started", "topic", cfg.Events.KafkaTopic, "brokers", cfg.Events.KafkaBrokers)
	}

	<-ctx.Done()
	log.Info(ctx, "shutting down", "dropped_events", mono.Events().Dropped())
	return nil
}
