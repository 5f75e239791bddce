// Package provider holds the retry, timeout, breaker and rate-limit mechanics
// every quote source runs its upstream calls through.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/circuitbreaker"
	"github.com/fd1az/fee-advisor/internal/events"
	"github.com/fd1az/fee-advisor/internal/logger"
	"github.com/fd1az/fee-advisor/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/fee-advisor/business/quotes/infra/provider"
	meterName  = "github.com/fd1az/fee-advisor/business/quotes/infra/provider"
)

// errCallerDone marks an attempt that failed because the caller's context
// ended, not because the provider misbehaved. The breaker ignores it.
var errCallerDone = errors.New("caller context done")

// Config controls one provider's retry budget.
type Config struct {
	Name           string
	EndpointKind   string
	MaxAttempts    int
	AttemptTimeout time.Duration
	// BaseDelay is multiplied by the attempt number between attempts.
	BaseDelay time.Duration
	// BreakerTrips is the consecutive-failure count that opens the breaker.
	BreakerTrips uint32
}

// DefaultConfig returns three attempts of 3s with 200ms linear backoff.
func DefaultConfig(name, endpointKind string) Config {
	return Config{
		Name:           name,
		EndpointKind:   endpointKind,
		MaxAttempts:    3,
		AttemptTimeout: 3 * time.Second,
		BaseDelay:      200 * time.Millisecond,
		BreakerTrips:   5,
	}
}

// Deps are shared across fetchers.
type Deps struct {
	Log      logger.LoggerInterface
	Events   events.Publisher
	Limiters *ratelimit.Registry
}

type fetcherMetrics struct {
	attempts metric.Int64Counter
	latency  metric.Float64Histogram
}

// Fetcher runs attempts for a single provider.
type Fetcher[Q any] struct {
	cfg     Config
	log     logger.LoggerInterface
	pub     events.Publisher
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[Q]
	tracer  trace.Tracer
	metrics *fetcherMetrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewFetcher builds a Fetcher. Missing deps fall back to no-ops.
func NewFetcher[Q any](cfg Config, deps Deps) (*Fetcher[Q], error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}

	limiter := ratelimit.New(0)
	if deps.Limiters != nil {
		limiter = deps.Limiters.For(cfg.Name)
	}

	cbCfg := circuitbreaker.DefaultConfig(cfg.Name)
	if cfg.BreakerTrips > 0 {
		cbCfg.FailureThreshold = cfg.BreakerTrips
	}
	cbCfg.OnStateChange = func(name, from, to string) {
		deps.Log.Warn(context.Background(), "provider breaker state changed", "provider", name, "from", from, "to", to)
	}
	cbCfg.IsExcluded = func(err error) bool {
		return errors.Is(err, errCallerDone)
	}

	f := &Fetcher[Q]{
		cfg:     cfg,
		log:     deps.Log,
		pub:     deps.Events,
		limiter: limiter,
		cb:      circuitbreaker.New[Q](cbCfg),
		tracer:  otel.Tracer(tracerName),
		sleep:   sleepCtx,
	}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return f, nil
}

func (f *Fetcher[Q]) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	f.metrics = &fetcherMetrics{}

	f.metrics.attempts, err = meter.Int64Counter(
		"provider_attempts_total",
		metric.WithDescription("Provider fetch attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	f.metrics.latency, err = meter.Float64Histogram(
		"provider_attempt_duration_ms",
		metric.WithDescription("Provider attempt latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// Name returns the provider name.
func (f *Fetcher[Q]) Name() string {
	return f.cfg.Name
}

// Do runs fn up to MaxAttempts times. After failed attempt k it waits
// k*BaseDelay. On exhaustion the last error is the cause of a
// ProviderUnavailable error.
func (f *Fetcher[Q]) Do(ctx context.Context, fn func(ctx context.Context) (Q, error)) (Q, error) {
	var zero Q
	ctx, span := f.tracer.Start(ctx, "provider.fetch",
		trace.WithAttributes(
			attribute.String("provider", f.cfg.Name),
			attribute.String("endpoint_kind", f.cfg.EndpointKind),
		),
	)
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		q, err := f.attempt(ctx, attempt, fn)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			span.SetStatus(codes.Ok, "fetched")
			return q, nil
		}
		lastErr = err

		if attempt < f.cfg.MaxAttempts {
			if err := f.sleep(ctx, time.Duration(attempt)*f.cfg.BaseDelay); err != nil {
				lastErr = err
				break
			}
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, "provider unavailable")
	f.log.Warn(ctx, "provider unavailable", "provider", f.cfg.Name, "kind", f.cfg.EndpointKind, "error", lastErr)
	return zero, apperror.New(apperror.CodeProviderUnavailable,
		apperror.WithContext(f.cfg.Name),
		apperror.WithCause(lastErr))
}

func (f *Fetcher[Q]) attempt(ctx context.Context, n int, fn func(ctx context.Context) (Q, error)) (Q, error) {
	actx, cancel := context.WithTimeout(ctx, f.cfg.AttemptTimeout)
	defer cancel()

	start := time.Now()
	q, err := f.run(ctx, actx, fn)
	elapsed := float64(time.Since(start).Milliseconds())

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", f.cfg.Name),
		attribute.String("outcome", outcome),
	)
	f.metrics.attempts.Add(ctx, 1, attrs)
	f.metrics.latency.Record(ctx, elapsed, attrs)

	e := events.Event{Provider: f.cfg.Name, EndpointKind: f.cfg.EndpointKind, Attempt: n}
	if err != nil {
		e.Kind = events.KindProviderFailure
		e.Err = err
		f.log.Debug(ctx, "provider attempt failed", "provider", f.cfg.Name, "attempt", n, "error", err)
	} else {
		e.Kind = events.KindProviderSuccess
		e.Payload = q
	}
	f.pub.Publish(e)

	return q, err
}

// run executes one attempt on actx, which is parent bounded by the attempt
// timeout. Failures seen after parent is done are not charged to the breaker;
// an expired attempt timeout is.
func (f *Fetcher[Q]) run(parent, actx context.Context, fn func(ctx context.Context) (Q, error)) (Q, error) {
	if err := f.limiter.Wait(actx); err != nil {
		var zero Q
		return zero, apperror.New(apperror.CodeRateLimitExceeded, apperror.WithContext(f.cfg.Name), apperror.WithCause(err))
	}
	return f.cb.Execute(func() (Q, error) {
		q, err := fn(actx)
		if err != nil && parent.Err() != nil {
			return q, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return q, err
	})
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
