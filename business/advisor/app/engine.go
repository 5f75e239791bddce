package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fee-advisor/business/advisor/domain"
	quotesApp "github.com/fd1az/fee-advisor/business/quotes/app"
	quotesDomain "github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/events"
	"github.com/fd1az/fee-advisor/internal/logger"
)

const (
	tracerName = "github.com/fd1az/fee-advisor/business/advisor/app"
	meterName  = "github.com/fd1az/fee-advisor/business/advisor/app"
)

// State is a step of one Recommend call.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateAggregated  State = "aggregated"
	StateAnalyzing   State = "analyzing"
	StateRecommended State = "recommended"
	StateFailed      State = "failed"
)

type engineMetrics struct {
	recommendations metric.Int64Counter
	failures        metric.Int64Counter
	duration        metric.Float64Histogram
}

// Engine produces one Recommendation per call. It holds no per-call state and
// never retries.
type Engine struct {
	quotes  quotesApp.QuoteProvider
	policy  domain.Policy
	pub     events.Publisher
	log     logger.LoggerInterface
	now     func() time.Time
	tracer  trace.Tracer
	metrics *engineMetrics
}

// NewEngine creates an Engine. A nil publisher drops notifications.
func NewEngine(quotes quotesApp.QuoteProvider, policy domain.Policy, pub events.Publisher, log logger.LoggerInterface) (*Engine, error) {
	if pub == nil {
		pub = events.Nop{}
	}
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		quotes: quotes,
		policy: policy,
		pub:    pub,
		log:    log,
		now:    time.Now,
		tracer: otel.Tracer(tracerName),
	}
	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return e, nil
}

func (e *Engine) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error
	e.metrics = &engineMetrics{}

	e.metrics.recommendations, err = meter.Int64Counter(
		"recommendations_total",
		metric.WithDescription("Recommendations produced by action"),
		metric.WithUnit("{recommendation}"),
	)
	if err != nil {
		return err
	}

	e.metrics.failures, err = meter.Int64Counter(
		"analysis_failures_total",
		metric.WithDescription("Failed analyses by error code"),
		metric.WithUnit("{analysis}"),
	)
	if err != nil {
		return err
	}

	e.metrics.duration, err = meter.Float64Histogram(
		"analysis_duration_ms",
		metric.WithDescription("End-to-end Recommend latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// Policy returns the thresholds in use.
func (e *Engine) Policy() domain.Policy {
	return e.policy
}

// Recommend validates req and price, fetches a bundle and decides. Validation
// failures return before any provider is called.
func (e *Engine) Recommend(ctx context.Context, req quotesDomain.TradeRequest, price domain.PriceInput) (*domain.Recommendation, error) {
	analysisID := uuid.NewString()
	start := e.now()

	ctx, span := e.tracer.Start(ctx, "advisor.recommend",
		trace.WithAttributes(
			attribute.String("analysis_id", analysisID),
			attribute.String("source_chain", req.SourceChain),
			attribute.Bool("bridge_leg", req.HasBridgeLeg()),
		),
	)
	defer span.End()

	e.transition(ctx, span, analysisID, StateIdle)

	fail := func(err error) (*domain.Recommendation, error) {
		e.transition(ctx, span, analysisID, StateFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		e.metrics.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(apperror.GetCode(err)))))
		e.log.Warn(ctx, "analysis failed", "analysis_id", analysisID, "error", err)
		e.pub.Publish(events.Event{Kind: events.KindAnalysisFailed, Err: err, At: e.now()})
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return fail(err)
	}
	if err := price.Validate(); err != nil {
		return fail(err)
	}

	e.transition(ctx, span, analysisID, StateFetching)
	bundle, err := e.quotes.GetComprehensiveQuote(ctx, req)
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			err = apperror.New(apperror.CodeAnalysisFailure, apperror.WithContext("fetch quotes"), apperror.WithCause(err))
		}
		return fail(err)
	}
	e.transition(ctx, span, analysisID, StateAggregated)
	span.SetAttributes(
		attribute.Int("gas_quotes", len(bundle.GasQuotes)),
		attribute.Int("route_quotes", len(bundle.RouteQuotes)),
		attribute.Int("bridge_quotes", len(bundle.BridgeQuotes)),
	)

	e.transition(ctx, span, analysisID, StateAnalyzing)
	rec, err := Decide(bundle, price, e.policy)
	if err != nil {
		return fail(err)
	}
	rec.AnalysisID = analysisID
	rec.GeneratedAt = e.now()

	e.transition(ctx, span, analysisID, StateRecommended)
	span.SetAttributes(
		attribute.String("action", string(rec.Action)),
		attribute.String("savings_usd", rec.SavingsUSD.StringFixed(2)),
	)
	span.SetStatus(codes.Ok, "recommended")
	e.metrics.recommendations.Add(ctx, 1, metric.WithAttributes(attribute.String("action", string(rec.Action))))
	e.metrics.duration.Record(ctx, float64(e.now().Sub(start).Milliseconds()))

	e.log.Info(ctx, "recommendation ready",
		"analysis_id", analysisID,
		"action", rec.Action,
		"savings_usd", rec.SavingsUSD.StringFixed(2),
		"confidence", rec.Confidence,
	)
	e.pub.Publish(events.Event{Kind: events.KindAnalysisComplete, Payload: *rec, At: rec.GeneratedAt})
	return rec, nil
}

func (e *Engine) transition(ctx context.Context, span trace.Span, analysisID string, s State) {
	span.AddEvent("state", trace.WithAttributes(attribute.String("state", string(s))))
	e.log.Debug(ctx, "analysis state", "analysis_id", analysisID, "state", s)
}
