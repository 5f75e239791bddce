package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive   = 10 * time.Second
	defaultRequestTimeout  = 10 * time.Second
	defaultMaxConnsPerHost = 8
	defaultIdleConnTimeout = 2 * time.Minute

	metricRequestCounter = "http_client_requests_total"
	metricRequestLatency = "http_client_request_duration_ms"
)

// Client builds requests against a single upstream.
type Client interface {
	NewRequest(opts ...RequestOption) Request
	ProviderName() string
}

// InstrumentedClient wraps http.Client with OTEL tracing and metrics.
type InstrumentedClient struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	latency        metric.Float64Histogram
	tracer         trace.Tracer
	opts           clientOptions
}

var _ Client = (*InstrumentedClient)(nil)

// NewInstrumentedClient creates a client from options.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	o := clientOptions{requestTimeout: defaultRequestTimeout, providerName: "default"}
	for _, opt := range opts {
		opt(&o)
	}

	base := o.roundTripper
	if base == nil {
		base = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			DialContext:     (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
			MaxConnsPerHost: defaultMaxConnsPerHost,
			IdleConnTimeout: defaultIdleConnTimeout,
		}
	}

	httpClient := &http.Client{
		Timeout: o.requestTimeout,
		Transport: otelhttp.NewTransport(base,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}

	mp := o.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("instrumented_http_client",
		metric.WithInstrumentationAttributes(attribute.String("provider", o.providerName)))

	counter, err := meter.Int64Counter(metricRequestCounter,
		metric.WithDescription("Total number of upstream HTTP requests"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(metricRequestLatency,
		metric.WithDescription("Upstream HTTP request latency"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	tracer := o.tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer("instrumented_http_client")
	}

	return &InstrumentedClient{
		client:         httpClient,
		requestCounter: counter,
		latency:        latency,
		tracer:         tracer,
		opts:           o,
	}, nil
}

// ProviderName returns the provider tag.
func (c *InstrumentedClient) ProviderName() string {
	return c.opts.providerName
}

// NewRequest starts a request builder.
func (c *InstrumentedClient) NewRequest(opts ...RequestOption) Request {
	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.errorHandler == nil {
		ro.errorHandler = DefaultErrorHandler(c.opts.providerName)
	}

	headers := make(map[string]string, len(c.opts.headers))
	for k, v := range c.opts.headers {
		headers[k] = v
	}

	return &requestBuilder{
		c:            c,
		headers:      headers,
		errorHandler: ro.errorHandler,
		labels:       ro.labels,
	}
}
