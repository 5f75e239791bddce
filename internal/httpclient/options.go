// Package httpclient provides an OTEL-instrumented JSON HTTP client for
// upstream quote APIs.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TraceOption selects which bodies are attached to spans.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

type clientOptions struct {
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	providerName   string
	roundTripper   http.RoundTripper
	requestTimeout time.Duration
	headers        map[string]string
	baseURL        string
	logRequest     bool
	logResponse    bool
	maskedHeaders  []string
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

// WithMeterProvider sets the OTEL meter provider.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(o *clientOptions) { o.meterProvider = mp }
}

// WithProviderName tags metrics and spans with the upstream provider.
func WithProviderName(name string) ClientOption {
	return func(o *clientOptions) { o.providerName = name }
}

// WithRoundTripper replaces the base transport. Tests use it to point at
// httptest servers.
func WithRoundTripper(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) { o.roundTripper = rt }
}

// WithRequestTimeout caps a single round trip.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) { o.requestTimeout = timeout }
}

// WithHeaders sets headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *clientOptions) { o.headers = headers }
}

// WithMaskedHeaders lists headers whose values are redacted in spans.
func WithMaskedHeaders(names ...string) ClientOption {
	return func(o *clientOptions) { o.maskedHeaders = names }
}

// WithBaseURL sets the prefix for relative paths.
func WithBaseURL(url string) ClientOption {
	return func(o *clientOptions) { o.baseURL = url }
}

// WithTraceOptions sets the tracer and enables body capture.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(o *clientOptions) {
		o.tracer = tracer
		for _, opt := range opts {
			switch opt {
			case TraceRequest:
				o.logRequest = true
			case TraceResponse:
				o.logResponse = true
			}
		}
	}
}

type requestOptions struct {
	errorHandler ResponseErrorHandler
	labels       []Label
}

// RequestOption configures a single request.
type RequestOption func(*requestOptions)

// ResponseErrorHandler decides whether a response is a failure. Returning
// nil accepts the response regardless of status.
type ResponseErrorHandler func(statusCode int, body []byte) error

// WithResponseErrorHandler overrides the default non-2xx check.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(o *requestOptions) { o.errorHandler = handler }
}

// Label is an extra metric attribute.
type Label struct {
	Key   string
	Value string
}

// NewLabel creates a Label.
func NewLabel(key, value string) Label {
	return Label{Key: key, Value: value}
}

// WithLabels adds metric attributes to the request.
func WithLabels(labels ...Label) RequestOption {
	return func(o *requestOptions) { o.labels = append(o.labels, labels...) }
}
