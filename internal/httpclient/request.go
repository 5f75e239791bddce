package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/fee-advisor/internal/apperror"
)

const maxErrorBody = 256

// Request builds and executes one HTTP call.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)

	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	SetResult(result any) Request
}

// Response wraps http.Response with the already-read body.
type Response struct {
	*http.Response
	body []byte
}

// Body returns the raw response body.
func (r *Response) Body() []byte {
	return r.body
}

// DefaultErrorHandler rejects any non-2xx status with CodeProviderHTTPError.
func DefaultErrorHandler(provider string) ResponseErrorHandler {
	return func(status int, body []byte) error {
		if status >= 200 && status < 300 {
			return nil
		}
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return apperror.New(apperror.CodeProviderHTTPError,
			apperror.WithContext(fmt.Sprintf("%s: status %d: %s", provider, status, snippet)))
	}
}

type requestBuilder struct {
	c            *InstrumentedClient
	headers      map[string]string
	query        url.Values
	body         any
	result       any
	errorHandler ResponseErrorHandler
	labels       []Label
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, path)
}

// SetBody sets the body; structs and maps are JSON encoded.
func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = url.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetResult sets the JSON decode target. A body that does not decode is an
// error.
func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

func (r *requestBuilder) execute(ctx context.Context, method, path string) (*Response, error) {
	opts := r.c.opts
	fullURL := path
	if opts.baseURL != "" && !strings.HasPrefix(path, "http") {
		fullURL = strings.TrimSuffix(opts.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + r.query.Encode()
	}

	ctx, span := r.c.tracer.Start(ctx, "http.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
			attribute.String("provider", opts.providerName),
		),
	)
	defer span.End()

	bodyReader, err := r.encodeBody(span)
	if err != nil {
		return nil, r.fail(ctx, span, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, r.fail(ctx, span, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	r.traceHeaders(span, req.Header)

	start := time.Now()
	resp, err := r.c.client.Do(req)
	r.c.latency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(r.attrs()...))
	if err != nil {
		return nil, r.fail(ctx, span, err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, r.fail(ctx, span, fmt.Errorf("read body: %w", err))
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if opts.logResponse {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(body))))
	}
	response := &Response{Response: resp, body: body}

	if err := r.errorHandler(resp.StatusCode, body); err != nil {
		return response, r.fail(ctx, span, err)
	}

	if r.result != nil {
		if err := json.Unmarshal(body, r.result); err != nil {
			return response, r.fail(ctx, span, apperror.New(apperror.CodeInvalidFormat,
				apperror.WithContext(opts.providerName), apperror.WithCause(err)))
		}
	}

	r.record(ctx, true)
	return response, nil
}

func (r *requestBuilder) encodeBody(span trace.Span) (io.Reader, error) {
	if r.body == nil {
		return nil, nil
	}
	var raw []byte
	switch b := r.body.(type) {
	case []byte:
		raw = b
	case string:
		raw = []byte(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		raw = encoded
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
	}
	if r.c.opts.logRequest {
		span.AddEvent("request.body", trace.WithAttributes(attribute.String("http.request_body", string(raw))))
	}
	return bytes.NewReader(raw), nil
}

func (r *requestBuilder) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
	span.SetStatus(codes.Error, err.Error())
	r.record(ctx, false)
	return err
}

func (r *requestBuilder) attrs() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(r.labels)+1)
	attrs = append(attrs, attribute.String("provider", r.c.opts.providerName))
	for _, l := range r.labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	return attrs
}

func (r *requestBuilder) record(ctx context.Context, success bool) {
	attrs := append(r.attrs(), attribute.Bool("success", success))
	r.c.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (r *requestBuilder) traceHeaders(span trace.Span, headers http.Header) {
	if len(r.c.opts.maskedHeaders) == 0 && !r.c.opts.logRequest {
		return
	}
	masked := make(map[string]bool, len(r.c.opts.maskedHeaders))
	for _, h := range r.c.opts.maskedHeaders {
		masked[strings.ToLower(h)] = true
	}
	attrs := make([]attribute.KeyValue, 0, len(headers))
	for k := range headers {
		key := strings.ToLower(k)
		val := headers.Get(k)
		if masked[key] {
			val = "*****"
		}
		attrs = append(attrs, attribute.String("http.request.header."+key, val))
	}
	span.AddEvent("request.headers", trace.WithAttributes(attrs...))
}
