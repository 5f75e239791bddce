package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/fee-advisor/business/advisor/domain"
	quotesDomain "github.com/fd1az/fee-advisor/business/quotes/domain"
	"github.com/fd1az/fee-advisor/internal/apperror"
	"github.com/fd1az/fee-advisor/internal/events"
	"github.com/fd1az/fee-advisor/internal/logger"
)

// mockLogger implements logger.LoggerInterface for testing.
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

type fakeQuotes struct {
	bundle quotesDomain.QuoteBundle
	err    error
	calls  int
}

func (f *fakeQuotes) GetComprehensiveQuote(context.Context, quotesDomain.TradeRequest) (quotesDomain.QuoteBundle, error) {
	f.calls++
	return f.bundle, f.err
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

func validRequest() quotesDomain.TradeRequest {
	return quotesDomain.TradeRequest{
		FromTokenID:          "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		ToTokenID:            "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Amount:               "1000000000000000000",
		SourceChain:          "ethereum",
		SlippageToleranceBps: 50,
		PriorityTier:         quotesDomain.PriorityStandard,
	}
}

func newEngine(t *testing.T, q *fakeQuotes, pub events.Publisher) *Engine {
	t.Helper()
	e, err := NewEngine(q, domain.DefaultPolicy(), pub, &mockLogger{})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestEngine_RecommendPublishesComplete(t *testing.T) {
	q := &fakeQuotes{bundle: quotesDomain.QuoteBundle{
		GasQuotes:    []quotesDomain.GasQuote{flatGas("etherscan", "50")},
		RouteQuotes:  []quotesDomain.RouteQuote{routeQuote("oneinch", "1000")},
		BridgeQuotes: []quotesDomain.BridgeQuote{{Provider: "lifi", TotalCostUSD: d("8")}},
	}}
	rec := &recorder{}
	e := newEngine(t, q, rec)

	got, err := e.Recommend(context.Background(), validRequest(), testPrice())
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if got.Action != domain.ActionUseBridge {
		t.Errorf("action = %s", got.Action)
	}
	if _, err := uuid.Parse(got.AnalysisID); err != nil {
		t.Errorf("analysis id %q: %v", got.AnalysisID, err)
	}
	if got.GeneratedAt.IsZero() {
		t.Error("GeneratedAt not set")
	}

	kinds := rec.kinds()
	if len(kinds) != 1 || kinds[0] != events.KindAnalysisComplete {
		t.Fatalf("events = %v", kinds)
	}
	published, ok := rec.events[0].Payload.(domain.Recommendation)
	if !ok || published.AnalysisID != got.AnalysisID {
		t.Fatalf("payload = %#v, want a copy of the returned recommendation", rec.events[0].Payload)
	}
	got.Action = domain.ActionWait
	got.SavingsUSD = decimal.NewFromInt(-1)
	if published.Action != domain.ActionUseBridge || published.SavingsUSD.IsNegative() {
		t.Error("mutating the returned recommendation changed the published event")
	}
}

func TestEngine_InvalidInputSkipsFetch(t *testing.T) {
	tests := []struct {
		name  string
		req   func() quotesDomain.TradeRequest
		price domain.PriceInput
	}{
		{
			name:  "missing token",
			req:   func() quotesDomain.TradeRequest { r := validRequest(); r.FromTokenID = ""; return r },
			price: testPrice(),
		},
		{
			name:  "zero amount",
			req:   func() quotesDomain.TradeRequest { r := validRequest(); r.Amount = "0"; return r },
			price: testPrice(),
		},
		{
			name:  "zero factor",
			req:   validRequest,
			price: domain.PriceInput{NativeToUSD: d("2000")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuotes{}
			rec := &recorder{}
			e := newEngine(t, q, rec)

			_, err := e.Recommend(context.Background(), tt.req(), tt.price)
			if !errors.Is(err, apperror.ErrInvalidInput) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
			if q.calls != 0 {
				t.Error("quotes fetched for invalid input")
			}
			if kinds := rec.kinds(); len(kinds) != 1 || kinds[0] != events.KindAnalysisFailed {
				t.Errorf("events = %v", kinds)
			}
		})
	}
}

func TestEngine_TotalOutageIsInsufficientData(t *testing.T) {
	q := &fakeQuotes{bundle: quotesDomain.QuoteBundle{
		RouteQuotes: []quotesDomain.RouteQuote{routeQuote("oneinch", "1")},
	}}
	rec := &recorder{}
	e := newEngine(t, q, rec)

	_, err := e.Recommend(context.Background(), validRequest(), testPrice())
	if !errors.Is(err, apperror.ErrInsufficientData) {
		t.Fatalf("err = %v", err)
	}
	if len(rec.events) != 1 || !errors.Is(rec.events[0].Err, apperror.ErrInsufficientData) {
		t.Errorf("events = %+v", rec.events)
	}
}

func TestEngine_FetchErrorWrapped(t *testing.T) {
	q := &fakeQuotes{err: context.DeadlineExceeded}
	e := newEngine(t, q, nil)

	_, err := e.Recommend(context.Background(), validRequest(), testPrice())
	if !errors.Is(err, apperror.ErrAnalysisFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}

func TestEngine_NoRetry(t *testing.T) {
	q := &fakeQuotes{}
	e := newEngine(t, q, nil)

	e.Recommend(context.Background(), validRequest(), testPrice())
	if q.calls != 1 {
		t.Errorf("calls = %d, want 1", q.calls)
	}
}

func TestStaticPriceOracle(t *testing.T) {
	if _, err := NewStaticPriceOracle(domain.PriceInput{}); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Errorf("err = %v", err)
	}
	o, err := NewStaticPriceOracle(testPrice())
	if err != nil {
		t.Fatal(err)
	}
	p, _ := o.Price(context.Background())
	if !p.NativeToUSD.Equal(d("2000")) {
		t.Errorf("price = %+v", p)
	}
}
