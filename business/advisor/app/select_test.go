package app

import (
	"testing"

	quotesDomain "github.com/fd1az/fee-advisor/business/quotes/domain"
)

func TestSelectBestGas(t *testing.T) {
	quotes := []quotesDomain.GasQuote{
		flatGas("a", "30"), flatGas("b", "12.5"), flatGas("c", "12.5"), flatGas("d", "40"),
	}
	best, ok := SelectBestGas(quotes)
	if !ok || best.Provider != "b" {
		t.Fatalf("best = %s, ok = %v", best.Provider, ok)
	}
	for _, q := range quotes {
		if q.StandardRate.LessThan(best.StandardRate) {
			t.Errorf("%s has a lower rate than the selection", q.Provider)
		}
	}

	if _, ok := SelectBestGas(nil); ok {
		t.Error("empty slice should report !ok")
	}
}

func TestSelectBestRoute(t *testing.T) {
	tests := []struct {
		name        string
		quotes      []quotesDomain.RouteQuote
		want        string
		wantOK      bool
		wantSkipped int
	}{
		{
			name:   "highest output wins",
			quotes: []quotesDomain.RouteQuote{routeQuote("a", "100"), routeQuote("b", "250"), routeQuote("c", "99")},
			want:   "b", wantOK: true,
		},
		{
			name:   "tie keeps first",
			quotes: []quotesDomain.RouteQuote{routeQuote("a", "7"), routeQuote("b", "7")},
			want:   "a", wantOK: true,
		},
		{
			name:   "bad amounts excluded, not zeroed",
			quotes: []quotesDomain.RouteQuote{routeQuote("a", ""), routeQuote("b", "1"), routeQuote("c", "oops")},
			want:   "b", wantOK: true, wantSkipped: 2,
		},
		{
			name:   "big integers compare exactly",
			quotes: []quotesDomain.RouteQuote{routeQuote("a", "123456789012345678901234567890"), routeQuote("b", "123456789012345678901234567891")},
			want:   "b", wantOK: true,
		},
		{
			name:   "nothing usable",
			quotes: []quotesDomain.RouteQuote{routeQuote("a", "x")},
			wantOK: false, wantSkipped: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, ok, skipped := SelectBestRoute(tt.quotes)
			if ok != tt.wantOK || skipped != tt.wantSkipped {
				t.Fatalf("ok = %v skipped = %d", ok, skipped)
			}
			if ok && best.Provider != tt.want {
				t.Errorf("best = %s, want %s", best.Provider, tt.want)
			}
		})
	}
}

func TestSelectBestBridge(t *testing.T) {
	best, ok := SelectBestBridge([]quotesDomain.BridgeQuote{
		{Provider: "lifi", TotalCostUSD: d("9")},
		{Provider: "socket", TotalCostUSD: d("4")},
		{Provider: "other", TotalCostUSD: d("4")},
	})
	if !ok || best.Provider != "socket" {
		t.Errorf("best = %s", best.Provider)
	}
	if _, ok := SelectBestBridge(nil); ok {
		t.Error("empty slice should report !ok")
	}
}
