package apm

import (
	"context"
	"testing"

	"github.com/fd1az/fee-advisor/internal/logger"
)

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders("x-honeycomb-team=abc, api-key=def,broken,=novalue")
	if len(got) != 2 || got["x-honeycomb-team"] != "abc" || got["api-key"] != "def" {
		t.Errorf("ParseHeaders = %v", got)
	}
}

func TestNewTraceProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"none", Config{Provider: EmptyProvider}, false},
		{"unset", Config{}, false},
		{"console", Config{Provider: ConsoleProvider, ServiceName: "fee-advisor"}, false},
		{"unknown", Config{Provider: "jaeger"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tp, err := NewTraceProvider(context.Background(), tt.cfg, logger.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tp != nil {
				if err := tp.Stop(); err != nil {
					t.Errorf("Stop: %v", err)
				}
			}
		})
	}
}
