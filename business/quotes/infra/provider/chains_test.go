package provider

import (
	"errors"
	"testing"

	"github.com/fd1az/fee-advisor/internal/apperror"
)

func TestChainID(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "ethereum", want: 1},
		{in: " Arbitrum ", want: 42161},
		{in: "8453", want: 8453},
		{in: "0", wantErr: true},
		{in: "solana", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ChainID(tt.in)
			if tt.wantErr {
				if !errors.Is(err, apperror.ErrInvalidInput) {
					t.Errorf("err = %v, want INVALID_INPUT", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ChainID(%q) = %d, %v", tt.in, got, err)
			}
		})
	}
}

func TestChainName(t *testing.T) {
	if got := ChainName(1); got != "ethereum" {
		t.Errorf("ChainName(1) = %q", got)
	}
	if got := ChainName(999); got != "999" {
		t.Errorf("ChainName(999) = %q", got)
	}
}
