package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	err := New(CodeInsufficientData, WithContext("no gas quotes"))

	if !errors.Is(err, ErrInsufficientData) {
		t.Error("expected errors.Is to match sentinel with same code")
	}
	if errors.Is(err, ErrInvalidInput) {
		t.Error("expected errors.Is not to match a different code")
	}
}

func TestAppError_IsWalksCauseChain(t *testing.T) {
	inner := New(CodeInsufficientData)
	outer := New(CodeAnalysisFailure, WithCause(inner))
	wrapped := fmt.Errorf("recommend: %w", outer)

	if !errors.Is(wrapped, ErrAnalysisFailure) || !errors.Is(wrapped, ErrInsufficientData) {
		t.Error("expected both codes to be reachable through the chain")
	}
	if GetCode(wrapped) != CodeAnalysisFailure {
		t.Errorf("GetCode = %s, want outermost code", GetCode(wrapped))
	}
}

func TestAppError_ErrorString(t *testing.T) {
	err := New(CodeProviderUnavailable, WithContext("etherscan"), WithCause(errors.New("timeout")))
	msg := err.Error()
	for _, want := range []string{"PROVIDER_UNAVAILABLE", "etherscan", "timeout"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, CodeInternalError, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}

	plain := errors.New("plain")
	w := Wrap(plain, CodeInternalError, "ctx")
	if w.Code != CodeInternalError || !errors.Is(w, plain) {
		t.Errorf("Wrap did not keep cause/code: %v", w)
	}

	existing := New(CodeInvalidQuote)
	if Wrap(existing, CodeInternalError, "added") != existing {
		t.Error("Wrap should return an existing AppError unchanged")
	}
	if existing.Context != "added" {
		t.Errorf("Context = %q, want added", existing.Context)
	}
	if GetCode(plain) != CodeUnknownError {
		t.Error("GetCode on plain error should be UNKNOWN_ERROR")
	}
}
