package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"epubsort/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrWeb, "enrich", "search", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrWeb) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"enrich", "search", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutMarkerIsSystem(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrSystem) {
		t.Fatalf("expected system marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err)
	}
}

func TestErrorTypeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrInput, "validate", "", "bad", nil), "input_error"},
		{services.Wrap(services.ErrValidation, "validate", "", "bad", nil), "input_error"},
		{services.Wrap(services.ErrAI, "classify", "", "bad", nil), "ai_error"},
		{services.Wrap(services.ErrWeb, "enrich", "", "bad", nil), "web_error"},
		{services.Wrap(services.ErrLogic, "classify", "", "bad", nil), "logic_error"},
		{services.Wrap(services.ErrConfiguration, "llm", "", "bad", nil), "system_error"},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrAI, "", "", "x", nil)), "ai_error"},
		{errors.New("plain"), "system_error"},
	}
	for _, tt := range tests {
		if got := services.ErrorType(tt.err); got != tt.want {
			t.Fatalf("ErrorType(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
