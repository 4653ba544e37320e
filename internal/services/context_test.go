package services_test

import (
	"context"
	"testing"

	"epubsort/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithFile(ctx, "book.epub")
	ctx = services.WithStage(ctx, "classify")
	ctx = services.WithRequestID(ctx, "req-123")

	if name, ok := services.FileFromContext(ctx); !ok || name != "book.epub" {
		t.Fatalf("unexpected file: %v %v", name, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "classify" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithFile(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.FileFromContext(ctx); ok {
		t.Fatal("expected no file value")
	}
}
