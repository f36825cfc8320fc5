package handlers

import (
	"context"
	"testing"

	"github.com/jmylchreest/memmux/internal/remux"
)

func TestHealthHandler_GetLivez(t *testing.T) {
	handler := NewHealthHandler("1.0.0", nil)

	output, err := handler.GetLivez(context.Background(), &LivezInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Body.Status != "ok" {
		t.Errorf("expected status 'ok', got '%s'", output.Body.Status)
	}
}

func TestHealthHandler_GetHealth(t *testing.T) {
	handler := NewHealthHandler("1.0.0", remux.New(remux.Config{}))

	output, err := handler.GetHealth(context.Background(), &HealthInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output == nil {
		t.Fatal("expected non-nil output")
	}

	if output.Body.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", output.Body.Status)
	}
	if output.Body.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", output.Body.Version)
	}
	if output.Body.Uptime == "" {
		t.Error("expected non-empty uptime")
	}
	if output.Body.CPUInfo.Cores == 0 {
		t.Error("expected non-zero CPU cores")
	}
	if output.Body.Runtime.Goroutines == 0 {
		t.Error("expected goroutine count")
	}
	if output.Body.Formats == 0 || output.Body.Codecs == 0 {
		t.Errorf("expected catalog counts, got %d formats and %d codecs", output.Body.Formats, output.Body.Codecs)
	}
}
