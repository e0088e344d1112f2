package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewProviders_EmptyEndpoint(t *testing.T) {
	ctx := context.Background()
	for _, ep := range []string{"", "   "} {
		p, err := NewProviders(ctx, Config{Endpoint: ep, ServiceName: "auth-service"})
		if err != nil {
			t.Fatalf("NewProviders(%q): %v", ep, err)
		}
		if p.TracerProvider == nil || p.MeterProvider == nil || p.LoggerProvider == nil {
			t.Fatalf("providers = %+v, want all set", p)
		}
		if err := p.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in       string
		target   string
		insecure bool
		wantErr  bool
	}{
		{"localhost:4317", "localhost:4317", true, false},
		{"http://collector:4317", "collector:4317", true, false},
		{"https://collector:4317/v1/traces", "collector:4317", false, false},
		{"http://", "", false, true},
		{"http://[invalid", "", false, true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			target, insecure, err := parseEndpoint(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if target != tc.target || insecure != tc.insecure {
				t.Errorf("parseEndpoint = %q, %v; want %q, %v", target, insecure, tc.target, tc.insecure)
			}
		})
	}
}

func TestNewProviders_InvalidEndpoint(t *testing.T) {
	if _, err := NewProviders(context.Background(), Config{Endpoint: "http://", ServiceName: "x"}); err == nil {
		t.Error("want error for endpoint without host")
	}
}

func TestNewProviders_WithEndpoint(t *testing.T) {
	ctx := context.Background()
	// Exporters dial lazily, so construction succeeds without a collector.
	p, err := NewProviders(ctx, Config{Endpoint: "localhost:4317", ServiceName: "auth-service", Insecure: true})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	shutdownCtx, cancel := context.WithCancel(ctx)
	cancel()
	_ = p.Shutdown(shutdownCtx)
}

func TestSetGlobal(t *testing.T) {
	p, err := NewProviders(context.Background(), Config{ServiceName: "auth-service"})
	if err != nil {
		t.Fatalf("NewProviders: %v", err)
	}
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})
	p.SetGlobal()
	if otel.GetTracerProvider() != p.TracerProvider {
		t.Error("global TracerProvider not set")
	}
	if otel.GetMeterProvider() != p.MeterProvider {
		t.Error("global MeterProvider not set")
	}
	(&Providers{}).SetGlobal()
}
