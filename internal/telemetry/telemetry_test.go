package telemetry

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/replyloop/replyloop/internal/core"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.defaults()

	if !*cfg.Insecure {
		t.Error("insecure should default to true")
	}
	if cfg.SampleRate != 1 {
		t.Errorf("sample_rate = %v, want 1", cfg.SampleRate)
	}
	if cfg.ServiceName != defaultServiceName {
		t.Errorf("service_name = %q, want %q", cfg.ServiceName, defaultServiceName)
	}
}

func TestConfigSampleRateClamped(t *testing.T) {
	t.Parallel()

	cfg := Config{SampleRate: 2.5}
	cfg.defaults()
	if cfg.SampleRate != 1 {
		t.Errorf("sample_rate = %v, want clamped to 1", cfg.SampleRate)
	}
}

func TestProvisionDisabledWithoutEndpoint(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCtx := core.NewAppContext(logger, t.TempDir())

	m := &Module{}
	if err := m.Provision(appCtx); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if m.provider != nil {
		t.Error("provider should stay nil without an endpoint")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("stop: %v", err)
	}
}
