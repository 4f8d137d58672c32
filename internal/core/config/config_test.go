package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/seckatie/echoes/internal/core"
)

// clearEnv blanks every variable Load consults so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{configPathEnv, portEnv, frontendURLEnv, completionModeEnv, snapshotVariantEnv, logLevelEnv} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echoes.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid: %v", err)
	}
	if cfg.Addr() != "localhost:3001" {
		t.Errorf("expected addr localhost:3001, got %s", cfg.Addr())
	}
	if cfg.Resurrect.CompletionMode != core.CompletionDeferred {
		t.Errorf("expected deferred completion, got %s", cfg.Resurrect.CompletionMode)
	}
	if cfg.Archive.Variant != core.VariantWrapped {
		t.Errorf("expected wrapped variant, got %s", cfg.Archive.Variant)
	}
	if cfg.Archive.Limit != 10 {
		t.Errorf("expected limit 10, got %d", cfg.Archive.Limit)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  host: 0.0.0.0
  port: 8080
  allowedOrigins:
    - https://echoes.example
archive:
  cdxEndpoint: http://cdx.test/search
  variant: identity
  limit: 3
  timeout: 2s
resurrect:
  completionMode: immediate
  completionDelay: 250ms
store:
  driver: sqlite
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("expected addr 0.0.0.0:8080, got %s", cfg.Addr())
	}
	if !reflect.DeepEqual(cfg.Server.AllowedOrigins, []string{"https://echoes.example"}) {
		t.Errorf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Archive.CDXEndpoint != "http://cdx.test/search" {
		t.Errorf("unexpected endpoint %s", cfg.Archive.CDXEndpoint)
	}
	if cfg.Archive.Variant != core.VariantIdentity || cfg.Archive.Limit != 3 {
		t.Errorf("unexpected archive config %+v", cfg.Archive)
	}
	if cfg.Archive.Timeout != 2*time.Second {
		t.Errorf("expected 2s timeout, got %v", cfg.Archive.Timeout)
	}
	if cfg.Resurrect.CompletionMode != core.CompletionImmediate || cfg.Resurrect.CompletionDelay != 250*time.Millisecond {
		t.Errorf("unexpected resurrect config %+v", cfg.Resurrect)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Store.Driver)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected logging config %+v", cfg.Logging)
	}
	// untouched sections keep their defaults
	if cfg.Archive.SnapshotBaseURL != core.DefaultSnapshotBaseURL {
		t.Errorf("expected default snapshot base, got %s", cfg.Archive.SnapshotBaseURL)
	}
	if cfg.Notify.BufferSize != 16 {
		t.Errorf("expected default buffer size, got %d", cfg.Notify.BufferSize)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected loaded config to be valid: %v", err)
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	clearEnv(t)
	t.Setenv(configPathEnv, writeConfig(t, "server:\n  port: 4000\n"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("expected port 4000, got %d", cfg.Server.Port)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "server:\n  port: 4000\nresurrect:\n  completionMode: deferred\n")
	t.Setenv(portEnv, "5000")
	t.Setenv(frontendURLEnv, "https://main.d1.amplifyapp.com")
	t.Setenv(completionModeEnv, "immediate")
	t.Setenv(snapshotVariantEnv, "identity")
	t.Setenv(logLevelEnv, "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected env port to win, got %d", cfg.Server.Port)
	}
	if cfg.Server.FrontendURL != "https://main.d1.amplifyapp.com" {
		t.Errorf("unexpected frontend url %s", cfg.Server.FrontendURL)
	}
	if cfg.Resurrect.CompletionMode != core.CompletionImmediate {
		t.Errorf("expected immediate mode, got %s", cfg.Resurrect.CompletionMode)
	}
	if cfg.Archive.Variant != core.VariantIdentity {
		t.Errorf("expected identity variant, got %s", cfg.Archive.Variant)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected warn level, got %s", cfg.Logging.Level)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		wantErr string
	}{
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.yaml")
			},
			wantErr: "cannot read",
		},
		{
			name: "malformed yaml",
			setup: func(t *testing.T) string {
				return writeConfig(t, "server: [port")
			},
			wantErr: "cannot parse",
		},
		{
			name: "bad duration",
			setup: func(t *testing.T) string {
				return writeConfig(t, "archive:\n  timeout: soon\n")
			},
			wantErr: "cannot parse",
		},
		{
			name: "non-numeric PORT",
			setup: func(t *testing.T) string {
				t.Setenv(portEnv, "http")
				return ""
			},
			wantErr: "invalid PORT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			path := tt.setup(t)

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"negative port", func(c *Config) { c.Server.Port = -1 }, "server.port"},
		{"no endpoint", func(c *Config) { c.Archive.CDXEndpoint = "" }, "cdxEndpoint"},
		{"unknown variant", func(c *Config) { c.Archive.Variant = "raw" }, "archive.variant"},
		{"zero limit", func(c *Config) { c.Archive.Limit = 0 }, "archive.limit"},
		{"unknown mode", func(c *Config) { c.Resurrect.CompletionMode = "eventually" }, "completionMode"},
		{"negative delay", func(c *Config) { c.Resurrect.CompletionDelay = -time.Second }, "completionDelay"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }, "store.driver"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := Default()
		cfg.Archive.Limit = 0
		cfg.Store.Driver = "postgres"

		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected validation error, got nil")
		}
		if !strings.Contains(err.Error(), "archive.limit") || !strings.Contains(err.Error(), "store.driver") {
			t.Errorf("expected both problems reported, got %v", err)
		}
	})
}

func TestOrigins(t *testing.T) {
	cfg := Default()
	cfg.Server.AllowedOrigins = []string{" http://localhost:5173 ", "", "http://localhost:3000"}
	cfg.Server.FrontendURL = "https://echoes.example "

	want := []string{"http://localhost:5173", "http://localhost:3000", "https://echoes.example"}
	if got := cfg.Origins(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	cfg.Server.FrontendURL = ""
	if got := cfg.Origins(); len(got) != 2 {
		t.Errorf("expected 2 origins without a frontend url, got %v", got)
	}
}
