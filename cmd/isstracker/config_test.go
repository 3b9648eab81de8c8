package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("ISS_CONFIG_FILE", "")
	cfg, err := loadConfig(testLogger())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTPAddr != ":5000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Feed.timeout() != 30*time.Second {
		t.Errorf("feed timeout = %v", cfg.Feed.timeout())
	}
	if cfg.Geocode.timeout() != 5*time.Second || cfg.Geocode.Rate != 1 {
		t.Errorf("geocode = %+v", cfg.Geocode)
	}
	if cfg.Tracing.Enabled {
		t.Error("tracing enabled by default")
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isstracker.yaml")
	yamlDoc := `
http_addr: ":9000"
feed:
  timeout_seconds: 10
  cache_dir: /var/cache/iss
geocode:
  rate: 0.5
tracing:
  enabled: true
  exporter: otlp
`
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ISS_CONFIG_FILE", path)
	t.Setenv("ISS_HTTP_ADDR", ":7000")
	t.Setenv("ISS_FETCH_TIMEOUT", "nope")
	t.Setenv("ISS_GEOCODE_RATE", "-3")
	t.Setenv("ISS_SECTION_TTL", "90")

	cfg, err := loadConfig(testLogger())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"env overrides file", cfg.HTTPAddr, ":7000"},
		{"invalid env keeps file value", cfg.Feed.TimeoutSeconds, 10},
		{"file value", cfg.Feed.CacheDir, "/var/cache/iss"},
		{"untouched default", cfg.Feed.CacheMaxFiles, 5},
		{"negative rate ignored", cfg.Geocode.Rate, 0.5},
		{"env only", cfg.Feed.sectionTTL(), 90 * time.Second},
		{"tracing enabled", cfg.Tracing.Enabled, true},
		{"tracing exporter", cfg.Tracing.Exporter, "otlp"},
		{"tracing default kept", cfg.Tracing.ServiceName, "isstracker"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfigBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("feed: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ISS_CONFIG_FILE", path)
	if _, err := loadConfig(testLogger()); err == nil {
		t.Fatal("expected error for malformed YAML")
	}

	t.Setenv("ISS_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := loadConfig(testLogger()); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
