package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/star/isstracker/internal/geocode"
	"github.com/star/isstracker/internal/observability"
	"github.com/star/isstracker/internal/oem"
)

type feedConfig struct {
	URL               string `yaml:"url"`
	TimeoutSeconds    int    `yaml:"timeout_seconds"`
	CacheDir          string `yaml:"cache_dir"`
	CacheMaxFiles     int    `yaml:"cache_max_files"`
	SectionTTLSeconds int    `yaml:"section_ttl_seconds"`
}

type geocodeConfig struct {
	URL             string  `yaml:"url"`
	TimeoutSeconds  int     `yaml:"timeout_seconds"`
	Rate            float64 `yaml:"rate"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	CachePrecision  int     `yaml:"cache_precision"`
}

type config struct {
	HTTPAddr   string                      `yaml:"http_addr"`
	TrustProxy bool                        `yaml:"trust_proxy"`
	LogLevel   string                      `yaml:"log_level"`
	Feed       feedConfig                  `yaml:"feed"`
	Geocode    geocodeConfig               `yaml:"geocode"`
	Tracing    observability.TracingConfig `yaml:"tracing"`
}

func defaultConfig() config {
	return config{
		HTTPAddr: ":5000",
		LogLevel: "info",
		Feed: feedConfig{
			URL:               oem.DefaultSourceURL,
			TimeoutSeconds:    30,
			CacheDir:          "/tmp/isstracker/oem",
			CacheMaxFiles:     5,
			SectionTTLSeconds: 60,
		},
		Geocode: geocodeConfig{
			URL:             geocode.DefaultBaseURL,
			TimeoutSeconds:  5,
			Rate:            1,
			CacheTTLSeconds: 600,
			CachePrecision:  1,
		},
		Tracing: observability.DefaultTracingConfig(),
	}
}

func (f feedConfig) timeout() time.Duration    { return time.Duration(f.TimeoutSeconds) * time.Second }
func (f feedConfig) sectionTTL() time.Duration { return time.Duration(f.SectionTTLSeconds) * time.Second }
func (g geocodeConfig) timeout() time.Duration { return time.Duration(g.TimeoutSeconds) * time.Second }
func (g geocodeConfig) cacheTTL() time.Duration {
	return time.Duration(g.CacheTTLSeconds) * time.Second
}

// loadConfig builds the configuration from defaults, then the YAML file
// named by ISS_CONFIG_FILE (if any), then environment variables. Invalid
// environment values are logged and ignored.
func loadConfig(logger *slog.Logger) (config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("ISS_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		logger.Info("loaded config file", "path", path)
	}

	envString("ISS_HTTP_ADDR", &cfg.HTTPAddr)
	envBool(logger, "ISS_TRUST_PROXY", &cfg.TrustProxy)
	envString("LOG_LEVEL", &cfg.LogLevel)

	envString("ISS_DATA_URL", &cfg.Feed.URL)
	envPositiveInt(logger, "ISS_FETCH_TIMEOUT", &cfg.Feed.TimeoutSeconds)
	envString("ISS_CACHE_DIR", &cfg.Feed.CacheDir)
	envPositiveInt(logger, "ISS_CACHE_MAX_FILES", &cfg.Feed.CacheMaxFiles)
	envPositiveInt(logger, "ISS_SECTION_TTL", &cfg.Feed.SectionTTLSeconds)

	envString("ISS_GEOCODE_URL", &cfg.Geocode.URL)
	envPositiveInt(logger, "ISS_GEOCODE_TIMEOUT", &cfg.Geocode.TimeoutSeconds)
	envPositiveFloat(logger, "ISS_GEOCODE_RATE", &cfg.Geocode.Rate)
	envPositiveInt(logger, "ISS_GEOCODE_CACHE_TTL", &cfg.Geocode.CacheTTLSeconds)

	envBool(logger, "ISS_TRACING_ENABLED", &cfg.Tracing.Enabled)
	envString("ISS_TRACING_EXPORTER", &cfg.Tracing.Exporter)
	envString("ISS_OTLP_ENDPOINT", &cfg.Tracing.Endpoint)

	logger.Info("config",
		"http_addr", cfg.HTTPAddr,
		"log_level", cfg.LogLevel,
		"feed_url", cfg.Feed.URL,
		"fetch_timeout_seconds", cfg.Feed.TimeoutSeconds,
		"cache_dir", cfg.Feed.CacheDir,
		"geocode_url", cfg.Geocode.URL,
		"geocode_rate", cfg.Geocode.Rate,
		"tracing_enabled", cfg.Tracing.Enabled,
	)
	return cfg, nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envBool(logger *slog.Logger, key string, dst *bool) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = b
}

func envPositiveInt(logger *slog.Logger, key string, dst *int) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = n
}

func envPositiveFloat(logger *slog.Logger, key string, dst *float64) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", *dst)
		return
	}
	*dst = f
}

// parseLevel maps a LOG_LEVEL string to a slog level, defaulting to info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
