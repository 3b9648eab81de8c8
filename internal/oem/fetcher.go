package oem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// DefaultSourceURL is the public JSC ISS ephemeris in OEM form.
const DefaultSourceURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.txt"

// maxBodyBytes caps a feed download. The ISS OEM is a few MB.
const maxBodyBytes = 50 << 20

// ErrFetch marks any failure to obtain the raw feed text.
var ErrFetch = errors.New("feed fetch failed")

var tracer = otel.Tracer("github.com/star/isstracker/internal/oem")

// TextFetcher retrieves the raw feed text.
type TextFetcher interface {
	FetchText(ctx context.Context) (string, error)
}

// Fetcher retrieves raw OEM text over HTTP with a bounded timeout.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL. A zero timeout
// means 30 seconds.
func NewFetcher(sourceURL string, timeout time.Duration, logger *slog.Logger) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET for the raw feed bytes.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "oem.Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("oem.source_url", f.sourceURL))

	body, err := f.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.Warn("OEM fetch failed", "component", "oem", "source_url", f.sourceURL, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	span.SetAttributes(attribute.Int("oem.bytes", len(body)))
	return body, nil
}

func (f *Fetcher) fetch(ctx context.Context) ([]byte, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching OEM data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response exceeds %d byte limit", maxBodyBytes)
	}

	f.logger.Debug("OEM fetched",
		"component", "oem",
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

// FetchText implements TextFetcher.
func (f *Fetcher) FetchText(ctx context.Context) (string, error) {
	body, err := f.Fetch(ctx)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
