// Package geocode resolves coordinates to a place using the OpenStreetMap
// Nominatim reverse geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/star/isstracker/internal/metrics"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

const (
	defaultUserAgent = "iss_tracker"
	defaultLanguage  = "en"
	// zoom 1 resolves to country level.
	defaultZoom  = "1"
	maxBodyBytes = 1 << 20
)

// Lookup outcomes, used as metric labels.
const (
	OutcomePlace       = "place"
	OutcomeNone        = "none"
	OutcomeUnavailable = "unavailable"
)

// ErrUnavailable marks a lookup that could not be completed in time or at all.
var ErrUnavailable = errors.New("geocoding service unavailable")

var tracer = otel.Tracer("github.com/star/isstracker/internal/geocode")

// Place is the address breakdown of a location, e.g. {"country": "Japan"}.
type Place map[string]string

// Config holds client configuration.
type Config struct {
	BaseURL   string
	Timeout   time.Duration // per lookup, including the rate-limit wait (default: 5s)
	Rate      float64       // requests per second (default: 1)
	UserAgent string
	Language  string
}

// Client performs rate-limited reverse lookups against Nominatim.
type Client struct {
	baseURL    string
	userAgent  string
	language   string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. Zero config fields take their defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Language == "" {
		cfg.Language = defaultLanguage
	}

	return &Client{
		baseURL:   cfg.BaseURL,
		userAgent: cfg.UserAgent,
		language:  cfg.Language,
		timeout:   cfg.Timeout,
		limiter:   rate.NewLimiter(rate.Limit(cfg.Rate), 1),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// reverseResponse is the subset of a jsonv2 reverse result we read.
// Nominatim answers 200 with an "error" field when nothing is at the point.
type reverseResponse struct {
	Error   string            `json:"error"`
	Address map[string]string `json:"address"`
}

// Reverse returns the place at lat/lon. ok is false when there is no place
// there (typically open water). Any failure, including a timeout while
// waiting for the rate limiter, is returned wrapped in ErrUnavailable.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Place, bool, error) {
	ctx, span := tracer.Start(ctx, "geocode.Reverse")
	defer span.End()
	span.SetAttributes(attribute.Float64("geo.lat", lat), attribute.Float64("geo.lon", lon))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	place, ok, err := c.reverse(ctx, lat, lon)
	switch {
	case err != nil:
		metrics.RecordGeocode(OutcomeUnavailable, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Warn("reverse geocode failed", "component", "geocode", "lat", lat, "lon", lon, "error", err)
		return nil, false, fmt.Errorf("%w: %w", ErrUnavailable, err)
	case !ok:
		metrics.RecordGeocode(OutcomeNone, time.Since(start))
	default:
		metrics.RecordGeocode(OutcomePlace, time.Since(start))
	}
	span.SetAttributes(attribute.Bool("geo.found", ok))
	return place, ok, nil
}

func (c *Client) reverse(ctx context.Context, lat, lon float64) (Place, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("rate limit wait: %w", err)
	}

	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("zoom", defaultZoom)
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", c.language)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("reverse lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("unexpected status code %d from geocoder", resp.StatusCode)
	}

	var out reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	if out.Error != "" || len(out.Address) == 0 {
		return nil, false, nil
	}
	return Place(out.Address), true, nil
}
