package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "isstracker_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "isstracker_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	datasetRecords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstracker_dataset_records",
		Help: "Number of state vectors in the current dataset.",
	})

	datasetUnits = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "isstracker_dataset_units",
		Help: "1 for the active unit system of the current dataset, 0 otherwise.",
	}, []string{"units"})

	datasetAgeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstracker_dataset_age_seconds",
		Help: "Seconds since the current dataset was loaded.",
	})

	reloadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "isstracker_dataset_reloads_total",
		Help: "Dataset reload attempts by result.",
	}, []string{"result"})

	conversionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "isstracker_unit_conversions_total",
		Help: "Unit conversions applied, by target system or error.",
	}, []string{"target"})

	geocodeLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "isstracker_geocode_lookups_total",
		Help: "Reverse geocode lookups by outcome (place, ocean, unavailable).",
	}, []string{"outcome"})

	geocodeDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "isstracker_geocode_duration_seconds",
		Help:    "Reverse geocode request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	geocodeCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_geocode_cache_hits_total",
		Help: "Reverse geocode cache hits.",
	})

	geocodeCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_geocode_cache_misses_total",
		Help: "Reverse geocode cache misses.",
	})

	geocodeCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "isstracker_geocode_cache_evictions_total",
		Help: "Reverse geocode cache entries evicted after expiry.",
	})

	geocodeCacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "isstracker_geocode_cache_entries",
		Help: "Entries currently held in the reverse geocode cache.",
	})
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		datasetRecords,
		datasetUnits,
		datasetAgeSeconds,
		reloadsTotal,
		conversionsTotal,
		geocodeLookupsTotal,
		geocodeDurationSeconds,
		geocodeCacheHits,
		geocodeCacheMisses,
		geocodeCacheEvictions,
		geocodeCacheEntries,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetDatasetRecords records the size of the current dataset.
func SetDatasetRecords(n int) {
	datasetRecords.Set(float64(n))
}

// SetDatasetUnits marks units as the active unit system. An empty string
// (cleared dataset) zeroes every series.
func SetDatasetUnits(units string) {
	for _, u := range []string{"SI", "USCS"} {
		v := 0.0
		if u == units {
			v = 1
		}
		datasetUnits.WithLabelValues(u).Set(v)
	}
}

// SetDatasetAge records the dataset age gauge.
func SetDatasetAge(seconds float64) {
	datasetAgeSeconds.Set(seconds)
}

// IncReloads counts one reload attempt with the given result.
func IncReloads(result string) {
	reloadsTotal.WithLabelValues(result).Inc()
}

// IncConversions counts one unit conversion.
func IncConversions(target string) {
	conversionsTotal.WithLabelValues(target).Inc()
}

// RecordGeocode counts a lookup outcome and its latency.
func RecordGeocode(outcome string, d time.Duration) {
	geocodeLookupsTotal.WithLabelValues(outcome).Inc()
	geocodeDurationSeconds.Observe(d.Seconds())
}

// IncGeocodeCacheHits counts a geocode cache hit.
func IncGeocodeCacheHits() { geocodeCacheHits.Inc() }

// IncGeocodeCacheMisses counts a geocode cache miss.
func IncGeocodeCacheMisses() { geocodeCacheMisses.Inc() }

// AddGeocodeCacheEvictions counts evicted geocode cache entries.
func AddGeocodeCacheEvictions(n int) { geocodeCacheEvictions.Add(float64(n)) }

// SetGeocodeCacheEntries records the geocode cache size.
func SetGeocodeCacheEntries(n int) { geocodeCacheEntries.Set(float64(n)) }

// knownRoutes are exact paths reported under their own label.
var knownRoutes = map[string]bool{
	"/":            true,
	"/epochs":      true,
	"/now":         true,
	"/convert":     true,
	"/delete-data": true,
	"/post-data":   true,
	"/comment":     true,
	"/header":      true,
	"/metadata":    true,
	"/help":        true,
	"/healthz":     true,
	"/readyz":      true,
	"/metrics":     true,
}

// normalizeRoute collapses per-epoch paths to their pattern and unknown paths
// to "other" so the path label stays low-cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/epochs/"); ok && rest != "" {
		switch {
		case strings.HasSuffix(rest, "/speed"):
			return "/epochs/{epoch}/speed"
		case strings.HasSuffix(rest, "/location"):
			return "/epochs/{epoch}/location"
		case !strings.Contains(rest, "/"):
			return "/epochs/{epoch}"
		}
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		path := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(path, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(path, r.Method).Observe(duration)
	})
}
