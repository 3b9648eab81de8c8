// Package dataset owns the process-wide state-vector dataset.
//
// The current dataset is an immutable snapshot behind an atomic pointer, so
// readers never block and never observe a half-replaced or half-converted
// record slice. Mutators (reload, clear, convert) are serialized by a mutex
// and always build a new snapshot before swapping it in.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/units"
)

// ErrNoData is returned by unit-dependent operations on an empty or cleared dataset.
var ErrNoData = errors.New("no data can be found")

var tracer = otel.Tracer("github.com/star/isstracker/internal/dataset")

// Dataset is one loaded set of state vectors. Never mutated after it is stored.
type Dataset struct {
	Records  []oem.StateVector
	Units    units.System
	Source   string
	LoadedAt time.Time
}

// Empty reports whether the dataset holds no records.
func (d *Dataset) Empty() bool {
	return len(d.Records) == 0
}

// Store provides thread-safe access to the current dataset.
type Store struct {
	dataset atomic.Pointer[Dataset]
	mu      sync.Mutex // serializes mutators
	logger  *slog.Logger
}

// NewStore creates a Store holding an empty, cleared dataset.
func NewStore(logger *slog.Logger) *Store {
	s := &Store{logger: logger}
	s.dataset.Store(&Dataset{Units: units.None})
	return s
}

// Get returns the current snapshot. Never nil.
func (s *Store) Get() *Dataset {
	return s.dataset.Load()
}

func (s *Store) set(ds *Dataset) {
	s.dataset.Store(ds)
	metrics.SetDatasetRecords(len(ds.Records))
	metrics.SetDatasetUnits(string(ds.Units))
}

// Replace swaps in records as a fresh SI dataset.
func (s *Store) Replace(records []oem.StateVector, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceLocked(records, source)
}

func (s *Store) replaceLocked(records []oem.StateVector, source string) {
	s.set(&Dataset{
		Records:  records,
		Units:    units.SI,
		Source:   source,
		LoadedAt: time.Now(),
	})
	s.logger.Info("dataset replaced", "component", "dataset", "records", len(records), "source", source)
}

// Clear empties the dataset and unsets its unit system.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(&Dataset{Units: units.None, LoadedAt: time.Now()})
	s.logger.Info("dataset cleared", "component", "dataset")
}

// Convert switches the dataset to the target unit system. Converting to the
// active system reports Changed == false and leaves the snapshot in place.
// Conversion runs on a copy, so a failure leaves the current dataset intact.
func (s *Store) Convert(target units.System) (units.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.Get()
	if !target.Valid() {
		return units.Result{From: cur.Units, To: target}, fmt.Errorf("%w: got %q", units.ErrInvalidUnitToken, target)
	}
	if cur.Units == target {
		return units.Result{From: cur.Units, To: target}, nil
	}
	if cur.Units == units.None {
		return units.Result{From: cur.Units, To: target}, ErrNoData
	}

	records := make([]oem.StateVector, len(cur.Records))
	copy(records, cur.Records)

	res, err := units.Toggle(records, cur.Units, target)
	if err != nil {
		metrics.IncConversions("error")
		return res, fmt.Errorf("converting dataset: %w", err)
	}

	s.set(&Dataset{
		Records:  records,
		Units:    target,
		Source:   cur.Source,
		LoadedAt: cur.LoadedAt,
	})
	metrics.IncConversions(string(target))
	s.logger.Info("dataset converted", "component", "dataset", "from", res.From, "to", res.To, "records", len(records))
	return res, nil
}

// Reload fetches and parses a fresh feed, then swaps it in with units reset
// to SI. Any fetch or parse failure leaves the current dataset untouched.
func (s *Store) Reload(ctx context.Context, fetcher oem.TextFetcher, source string) (*Dataset, error) {
	ctx, span := tracer.Start(ctx, "dataset.Reload")
	defer span.End()

	start := time.Now()
	text, err := fetcher.FetchText(ctx)
	if err != nil {
		metrics.IncReloads("fetch_error")
		span.RecordError(err)
		return nil, err
	}

	records, err := oem.ParseStateVectors(text)
	if err != nil {
		metrics.IncReloads("parse_error")
		span.RecordError(err)
		s.logger.Warn("reload parse failed, keeping current dataset", "component", "dataset", "error", err)
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	s.mu.Lock()
	s.replaceLocked(records, source)
	ds := s.Get()
	s.mu.Unlock()

	metrics.IncReloads("ok")
	span.SetAttributes(attribute.Int("dataset.records", len(records)))
	s.logger.Debug("reload complete", "component", "dataset", "duration_ms", time.Since(start).Milliseconds())
	return ds, nil
}

// AgeSeconds returns the age of the current dataset in seconds, or -1 when
// nothing has been loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds.LoadedAt.IsZero() {
		return -1
	}
	return time.Since(ds.LoadedAt).Seconds()
}
