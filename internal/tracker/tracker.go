// Package tracker implements the ISS tracker's queries and dataset mutations
// on top of the dataset store, epoch index and derivation engine.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/star/isstracker/internal/dataset"
	"github.com/star/isstracker/internal/derive"
	"github.com/star/isstracker/internal/ephem"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/units"
)

var (
	// ErrEpochNotFound is returned when a requested epoch is not in the dataset.
	ErrEpochNotFound = errors.New("epoch not found in the data set")
	// ErrSourceUnavailable wraps any failure to fetch or parse the upstream feed.
	ErrSourceUnavailable = errors.New("unable to reach the ISS data source")
)

// Config holds service configuration.
type Config struct {
	Source     string        // label recorded on each loaded dataset
	SectionTTL time.Duration // how long fetched header/metadata/comments may be reused after a failed refresh (default: 60s)
	Clock      ephem.Clock   // nil means time.Now
}

// Status is the station's state at the epoch nearest to now.
type Status struct {
	ClosestEpoch string          `json:"closest_epoch"`
	Delay        derive.Quantity `json:"delay"`
	Location     derive.Location `json:"location"`
	Speed        derive.Quantity `json:"speed"`
}

// sections holds the non-vector parts of the most recent feed.
type sections struct {
	header    map[string]string
	metadata  map[string]string
	comments  []string
	fetchedAt time.Time
}

// Service answers tracker queries. Safe for concurrent use.
type Service struct {
	store    *dataset.Store
	fetcher  oem.TextFetcher
	geocoder derive.Geocoder
	config   Config
	logger   *slog.Logger

	group singleflight.Group

	mu       sync.Mutex
	sections *sections
}

// New creates a Service.
func New(store *dataset.Store, fetcher oem.TextFetcher, geocoder derive.Geocoder, cfg Config, logger *slog.Logger) *Service {
	if cfg.SectionTTL <= 0 {
		cfg.SectionTTL = 60 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		store:    store,
		fetcher:  fetcher,
		geocoder: geocoder,
		config:   cfg,
		logger:   logger,
	}
}

// Dataset returns the current dataset snapshot.
func (s *Service) Dataset() *dataset.Dataset {
	return s.store.Get()
}

// List returns the state vectors within page.
func (s *Service) List(page Page) []oem.StateVector {
	records := s.store.Get().Records
	lo, hi := page.Bounds(len(records))
	out := make([]oem.StateVector, hi-lo)
	copy(out, records[lo:hi])
	return out
}

// Epochs returns the epoch strings within page.
func (s *Service) Epochs(page Page) []string {
	records := s.store.Get().Records
	lo, hi := page.Bounds(len(records))
	out := make([]string, 0, hi-lo)
	for _, r := range records[lo:hi] {
		out = append(out, r.Epoch)
	}
	return out
}

// VectorAt returns the state vector at epoch as a one-element slice, or an
// empty slice when the epoch is absent. An empty dataset is ErrNoData.
func (s *Service) VectorAt(epoch string) ([]oem.StateVector, error) {
	ds := s.store.Get()
	if ds.Empty() {
		return nil, dataset.ErrNoData
	}
	v, ok := s.index(ds).Exact(epoch)
	if !ok {
		return []oem.StateVector{}, nil
	}
	return []oem.StateVector{v}, nil
}

// SpeedAt returns the speed at epoch.
func (s *Service) SpeedAt(epoch string) (derive.Quantity, error) {
	ds, v, err := s.exact(epoch)
	if err != nil {
		return derive.Quantity{}, err
	}
	return derive.Speed(v, ds.Units)
}

// LocationAt returns the location at epoch.
func (s *Service) LocationAt(ctx context.Context, epoch string) (derive.Location, error) {
	ds, v, err := s.exact(epoch)
	if err != nil {
		return derive.Location{}, err
	}
	return derive.Locate(ctx, v, ds.Units, s.geocoder)
}

// Now returns speed and location at the epoch nearest the current time.
func (s *Service) Now(ctx context.Context) (Status, error) {
	ds := s.store.Get()
	if ds.Empty() {
		return Status{}, dataset.ErrNoData
	}
	m, ok := s.index(ds).NearestNow()
	if !ok {
		return Status{}, dataset.ErrNoData
	}

	speed, err := derive.Speed(m.Vector, ds.Units)
	if err != nil {
		return Status{}, err
	}
	loc, err := derive.Locate(ctx, m.Vector, ds.Units, s.geocoder)
	if err != nil {
		return Status{}, err
	}
	return Status{
		ClosestEpoch: m.Vector.Epoch,
		Delay:        derive.Quantity{Value: m.Gap, Units: "seconds"},
		Location:     loc,
		Speed:        speed,
	}, nil
}

// ConvertUnits switches the dataset to the unit system named by token.
// Naming the active system is a no-op, including the empty token on a
// cleared dataset, whose units are unset.
func (s *Service) ConvertUnits(token string) (units.Result, error) {
	cur := s.store.Get().Units
	if cur == units.None && token == "" {
		return units.Result{From: cur, To: cur}, nil
	}
	target, err := units.ParseSystem(token)
	if err != nil {
		return units.Result{From: cur}, err
	}
	return s.store.Convert(target)
}

// Clear empties the dataset.
func (s *Service) Clear() {
	s.store.Clear()
}

// Reload fetches a fresh feed and replaces the dataset. Concurrent calls
// share one fetch. On failure the current dataset is kept.
func (s *Service) Reload(ctx context.Context) (*dataset.Dataset, error) {
	v, err := s.shared(ctx, "reload", func(ctx context.Context) (any, error) {
		return s.store.Reload(ctx, recordingFetcher{s}, s.config.Source)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return v.(*dataset.Dataset), nil
}

// shared runs fn once for all concurrent callers using the same key. fn runs
// without the caller's cancellation, so one caller leaving does not fail the
// others; the fetcher's own timeout bounds it. Each caller stops waiting when
// its own ctx is done.
func (s *Service) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Header returns the feed header.
func (s *Service) Header(ctx context.Context) (map[string]string, error) {
	sec, err := s.currentSections(ctx)
	if err != nil {
		return nil, err
	}
	return sec.header, nil
}

// Metadata returns the feed metadata block.
func (s *Service) Metadata(ctx context.Context) (map[string]string, error) {
	sec, err := s.currentSections(ctx)
	if err != nil {
		return nil, err
	}
	return sec.metadata, nil
}

// Comments returns the feed comment lines.
func (s *Service) Comments(ctx context.Context) ([]string, error) {
	sec, err := s.currentSections(ctx)
	if err != nil {
		return nil, err
	}
	return sec.comments, nil
}

// currentSections fetches the feed and returns its sections. If the fetch
// fails, sections fetched within SectionTTL are served instead.
func (s *Service) currentSections(ctx context.Context) (*sections, error) {
	v, err := s.shared(ctx, "sections", func(ctx context.Context) (any, error) {
		text, err := s.fetcher.FetchText(ctx)
		if err != nil {
			return nil, err
		}
		return s.storeSections(text)
	})
	if err == nil {
		return v.(*sections), nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.mu.Lock()
	cached := s.sections
	s.mu.Unlock()
	if cached != nil && s.config.Clock().Sub(cached.fetchedAt) < s.config.SectionTTL {
		s.logger.Warn("serving cached feed sections", "component", "tracker", "error", err,
			"age_seconds", s.config.Clock().Sub(cached.fetchedAt).Seconds())
		return cached, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

func (s *Service) storeSections(text string) (*sections, error) {
	header, err := oem.ParseHeader(text)
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	meta, err := oem.ParseMetadata(text)
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}
	sec := &sections{
		header:    header,
		metadata:  meta,
		comments:  oem.ParseComments(text),
		fetchedAt: s.config.Clock(),
	}

	s.mu.Lock()
	s.sections = sec
	s.mu.Unlock()
	return sec, nil
}

// recordingFetcher keeps the sections of every feed fetched for a reload.
type recordingFetcher struct {
	s *Service
}

func (r recordingFetcher) FetchText(ctx context.Context) (string, error) {
	text, err := r.s.fetcher.FetchText(ctx)
	if err != nil {
		return "", err
	}
	if _, err := r.s.storeSections(text); err != nil {
		r.s.logger.Debug("feed sections not updated", "component", "tracker", "error", err)
	}
	return text, nil
}

func (s *Service) exact(epoch string) (*dataset.Dataset, oem.StateVector, error) {
	ds := s.store.Get()
	if ds.Empty() || !ds.Units.Valid() {
		return ds, oem.StateVector{}, dataset.ErrNoData
	}
	v, ok := s.index(ds).Exact(epoch)
	if !ok {
		return ds, oem.StateVector{}, ErrEpochNotFound
	}
	return ds, v, nil
}

func (s *Service) index(ds *dataset.Dataset) *ephem.Index {
	return ephem.New(ds.Records, s.config.Clock)
}
