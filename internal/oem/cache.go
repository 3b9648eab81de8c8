package oem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoCachedFeed is returned when the cache holds no usable feed.
	ErrNoCachedFeed = errors.New("no usable OEM feed in cache")
	// ErrNoStateVectors is returned when asked to cache a feed without any
	// state vectors.
	ErrNoStateVectors = errors.New("feed has no state vectors")
)

const (
	cachePrefix = "oem_"
	cacheSuffix = ".txt"
)

// Cache keeps the last few feeds on disk so the service can start when the
// source is unreachable. Only feeds with at least one decodable state vector
// are stored.
type Cache struct {
	dir      string
	maxFiles int
}

// CachedFeed is a feed read back from the cache.
type CachedFeed struct {
	Text      string
	Vectors   []StateVector
	WrittenAt time.Time
	Skipped   int // newer files passed over because they did not parse
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// Write stores text as the feed fetched at ts and prunes old files beyond
// maxFiles. Text whose state vectors do not parse is rejected. The file is
// written under a temporary name and renamed, so readers never see a
// partial feed.
func (c *Cache) Write(text string, ts time.Time) error {
	vectors, err := ParseStateVectors(text)
	if err != nil {
		return fmt.Errorf("not caching feed: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("not caching feed: %w", ErrNoStateVectors)
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, cachePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	path := filepath.Join(c.dir, fmt.Sprintf("%s%d%s", cachePrefix, ts.Unix(), cacheSuffix))
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// LoadLatest returns the newest cached feed whose state vectors parse.
// Files that are unreadable or fail to parse are skipped.
func (c *Cache) LoadLatest() (*CachedFeed, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, err
	}

	skipped := 0
	for i := len(files) - 1; i >= 0; i-- {
		raw, err := os.ReadFile(filepath.Join(c.dir, files[i].name))
		if err != nil {
			skipped++
			continue
		}
		text := string(raw)
		vectors, err := ParseStateVectors(text)
		if err != nil || len(vectors) == 0 {
			skipped++
			continue
		}
		return &CachedFeed{
			Text:      text,
			Vectors:   vectors,
			WrittenAt: files[i].ts,
			Skipped:   skipped,
		}, nil
	}

	return nil, fmt.Errorf("%w: %s (%d files skipped)", ErrNoCachedFeed, c.dir, skipped)
}

type cacheFile struct {
	name string
	ts   time.Time
}

// listFiles returns cache files oldest first.
func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, cachePrefix) || !strings.HasSuffix(name, cacheSuffix) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, cachePrefix), cacheSuffix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: name, ts: time.Unix(unix, 0)})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ts.Before(files[j].ts)
	})

	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= c.maxFiles {
		return nil
	}

	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}
	return nil
}

// CachingFetcher writes every fetched feed that parses through to a Cache.
type CachingFetcher struct {
	next   *Fetcher
	cache  *Cache
	logger *slog.Logger
}

// NewCachingFetcher wraps f so fetched feeds are kept in c.
func NewCachingFetcher(f *Fetcher, c *Cache, logger *slog.Logger) *CachingFetcher {
	return &CachingFetcher{next: f, cache: c, logger: logger}
}

// FetchText implements TextFetcher. Feeds that do not parse are returned
// unchanged but not cached; cache write failures are logged, not returned.
func (cf *CachingFetcher) FetchText(ctx context.Context) (string, error) {
	text, err := cf.next.FetchText(ctx)
	if err != nil {
		return "", err
	}
	if err := cf.cache.Write(text, time.Now()); err != nil {
		cf.logger.Warn("failed to write OEM cache", "component", "oem", "error", err)
	}
	return text, nil
}
