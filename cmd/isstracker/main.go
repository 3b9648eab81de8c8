package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/isstracker/internal/api"
	"github.com/star/isstracker/internal/cache"
	"github.com/star/isstracker/internal/dataset"
	"github.com/star/isstracker/internal/geocode"
	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/observability"
	"github.com/star/isstracker/internal/oem"
	"github.com/star/isstracker/internal/tracker"
	"github.com/star/isstracker/web"
)

func main() {
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg, err := loadConfig(bootLogger)
	if err != nil {
		bootLogger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(cfg config, logger *slog.Logger) error {
	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	fetcher := oem.NewFetcher(cfg.Feed.URL, cfg.Feed.timeout(), logger)
	diskCache := oem.NewCache(cfg.Feed.CacheDir, cfg.Feed.CacheMaxFiles)
	store := dataset.NewStore(logger)

	geocoder := geocode.NewCached(
		geocode.NewClient(geocode.Config{
			BaseURL: cfg.Geocode.URL,
			Timeout: cfg.Geocode.timeout(),
			Rate:    cfg.Geocode.Rate,
		}, logger),
		cache.Config{TTL: cfg.Geocode.cacheTTL(), Precision: cfg.Geocode.CachePrecision},
		logger,
	)

	svc := tracker.New(store, oem.NewCachingFetcher(fetcher, diskCache, logger), geocoder, tracker.Config{
		Source:     fetcher.SourceURL(),
		SectionTTL: cfg.Feed.sectionTTL(),
	}, logger)

	initialLoad(ctx, svc, store, diskCache, logger)

	help, err := fs.ReadFile(web.Content, "help.txt")
	if err != nil {
		return err
	}
	srv := api.NewServer(api.Config{Addr: cfg.HTTPAddr, TrustProxy: cfg.TrustProxy, Help: help}, svc, store, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "records", len(store.Get().Records))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.HTTPServer().Shutdown(shutdownCtx)
	})

	// Geocode cache eviction.
	g.Go(func() error {
		geocoder.Start(gctx)
		return nil
	})

	// Dataset age gauge.
	g.Go(func() error {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetDatasetAge(age)
				}
			case <-gctx.Done():
				return nil
			}
		}
	})

	return g.Wait()
}

// initialLoad fetches the feed, falling back to the newest feed in the disk
// cache. The service starts with an empty dataset if both fail.
func initialLoad(ctx context.Context, svc *tracker.Service, store *dataset.Store, diskCache *oem.Cache, logger *slog.Logger) {
	ds, err := svc.Reload(ctx)
	if err == nil {
		logger.Info("loaded ISS data", "records", len(ds.Records), "source", ds.Source)
		return
	}
	logger.Warn("initial fetch failed, trying disk cache", "error", err)

	cached, err := diskCache.LoadLatest()
	if err != nil {
		logger.Info("no usable OEM cache, starting without data", "error", err)
		return
	}
	store.Replace(cached.Vectors, "cache")
	logger.Info("loaded ISS data from cache",
		"records", len(cached.Vectors),
		"cached_at", cached.WrittenAt.Format(time.RFC3339),
		"skipped_files", cached.Skipped,
	)
}
