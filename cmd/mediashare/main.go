package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"

	"mediashare/internal/api"
	"mediashare/internal/catalog"
	"mediashare/internal/config"
	"mediashare/internal/daap"
	"mediashare/internal/discovery"
	"mediashare/internal/library"
	"mediashare/internal/media"
	"mediashare/internal/playlist"
	"mediashare/internal/server"
	"mediashare/internal/share"
	"mediashare/internal/storage"
	"mediashare/internal/supervisor"
	"mediashare/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := setupLogger(cfg.Logging)

	logger.Info().
		Str("version", api.Version).
		Msg("starting mediashare")

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	defer store.Close()

	metadataExtractor := media.NewMetadataExtractor(logger)
	thumbnailGenerator := media.NewThumbnailGenerator(cfg.Artwork.OutputDir, logger)

	if metadataExtractor.IsAvailable() {
		logger.Info().Msg("ffprobe available - duration enrichment enabled")
	} else {
		logger.Warn().Msg("ffprobe not found - duration enrichment disabled")
	}
	if thumbnailGenerator.IsAvailable() {
		logger.Info().Msg("ffmpeg available - video artwork enabled")
	} else {
		logger.Warn().Msg("ffmpeg not found - video artwork disabled")
	}

	artwork := media.NewArtworkService(
		thumbnailGenerator,
		cfg.Artwork.CacheCapacity,
		cfg.Artwork.CacheMaxSize,
		logger,
	)

	translations, err := wire.NewCache(cfg.Sharing.TranslationCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create translation cache")
	}

	cat := catalog.New()
	index := playlist.NewIndex()
	feed := library.NewFeed(cat, index, logger, translations, artwork)
	if err := feed.Load(store); err != nil {
		logger.Fatal().Err(err).Msg("failed to load library")
	}

	scanner := media.NewScanner(store, feed, logger)
	enricher := media.NewEnricher(
		store,
		metadataExtractor,
		feed,
		scanner.Locker(),
		cfg.Enrich.BatchSize,
		cfg.Enrich.Delay,
		logger,
	)
	scanner.SetAfterScan(enricher.Trigger)

	seed := cfg.Database.Path
	if abs, err := filepath.Abs(seed); err == nil {
		seed = abs
	}
	identity := daap.NewIdentity(seed)

	advertiser := discovery.NewMDNS(cfg.Sharing.DiscoveryTimeout, identity.DatabaseID(), logger)
	controller := share.New(
		shareSettings(cfg.Sharing),
		func(settings share.Settings) http.Handler {
			return daap.New(
				daap.Config{Name: settings.Name, PersistentID: identity.PersistentID},
				cat,
				index,
				translations,
				artwork,
				logger,
			)
		},
		advertiser,
		logger,
	)

	handler := api.NewHandler(store, cat, feed, logger, cfg.Library.Path, cfg.Library.Name)
	handler.SetScanner(scanner)
	handler.SetArtwork(artwork)
	handler.SetShare(controller)

	srv := server.New(cfg.Server, handler, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.AddAPIService(supervisor.NewHTTPService("admin-http", srv, supervisor.DefaultTreeConfig().ShutdownTimeout))
	tree.AddLibraryService(enricher)
	if *configPath != "" {
		tree.AddLibraryService(config.NewWatcher(*configPath, func(next *config.Config) {
			reconcile(ctx, controller, next.Sharing, logger)
		}, logger))
	}
	if cfg.Library.Path != "" && cfg.Library.RescanInterval > 0 {
		tree.AddLibraryService(supervisor.NewTicker("rescan", cfg.Library.RescanInterval, func(ctx context.Context) {
			if err := scanner.ScanContext(ctx, cfg.Library.Path, cfg.Library.Name); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn().Err(err).Msg("periodic scan failed")
			}
		}))
	}

	if cfg.Library.Path != "" {
		go func() {
			logger.Info().
				Str("path", cfg.Library.Path).
				Str("name", cfg.Library.Name).
				Msg("starting initial library scan")
			if err := scanner.ScanContext(ctx, cfg.Library.Path, cfg.Library.Name); err != nil {
				logger.Error().Err(err).Msg("initial scan failed")
				return
			}
			logger.Info().Msg("initial scan completed")
		}()
	}

	reconcile(ctx, controller, cfg.Sharing, logger)

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("supervisor stopped")
	}

	logger.Info().Msg("received shutdown signal")
	if err := controller.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to stop share")
	}

	logger.Info().Msg("server stopped")
}

func shareSettings(cfg config.SharingConfig) share.Settings {
	return share.Settings{
		Enabled:      cfg.Enabled,
		Discoverable: cfg.Discoverable,
		Name:         cfg.Name,
		Host:         cfg.Host,
		Port:         cfg.Port,
	}
}

func reconcile(ctx context.Context, controller *share.Controller, cfg config.SharingConfig, logger zerolog.Logger) {
	err := controller.Reconcile(ctx, shareSettings(cfg))
	switch {
	case err == nil:
	case errors.Is(err, discovery.ErrUnavailable):
		logger.Warn().Err(err).Msg("share running without discovery")
	default:
		logger.Error().Err(err).Msg("failed to apply sharing settings")
	}
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.Pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stdout).
		With().
		Timestamp().
		Logger()
}
