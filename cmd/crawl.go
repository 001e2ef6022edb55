package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcstorage "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cloudpubsub "cloud.google.com/go/pubsub"

	"github.com/pressfeed/harvester/internal/api"
	archivegcs "github.com/pressfeed/harvester/internal/archive/gcs"
	archivelocal "github.com/pressfeed/harvester/internal/archive/local"
	"github.com/pressfeed/harvester/internal/browser"
	"github.com/pressfeed/harvester/internal/clock/system"
	"github.com/pressfeed/harvester/internal/config"
	"github.com/pressfeed/harvester/internal/dismiss"
	"github.com/pressfeed/harvester/internal/extract"
	"github.com/pressfeed/harvester/internal/harvest"
	"github.com/pressfeed/harvester/internal/hash/sha256"
	"github.com/pressfeed/harvester/internal/id/uuid"
	"github.com/pressfeed/harvester/internal/logging"
	"github.com/pressfeed/harvester/internal/metrics"
	"github.com/pressfeed/harvester/internal/progress"
	memorypublisher "github.com/pressfeed/harvester/internal/publisher/memory"
	pubsubpublisher "github.com/pressfeed/harvester/internal/publisher/pubsub"
	storejsonfile "github.com/pressfeed/harvester/internal/store/jsonfile"
	storepostgres "github.com/pressfeed/harvester/internal/store/postgres"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run harvest passes over the configured sources",
		Long: `Drives the headless browser over every configured listing, extracts
articles, and appends new ones to the article store. Runs a single pass by
default; with crawler.continuous set, passes repeat on a fixed interval.`,
		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	clock := system.New()
	hasher := sha256.New()
	idGen := uuid.New()

	sink, err := progress.NewFileSink(cfg.ProgressPath(), cfg.ProgressBackupPath(), clock)
	if err != nil {
		return fmt.Errorf("open progress sink: %w", err)
	}
	defer sink.Close()
	sink.Signal("starting the harvester")

	store, closeStore, err := buildStore(ctx, cfg, hasher, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}
	publisher, closePublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePublisher()

	session, err := browser.New(browser.Config{
		Headless:   cfg.Crawler.Headless,
		UserAgent:  cfg.Crawler.UserAgent,
		NavTimeout: cfg.NavTimeout(),
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("start browser session: %w", err)
	}
	defer session.Close()

	engine := harvest.NewEngine(
		session,
		store,
		dismiss.New(cfg.DismissTimeout(), logger.Named("dismiss")),
		extract.New(extract.Config{LocatorTimeout: cfg.LocatorTimeout()}, clock, hasher, logger.Named("extract")),
		sink,
		clock,
		idGen,
		archive,
		publisher,
		harvest.EngineConfig{
			SettleDelay: cfg.SettleDelay(),
			NavTimeout:  cfg.NavTimeout(),
			Scroll: harvest.ScrollOptions{
				Settle:     cfg.ScrollSettle(),
				MaxRounds:  cfg.Crawler.Scroll.MaxRounds,
				MaxElapsed: cfg.ScrollMaxElapsed(),
			},
			ArchivePrefix: cfg.Archive.Prefix,
			PublishTopic:  cfg.Publisher.Topic,
		},
		logger.Named("engine"),
	)

	stopDebug := startDebugListener(cfg, store, logger)
	defer stopDebug()

	if !cfg.Crawler.Continuous {
		return engine.Run(ctx, cfg.Sources)
	}

	for {
		if err := engine.Run(ctx, cfg.Sources); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		logger.Info("pass interval wait", zap.Duration("interval", cfg.PassInterval()))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.PassInterval()):
		}
	}
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.Logging.File != "" {
		return logging.NewWithFile(cfg.Logging.Development, cfg.Logging.File)
	}
	return logging.New(cfg.Logging.Development)
}

func buildStore(ctx context.Context, cfg config.Config, hasher harvest.Hasher, logger *zap.Logger) (harvest.ArticleStore, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		store, err := storepostgres.New(ctx, storepostgres.Config{
			DSN:   cfg.Store.DSN,
			Table: cfg.Store.Table,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store.Close, nil
	default:
		store, err := storejsonfile.New(storejsonfile.Config{
			Path:  cfg.Store.Path,
			Shape: storejsonfile.Shape(cfg.Store.Shape),
		}, hasher, logger.Named("store"))
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		return store, func() {}, nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (harvest.BlobStore, error) {
	if !cfg.Archive.Enabled {
		return nil, nil
	}
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create storage client: %w", err)
		}
		return archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.Bucket})
	default:
		return archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.Dir})
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (harvest.Publisher, func(), error) {
	if !cfg.Publisher.Enabled {
		return nil, func() {}, nil
	}
	if cfg.Publisher.Backend == "memory" {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := cloudpubsub.NewClient(ctx, cfg.Publisher.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, nil, err
	}
	return pub, func() { _ = pub.Close() }, nil
}

func startDebugListener(cfg config.Config, store harvest.ArticleStore, logger *zap.Logger) func() {
	if cfg.Server.DebugAddr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              cfg.Server.DebugAddr,
		Handler:           api.NewServer(store, logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("debug listener started", zap.String("addr", cfg.Server.DebugAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("debug listener error", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("debug listener shutdown error", zap.Error(err))
		}
	}
}
