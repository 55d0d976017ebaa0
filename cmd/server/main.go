package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/hfcache-go/api"
	"github.com/yourusername/hfcache-go/api/handlers"
	"github.com/yourusername/hfcache-go/internal/app"
	"github.com/yourusername/hfcache-go/internal/domain"
	"github.com/yourusername/hfcache-go/internal/infrastructure"
	"github.com/yourusername/hfcache-go/pkg/logger"
)

const shutdownTimeout = 30 * time.Second

var configPath = flag.String("config", "", "Path to config file")

func main() {
	flag.Parse()

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(config *domain.Config) error {
	general, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Categorized log files are optional
	var multiLog *logger.MultiLogger
	if config.Logging.LogsDir != "" {
		multiLog, err = logger.NewMultiLogger(logger.MultiLoggerConfig{
			Level:   config.Logging.Level,
			LogsDir: config.Logging.LogsDir,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize category logs: %w", err)
		}
		defer multiLog.Close()
	}

	logAdapter := logger.NewLoggerAdapter(general, multiLog)
	defer logAdapter.Sync()
	log := logAdapter.General()

	log.Info("Starting hfcache server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("cache_root", config.Cache.RootDir),
		zap.String("progress_backend", config.Progress.Backend))

	store, closeStore, err := openProgressStore(config.Progress)
	if err != nil {
		return err
	}
	defer closeStore()

	fs := afero.NewOsFs()
	index := infrastructure.NewCacheIndex(fs, config.Cache, log)
	mutator := infrastructure.NewCacheMutator(fs, config.Cache, log)
	artifacts := infrastructure.NewArtifactStore(fs, config.Cache.RootDir)

	// Leftovers from a previous process are never valid
	if err := mutator.PurgeTrash(); err != nil {
		log.Warn("Failed to purge trash", zap.Error(err))
	}
	if err := artifacts.PurgeIncoming(); err != nil {
		log.Warn("Failed to purge incoming downloads", zap.Error(err))
	}

	events := infrastructure.NewBroadcaster()
	fetcher := infrastructure.NewHubFetcher(config.Download, log)
	downloadMgr := app.NewDownloadManager(store, fetcher, artifacts, events, config.Download, logAdapter)
	cacheSvc := app.NewCacheService(index, mutator, store, logAdapter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sweeper *app.Sweeper
	if config.Progress.TTL > 0 && config.Progress.SweepInterval > 0 {
		sweeper = app.NewSweeper(store, config.Progress, logAdapter)
		if err := sweeper.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sweeper: %w", err)
		}
	}

	router := api.SetupRouter(api.Services{
		Cache:     cacheSvc,
		Downloads: downloadMgr,
		Events:    events,
		Sweeper:   sweeper,
		Log:       logAdapter,
		CacheRoot: config.Cache.RootDir,
		LogsDir:   config.Logging.LogsDir,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Received shutdown signal")
	case err := <-serverErr:
		log.Error("HTTP server failed", zap.Error(err))
		return err
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := downloadMgr.Shutdown(shutdownCtx); err != nil {
		log.Error("Downloads did not stop in time", zap.Error(err))
	}

	if sweeper != nil && sweeper.IsRunning() {
		if err := sweeper.Stop(); err != nil {
			log.Error("Error stopping sweeper", zap.Error(err))
		}
	}

	log.Info("Server exited")
	return nil
}

// openProgressStore builds the configured store and a func that releases it
func openProgressStore(config domain.ProgressConfig) (domain.ProgressStore, func(), error) {
	switch config.Backend {
	case domain.ProgressBackendSQLite:
		store, err := infrastructure.NewSQLiteProgressStore(config.DatabasePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open progress store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return infrastructure.NewMemoryProgressStore(), func() {}, nil
	}
}
