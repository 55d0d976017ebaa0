package app

import (
	"context"
	"strings"
	"sync"
	"time"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/yourusername/hfcache-go/internal/domain"
	"github.com/yourusername/hfcache-go/internal/infrastructure"
	"github.com/yourusername/hfcache-go/internal/metrics"
	"github.com/yourusername/hfcache-go/pkg/logger"
	"go.uber.org/zap"
)

// unknownSizeScale shapes the progress curve when the server does not send a
// Content-Length: after this many bytes progress reads 49%.
const unknownSizeScale = 8 << 20

// DownloadManager runs downloads in the background and records their
// progress in a ProgressStore
type DownloadManager struct {
	store     domain.ProgressStore
	fetcher   domain.Fetcher
	artifacts *infrastructure.ArtifactStore
	events    *infrastructure.Broadcaster
	config    domain.DownloadConfig
	log       *logger.LoggerAdapter
	logger    *zap.Logger

	semaphore chan struct{}
	baseCtx   context.Context
	stopAll   context.CancelFunc

	mu     sync.Mutex
	tasks  map[string]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewDownloadManager creates a new download manager
func NewDownloadManager(
	store domain.ProgressStore,
	fetcher domain.Fetcher,
	artifacts *infrastructure.ArtifactStore,
	events *infrastructure.Broadcaster,
	config domain.DownloadConfig,
	log *logger.LoggerAdapter,
) *DownloadManager {
	limit := config.ConcurrentLimit
	if limit < 1 {
		limit = 1
	}
	baseCtx, stopAll := context.WithCancel(context.Background())

	return &DownloadManager{
		store:     store,
		fetcher:   fetcher,
		artifacts: artifacts,
		events:    events,
		config:    config,
		log:       log,
		logger:    log.General(),
		semaphore: make(chan struct{}, limit),
		baseCtx:   baseCtx,
		stopAll:   stopAll,
		tasks:     make(map[string]context.CancelFunc),
	}
}

// Start records a new queued download and transfers it in the background.
// It returns as soon as the record exists.
func (dm *DownloadManager) Start(repoID, filename string) (string, error) {
	repoID = strings.TrimSpace(repoID)
	filename = strings.TrimSpace(filename)
	if err := domain.ValidateDownloadRequest(repoID, filename); err != nil {
		return "", err
	}

	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.closed {
		return "", platformerrors.New(platformerrors.CodeUnavailable, "download manager is shutting down")
	}

	download := domain.NewDownload(repoID, filename)
	if err := dm.store.Put(download); err != nil {
		return "", err
	}
	dm.events.Publish(download)

	ctx, cancel := context.WithCancel(dm.baseCtx)
	dm.tasks[download.ID] = cancel
	dm.wg.Add(1)

	metrics.RecordDownloadStarted()
	dm.log.LogDownloadEvent("download_queued",
		zap.String("id", download.ID),
		zap.String("repo_id", repoID),
		zap.String("filename", filename))

	go dm.run(ctx, download)

	return download.ID, nil
}

// Get returns the current record for id
func (dm *DownloadManager) Get(id string) (*domain.Download, error) {
	return dm.store.Get(id)
}

// List returns every known download ordered by start time
func (dm *DownloadManager) List() ([]*domain.Download, error) {
	return dm.store.List()
}

// Cancel asks a queued or running download to stop. The task observes the
// request at its next safe point and marks the record cancelled.
func (dm *DownloadManager) Cancel(id string) error {
	download, err := dm.store.Get(id)
	if err != nil {
		return err
	}
	if download.IsTerminal() {
		return domain.ErrInvalidState("download %s is already %s", id, download.Status)
	}

	dm.mu.Lock()
	cancel, ok := dm.tasks[id]
	dm.mu.Unlock()
	if !ok {
		// The task finished between the two lookups
		current, err := dm.store.Get(id)
		if err != nil {
			return err
		}
		return domain.ErrInvalidState("download %s is already %s", id, current.Status)
	}

	cancel()
	dm.log.LogDownloadEvent("download_cancel_requested", zap.String("id", id))
	return nil
}

// Accepting reports whether Start still accepts new downloads
func (dm *DownloadManager) Accepting() bool {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return !dm.closed
}

// Shutdown cancels every in-flight download and waits for the tasks to
// finish, or for ctx to end
func (dm *DownloadManager) Shutdown(ctx context.Context) error {
	dm.mu.Lock()
	dm.closed = true
	dm.mu.Unlock()

	dm.stopAll()

	done := make(chan struct{})
	go func() {
		dm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the only writer of download after Start returns
func (dm *DownloadManager) run(ctx context.Context, download *domain.Download) {
	defer dm.wg.Done()
	defer func() {
		dm.mu.Lock()
		if cancel, ok := dm.tasks[download.ID]; ok {
			cancel()
			delete(dm.tasks, download.ID)
		}
		dm.mu.Unlock()
	}()

	select {
	case dm.semaphore <- struct{}{}:
		defer func() { <-dm.semaphore }()
	case <-ctx.Done():
		dm.finishCancelled(download, nil)
		return
	}
	if ctx.Err() != nil {
		dm.finishCancelled(download, nil)
		return
	}

	download.MarkRunning()
	dm.save(download)
	metrics.IncActiveDownloads()
	defer metrics.DecActiveDownloads()

	dm.log.LogDownloadEvent("download_started",
		zap.String("id", download.ID),
		zap.String("repo_id", download.RepoID),
		zap.String("filename", download.Filename))

	pending, err := dm.artifacts.Begin(download.RepoID, download.Filename)
	if err != nil {
		dm.finishFailed(download, nil, err)
		return
	}

	if err := dm.transfer(ctx, download, pending); err != nil {
		if ctx.Err() != nil {
			dm.finishCancelled(download, pending)
			return
		}
		dm.finishFailed(download, pending, err)
		return
	}

	if ctx.Err() != nil {
		dm.finishCancelled(download, pending)
		return
	}

	path, err := pending.Commit()
	if err != nil {
		dm.finishFailed(download, nil, err)
		return
	}

	download.MarkCompleted(path)
	dm.save(download)
	metrics.RecordDownloadFinished(string(domain.StatusCompleted))
	dm.log.LogDownloadEvent("download_completed",
		zap.String("id", download.ID),
		zap.String("repo_id", download.RepoID),
		zap.String("file", path),
		zap.Int64("bytes", download.BytesDownloaded),
		zap.Int("attempts", download.Attempts))
}

// transfer fetches the file into pending, retrying retryable failures
func (dm *DownloadManager) transfer(ctx context.Context, download *domain.Download, pending *infrastructure.PendingArtifact) error {
	var lastErr error
	for attempt := 0; attempt <= dm.config.MaxRetries; attempt++ {
		if attempt > 0 {
			dm.logger.Info("Retrying download",
				zap.String("id", download.ID),
				zap.Int("attempt", attempt),
				zap.Int("max_retries", dm.config.MaxRetries))
			metrics.RecordDownloadRetry()

			select {
			case <-time.After(dm.config.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}

			if err := pending.Reset(); err != nil {
				return err
			}
		}

		download.IncrementAttempt()
		dm.save(download)

		n, err := dm.fetcher.Fetch(ctx, download.RepoID, download.Filename, pending, dm.progressFunc(download))
		metrics.AddBytesDownloaded(n)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		dm.logger.Warn("Download attempt failed",
			zap.String("id", download.ID),
			zap.Int("attempt", attempt),
			zap.Bool("retryable", platformerrors.IsRetryable(err)),
			zap.Error(err))

		if !platformerrors.IsRetryable(err) {
			break
		}
	}
	return lastErr
}

// progressFunc writes the record only when the whole percentage grows or the
// total size is first learned
func (dm *DownloadManager) progressFunc(download *domain.Download) domain.ProgressFunc {
	return func(written, total int64) {
		percent := progressPercent(written, total)
		learnedTotal := total > 0 && total != download.TotalBytes
		if percent <= download.Progress && !learnedTotal {
			return
		}
		if download.SetProgress(percent, written, total) {
			dm.save(download)
		}
	}
}

// progressPercent maps transferred bytes to 0..99. Without a known total it
// follows a curve that keeps rising but never reaches 99.
func progressPercent(written, total int64) int {
	if written <= 0 {
		return 0
	}
	var percent int64
	if total > 0 {
		percent = written * 100 / total
	} else {
		percent = written * 99 / (written + unknownSizeScale)
	}
	if percent > 99 {
		percent = 99
	}
	return int(percent)
}

func (dm *DownloadManager) finishFailed(download *domain.Download, pending *infrastructure.PendingArtifact, cause error) {
	if pending != nil {
		if err := pending.Abort(); err != nil {
			dm.logger.Warn("Failed to discard partial download", zap.String("id", download.ID), zap.Error(err))
		}
	}
	if !download.MarkFailed(cause) {
		return
	}
	dm.save(download)
	metrics.RecordDownloadFinished(string(domain.StatusFailed))
	dm.log.LogError(logger.CategoryDownload, "Download failed",
		zap.String("id", download.ID),
		zap.String("repo_id", download.RepoID),
		zap.String("filename", download.Filename),
		zap.Int("attempts", download.Attempts),
		zap.Error(cause))
}

func (dm *DownloadManager) finishCancelled(download *domain.Download, pending *infrastructure.PendingArtifact) {
	if pending != nil {
		if err := pending.Abort(); err != nil {
			dm.logger.Warn("Failed to discard partial download", zap.String("id", download.ID), zap.Error(err))
		}
	}
	if !download.MarkCancelled() {
		return
	}
	dm.save(download)
	metrics.RecordDownloadFinished(string(domain.StatusCancelled))
	dm.log.LogDownloadEvent("download_cancelled",
		zap.String("id", download.ID),
		zap.String("repo_id", download.RepoID),
		zap.String("filename", download.Filename))
}

func (dm *DownloadManager) save(download *domain.Download) {
	if err := dm.store.Put(download); err != nil {
		dm.logger.Error("Failed to save download", zap.String("id", download.ID), zap.Error(err))
	}
	dm.events.Publish(download)
}
