package app

import (
	"context"
	"errors"
	"time"

	"github.com/yourusername/hfcache-go/internal/domain"
	"github.com/yourusername/hfcache-go/internal/infrastructure"
	"github.com/yourusername/hfcache-go/internal/metrics"
	"github.com/yourusername/hfcache-go/pkg/logger"
	"go.uber.org/zap"
)

// CacheService answers cache queries and applies removals
type CacheService struct {
	index   *infrastructure.CacheIndex
	mutator *infrastructure.CacheMutator
	store   domain.ProgressStore
	log     *logger.LoggerAdapter
}

// NewCacheService creates a new cache service
func NewCacheService(
	index *infrastructure.CacheIndex,
	mutator *infrastructure.CacheMutator,
	store domain.ProgressStore,
	log *logger.LoggerAdapter,
) *CacheService {
	return &CacheService{
		index:   index,
		mutator: mutator,
		store:   store,
		log:     log,
	}
}

// Snapshot scans the cache once
func (s *CacheService) Snapshot(ctx context.Context) (*domain.CacheSnapshot, error) {
	start := time.Now()
	snap, err := s.index.Scan(ctx)
	if err != nil {
		s.log.LogError(logger.CategoryCache, "Cache scan failed", zap.String("root", s.index.Root()), zap.Error(err))
		return nil, err
	}
	metrics.RecordCacheScan(time.Since(start), snap.Stats.Size, snap.Stats.Files)
	return snap, nil
}

// Stats returns cache totals
func (s *CacheService) Stats(ctx context.Context) (*domain.CacheStats, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &snap.Stats, nil
}

// ListFiles returns every cached file ordered by path
func (s *CacheService) ListFiles(ctx context.Context) ([]domain.CacheEntry, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entries, nil
}

// Remove deletes one repository from the cache
func (s *CacheService) Remove(ctx context.Context, repoName string) (string, error) {
	folder, err := s.mutator.Remove(ctx, repoName)
	if err != nil {
		if !domain.IsNotFound(err) && !domain.IsInvalidRequest(err) && !domain.IsConflict(err) {
			metrics.RecordCacheRemovals(0, 1)
			s.log.LogError(logger.CategoryCache, "Failed to remove repository",
				zap.String("repo_name", repoName), zap.Error(err))
		}
		return "", err
	}

	metrics.RecordCacheRemovals(1, 0)
	s.log.LogCacheEvent("repository_removed",
		zap.String("repo_name", repoName),
		zap.String("folder", folder))
	return folder, nil
}

// Clear deletes every repository, then drops finished download records
// since the files they point at are gone
func (s *CacheService) Clear(ctx context.Context) (int, error) {
	removed, err := s.mutator.Clear(ctx)

	var clearErr *domain.ClearError
	failed := 0
	if errors.As(err, &clearErr) {
		failed = len(clearErr.FailedFolders)
	}
	metrics.RecordCacheRemovals(removed, failed)

	if err != nil && clearErr == nil {
		s.log.LogError(logger.CategoryCache, "Failed to clear cache", zap.Error(err))
		return removed, err
	}

	evicted := s.evictFinished()
	if clearErr != nil {
		s.log.LogError(logger.CategoryCache, "Cache cleared with failures",
			zap.Int("removed", removed),
			zap.Strings("failed_folders", clearErr.FailedFolders),
			zap.Error(err))
		return removed, err
	}

	s.log.LogCacheEvent("cache_cleared",
		zap.Int("removed", removed),
		zap.Int("evicted_records", evicted))
	return removed, nil
}

func (s *CacheService) evictFinished() int {
	downloads, err := s.store.List()
	if err != nil {
		s.log.LogError(logger.CategoryCache, "Failed to list downloads after clear", zap.Error(err))
		return 0
	}
	evicted := 0
	for _, d := range downloads {
		if !d.IsTerminal() {
			continue
		}
		if err := s.store.Evict(d.ID); err == nil {
			evicted++
		}
	}
	return evicted
}
