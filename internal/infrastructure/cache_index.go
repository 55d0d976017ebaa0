package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/afero"
	"github.com/yourusername/hfcache-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// IncomingDir holds in-flight downloads
	IncomingDir = ".incoming"
	// TrashDir holds folders staged for removal
	TrashDir = ".trash"
)

// CacheIndex reads the cache root and reports what is stored in it
type CacheIndex struct {
	fs      afero.Fs
	root    string
	workers int
	timeout time.Duration
	lock    *sync.RWMutex
	logger  *zap.Logger
}

// NewCacheIndex creates a new cache index over fs
func NewCacheIndex(fs afero.Fs, cfg domain.CacheConfig, logger *zap.Logger) *CacheIndex {
	workers := cfg.ScanWorkers
	if workers <= 0 {
		workers = 1
	}
	return &CacheIndex{
		fs:      fs,
		root:    cfg.RootDir,
		workers: workers,
		timeout: cfg.ScanTimeout,
		lock:    RootLock(cfg.RootDir),
		logger:  logger,
	}
}

// Root returns the cache root directory
func (i *CacheIndex) Root() string {
	return i.root
}

// Scan walks the cache root once. The returned snapshot is marked partial when
// the scan timeout expired before every folder was read.
func (i *CacheIndex) Scan(ctx context.Context) (*domain.CacheSnapshot, error) {
	i.lock.RLock()
	defer i.lock.RUnlock()

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	folders, err := listRepoFolders(i.fs, i.root)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewCacheSnapshot(nil, time.Now(), false), nil
		}
		return nil, domain.ErrIO(err, "failed to read cache root %s", i.root)
	}

	var truncated atomic.Bool
	results := make([][]domain.CacheEntry, len(folders))

	var g errgroup.Group
	g.SetLimit(i.workers)
	for idx, folder := range folders {
		g.Go(func() error {
			entries, complete := i.walkFolder(ctx, folder)
			if !complete {
				truncated.Store(true)
			}
			results[idx] = entries
			return nil
		})
	}
	_ = g.Wait()

	var entries []domain.CacheEntry
	for _, r := range results {
		entries = append(entries, r...)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Path < entries[b].Path })

	snapshot := domain.NewCacheSnapshot(entries, time.Now(), truncated.Load())
	if snapshot.Stats.Partial {
		i.logger.Warn("Cache scan timed out, returning partial results",
			zap.String("root", i.root),
			zap.Duration("timeout", i.timeout),
			zap.Int("files", snapshot.Stats.Files))
	}
	return snapshot, nil
}

// walkFolder collects regular files below one repository folder. It reports
// false when ctx ended before the walk finished.
func (i *CacheIndex) walkFolder(ctx context.Context, folder string) ([]domain.CacheEntry, bool) {
	var entries []domain.CacheEntry
	base := filepath.Join(i.root, folder)

	err := afero.Walk(i.fs, base, func(path string, info os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			i.logger.Warn("Skipping unreadable cache path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(i.root, path)
		if relErr != nil {
			return nil
		}
		entries = append(entries, domain.CacheEntry{
			Path:         filepath.ToSlash(rel),
			Size:         info.Size(),
			LastAccessed: accessTime(info),
			Folder:       folder,
		})
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return entries, false
	}
	return entries, true
}

// listRepoFolders returns the visible top-level directories of root in name
// order. Hidden directories, loose files and symlinks are not repositories.
func listRepoFolders(fs afero.Fs, root string) ([]string, error) {
	infos, err := afero.ReadDir(fs, root)
	if err != nil {
		return nil, err
	}
	var folders []string
	for _, info := range infos {
		if !info.IsDir() || strings.HasPrefix(info.Name(), ".") {
			continue
		}
		folders = append(folders, info.Name())
	}
	return folders, nil
}
