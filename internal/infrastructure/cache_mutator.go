package infrastructure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/yourusername/hfcache-go/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// CacheMutator removes repositories from the cache root
type CacheMutator struct {
	fs      afero.Fs
	root    string
	workers int
	lock    *sync.RWMutex
	logger  *zap.Logger
}

// NewCacheMutator creates a new cache mutator over fs
func NewCacheMutator(fs afero.Fs, cfg domain.CacheConfig, logger *zap.Logger) *CacheMutator {
	workers := cfg.ScanWorkers
	if workers <= 0 {
		workers = 1
	}
	return &CacheMutator{
		fs:      fs,
		root:    cfg.RootDir,
		workers: workers,
		lock:    RootLock(cfg.RootDir),
		logger:  logger,
	}
}

// Remove deletes one repository folder and returns its name. repoName is
// either a folder name, the repository part of exactly one folder
// ("arxiv-nlp" matches "lysandre--arxiv-nlp"), or the last path segment of a
// listed file ("config.json" matches the only folder holding a config.json).
func (m *CacheMutator) Remove(ctx context.Context, repoName string) (string, error) {
	if err := validateRepoName(repoName); err != nil {
		return "", err
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	folders, err := listRepoFolders(m.fs, m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.ErrNotFound("repository %s not found in cache", repoName)
		}
		return "", domain.ErrIO(err, "failed to read cache root %s", m.root)
	}

	folder, err := resolveFolder(folders, repoName)
	if domain.IsNotFound(err) {
		folder, err = pickFolder(m.foldersHoldingFile(folders, repoName), repoName)
	}
	if err != nil {
		return "", err
	}

	if err := m.discard(folder); err != nil {
		return "", err
	}

	m.logger.Info("Removed repository from cache",
		zap.String("repo_name", repoName),
		zap.String("folder", folder))
	return folder, nil
}

// Clear deletes every repository folder. Folders that could not be removed
// are reported through a *domain.ClearError; the others stay removed.
func (m *CacheMutator) Clear(ctx context.Context) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	folders, err := listRepoFolders(m.fs, m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, domain.ErrIO(err, "failed to read cache root %s", m.root)
	}

	var (
		mu       sync.Mutex
		removed  int
		failures = make(map[string]error)
	)

	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, folder := range folders {
		g.Go(func() error {
			err := ctx.Err()
			if err == nil {
				err = m.discard(folder)
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[folder] = err
			} else {
				removed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := m.purgeTrash(); err != nil {
		m.logger.Warn("Failed to purge trash after clear", zap.Error(err))
	}

	m.logger.Info("Cleared cache",
		zap.String("root", m.root),
		zap.Int("removed", removed),
		zap.Int("failed", len(failures)))

	return removed, domain.NewClearError(failures)
}

// PurgeTrash removes folders left behind by interrupted removals
func (m *CacheMutator) PurgeTrash() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.purgeTrash()
}

func (m *CacheMutator) purgeTrash() error {
	trash := filepath.Join(m.root, TrashDir)
	if err := m.fs.RemoveAll(trash); err != nil {
		return domain.ErrIO(err, "failed to purge %s", trash)
	}
	return nil
}

// discard moves folder out of the visible cache and then deletes it. Once the
// rename succeeds the folder counts as removed even if the delete fails.
func (m *CacheMutator) discard(folder string) error {
	trash := filepath.Join(m.root, TrashDir)
	if err := m.fs.MkdirAll(trash, 0o755); err != nil {
		return domain.ErrIO(err, "failed to create %s", trash)
	}

	src := filepath.Join(m.root, folder)
	staged := filepath.Join(trash, folder+"-"+uuid.New().String())
	if err := m.fs.Rename(src, staged); err != nil {
		return domain.ErrIO(err, "failed to remove %s", folder)
	}

	if err := m.fs.RemoveAll(staged); err != nil {
		m.logger.Warn("Failed to delete staged folder, will retry on next purge",
			zap.String("folder", folder),
			zap.String("staged", staged),
			zap.Error(err))
	}
	return nil
}

func validateRepoName(name string) error {
	if name == "" {
		return domain.ErrInvalidRequest("repository name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") || strings.HasPrefix(name, ".") {
		return domain.ErrInvalidRequestf("invalid repository name: %s", name)
	}
	return nil
}

// errFileFound stops a folder walk at the first match
var errFileFound = errors.New("file found")

// foldersHoldingFile returns the folders with a regular file named name at any
// depth. Only called while the root lock is held.
func (m *CacheMutator) foldersHoldingFile(folders []string, name string) []string {
	var matches []string
	for _, folder := range folders {
		err := afero.Walk(m.fs, filepath.Join(m.root, folder), func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil
			}
			if info.Mode().IsRegular() && info.Name() == name {
				return errFileFound
			}
			return nil
		})
		if errors.Is(err, errFileFound) {
			matches = append(matches, folder)
		}
	}
	return matches
}

func resolveFolder(folders []string, repoName string) (string, error) {
	var candidates []string
	for _, folder := range folders {
		if folder == repoName {
			return folder, nil
		}
		if domain.RepoNameOfFolder(folder) == repoName {
			candidates = append(candidates, folder)
		}
	}
	return pickFolder(candidates, repoName)
}

// pickFolder accepts exactly one candidate
func pickFolder(candidates []string, repoName string) (string, error) {
	switch len(candidates) {
	case 0:
		return "", domain.ErrNotFound("repository %s not found in cache", repoName)
	case 1:
		return candidates[0], nil
	default:
		return "", domain.ErrConflict(candidates, "repository name %s matches %d folders: %s",
			repoName, len(candidates), strings.Join(candidates, ", "))
	}
}
