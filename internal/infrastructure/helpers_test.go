package infrastructure

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/hfcache-go/internal/domain"
)

func writeFile(t *testing.T, root, rel string, size int) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

func testCacheConfig(root string) domain.CacheConfig {
	return domain.CacheConfig{
		RootDir:     root,
		ScanTimeout: 10 * time.Second,
		ScanWorkers: 2,
	}
}

// slowStatFs delays every Stat so scans can be made to run past their deadline.
type slowStatFs struct {
	afero.Fs
	delay time.Duration
}

func (fs slowStatFs) Stat(name string) (os.FileInfo, error) {
	time.Sleep(fs.delay)
	return fs.Fs.Stat(name)
}

// failingRenameFs refuses to rename one folder.
type failingRenameFs struct {
	afero.Fs
	folder string
}

func (fs failingRenameFs) Rename(oldname, newname string) error {
	if filepath.Base(oldname) == fs.folder {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrPermission}
	}
	return fs.Fs.Rename(oldname, newname)
}
