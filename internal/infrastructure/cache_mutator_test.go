package infrastructure

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	platformerrors "github.com/jmgilman/go/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/hfcache-go/internal/domain"
	"go.uber.org/zap"
)

func newTestMutator(t *testing.T, fs afero.Fs) (*CacheMutator, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "lysandre--arxiv-nlp/config.json", 10)
	writeFile(t, root, "google--bert-base/config.json", 20)
	writeFile(t, root, "gpt2/config.json", 30)
	return NewCacheMutator(fs, testCacheConfig(root), zap.NewNop()), root
}

func TestCacheMutator_RemoveExactFolder(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())

	folder, err := mutator.Remove(context.Background(), "lysandre--arxiv-nlp")
	require.NoError(t, err)
	assert.Equal(t, "lysandre--arxiv-nlp", folder)

	assert.NoDirExists(t, filepath.Join(root, "lysandre--arxiv-nlp"))
	assert.DirExists(t, filepath.Join(root, "google--bert-base"))

	trash, err := os.ReadDir(filepath.Join(root, TrashDir))
	require.NoError(t, err)
	assert.Empty(t, trash)
}

func TestCacheMutator_RemoveByRepoName(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())

	folder, err := mutator.Remove(context.Background(), "arxiv-nlp")
	require.NoError(t, err)
	assert.Equal(t, "lysandre--arxiv-nlp", folder)
	assert.NoDirExists(t, filepath.Join(root, "lysandre--arxiv-nlp"))

	folder, err = mutator.Remove(context.Background(), "gpt2")
	require.NoError(t, err)
	assert.Equal(t, "gpt2", folder)
}

func TestCacheMutator_RemoveNotFound(t *testing.T) {
	fs := afero.NewOsFs()
	mutator, root := newTestMutator(t, fs)
	index := NewCacheIndex(fs, testCacheConfig(root), zap.NewNop())

	before, err := index.Scan(context.Background())
	require.NoError(t, err)

	_, err = mutator.Remove(context.Background(), "does-not-exist")
	assert.True(t, domain.IsNotFound(err))

	after, err := index.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, before.Entries, after.Entries)
	assert.Equal(t, before.Stats.Size, after.Stats.Size)
	assert.Equal(t, before.Stats.Folders, after.Stats.Folders)
	assert.Equal(t, before.Stats.Files, after.Stats.Files)
}

func TestCacheMutator_RemoveByFileName(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())
	writeFile(t, root, "lysandre--arxiv-nlp/onnx/model.onnx", 5)
	writeFile(t, root, "lysandre--arxiv-nlp/vocab.txt", 5)

	folder, err := mutator.Remove(context.Background(), "model.onnx")
	require.NoError(t, err)
	assert.Equal(t, "lysandre--arxiv-nlp", folder)
	assert.NoDirExists(t, filepath.Join(root, "lysandre--arxiv-nlp"))
	assert.DirExists(t, filepath.Join(root, "google--bert-base"))

	_, err = mutator.Remove(context.Background(), "vocab.txt")
	assert.True(t, domain.IsNotFound(err))
}

func TestCacheMutator_RemoveByFileNameAmbiguous(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())

	_, err := mutator.Remove(context.Background(), "config.json")
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))

	var pe platformerrors.PlatformError
	require.True(t, platformerrors.As(err, &pe))
	assert.Equal(t, []string{"google--bert-base", "gpt2", "lysandre--arxiv-nlp"}, pe.Context()["candidates"])

	for _, folder := range []string{"google--bert-base", "gpt2", "lysandre--arxiv-nlp"} {
		assert.DirExists(t, filepath.Join(root, folder))
	}
}

func TestCacheMutator_RemoveAmbiguous(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())
	writeFile(t, root, "someone--arxiv-nlp/config.json", 1)

	_, err := mutator.Remove(context.Background(), "arxiv-nlp")
	require.Error(t, err)
	assert.True(t, domain.IsConflict(err))
	assert.Contains(t, err.Error(), "lysandre--arxiv-nlp")
	assert.Contains(t, err.Error(), "someone--arxiv-nlp")

	assert.DirExists(t, filepath.Join(root, "lysandre--arxiv-nlp"))
	assert.DirExists(t, filepath.Join(root, "someone--arxiv-nlp"))
}

func TestCacheMutator_RemoveRejectsInvalidNames(t *testing.T) {
	mutator, _ := newTestMutator(t, afero.NewOsFs())

	for _, name := range []string{"", "../etc", "a/b", `a\b`, ".trash", ".incoming"} {
		t.Run(name, func(t *testing.T) {
			_, err := mutator.Remove(context.Background(), name)
			assert.True(t, domain.IsInvalidRequest(err))
		})
	}
}

func TestCacheMutator_RemoveFailureLeavesFolder(t *testing.T) {
	fs := failingRenameFs{Fs: afero.NewOsFs(), folder: "gpt2"}
	mutator, root := newTestMutator(t, fs)

	_, err := mutator.Remove(context.Background(), "gpt2")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.FileExists(t, filepath.Join(root, "gpt2/config.json"))
}

func TestCacheMutator_ConcurrentRemoveSameName(t *testing.T) {
	mutator, _ := newTestMutator(t, afero.NewOsFs())

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mutator.Remove(context.Background(), "gpt2")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, domain.IsNotFound(err))
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestCacheMutator_Clear(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())
	writeFile(t, root, ".incoming/keep.part", 5)

	removed, err := mutator.Clear(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{IncomingDir}, names)
}

func TestCacheMutator_ClearEmpty(t *testing.T) {
	mutator := NewCacheMutator(afero.NewOsFs(), testCacheConfig(filepath.Join(t.TempDir(), "missing")), zap.NewNop())

	removed, err := mutator.Clear(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestCacheMutator_ClearPartialFailure(t *testing.T) {
	fs := failingRenameFs{Fs: afero.NewOsFs(), folder: "google--bert-base"}
	mutator, root := newTestMutator(t, fs)

	removed, err := mutator.Clear(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, removed)

	var clearErr *domain.ClearError
	require.True(t, errors.As(err, &clearErr))
	assert.Equal(t, []string{"google--bert-base"}, clearErr.FailedFolders)

	assert.DirExists(t, filepath.Join(root, "google--bert-base"))
	assert.NoDirExists(t, filepath.Join(root, "gpt2"))
	assert.NoDirExists(t, filepath.Join(root, "lysandre--arxiv-nlp"))
}

func TestCacheMutator_PurgeTrash(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())
	writeFile(t, root, ".trash/leftover-1/big.bin", 100)

	require.NoError(t, mutator.PurgeTrash())
	assert.NoDirExists(t, filepath.Join(root, TrashDir))
	assert.DirExists(t, filepath.Join(root, "gpt2"))
}

func TestCacheMutator_ScanDuringClear(t *testing.T) {
	mutator, root := newTestMutator(t, afero.NewOsFs())
	index := NewCacheIndex(afero.NewOsFs(), testCacheConfig(root), zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = mutator.Clear(context.Background())
	}()
	go func() {
		defer wg.Done()
		snap, err := index.Scan(context.Background())
		if assert.NoError(t, err) {
			// Either before or after the clear, never in between
			assert.Contains(t, []int{0, 3}, snap.Stats.Folders)
		}
	}()
	wg.Wait()
}
