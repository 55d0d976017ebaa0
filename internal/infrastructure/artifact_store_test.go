package infrastructure

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/hfcache-go/internal/domain"
	"go.uber.org/zap"
)

func TestArtifactStore_Commit(t *testing.T) {
	root := t.TempDir()
	store := NewArtifactStore(afero.NewOsFs(), root)

	pending, err := store.Begin("lysandre/arxiv-nlp", "onnx/config.json")
	require.NoError(t, err)
	_, err = pending.Write([]byte(`{"a":1}`))
	require.NoError(t, err)

	path, err := pending.Commit()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "lysandre--arxiv-nlp", "onnx", "config.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	incoming, err := os.ReadDir(filepath.Join(root, IncomingDir))
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestArtifactStore_CommitOverwrites(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a--b/f", 100)
	store := NewArtifactStore(afero.NewOsFs(), root)

	pending, err := store.Begin("a/b", "f")
	require.NoError(t, err)
	_, _ = pending.Write([]byte("new"))
	path, err := pending.Commit()
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestArtifactStore_Abort(t *testing.T) {
	root := t.TempDir()
	store := NewArtifactStore(afero.NewOsFs(), root)

	pending, err := store.Begin("a/b", "f")
	require.NoError(t, err)
	_, _ = pending.Write([]byte("partial"))

	require.NoError(t, pending.Abort())
	require.NoError(t, pending.Abort())

	assert.NoFileExists(t, filepath.Join(root, "a--b", "f"))
	incoming, err := os.ReadDir(filepath.Join(root, IncomingDir))
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestArtifactStore_Reset(t *testing.T) {
	store := NewArtifactStore(afero.NewOsFs(), t.TempDir())

	pending, err := store.Begin("a/b", "f")
	require.NoError(t, err)
	_, _ = pending.Write([]byte("first attempt"))
	require.NoError(t, pending.Reset())
	_, _ = pending.Write([]byte("ok"))

	path, err := pending.Commit()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestArtifactStore_BeginRejectsTraversal(t *testing.T) {
	store := NewArtifactStore(afero.NewOsFs(), t.TempDir())

	_, err := store.Begin("a/b", "../../etc/passwd")
	assert.True(t, domain.IsInvalidRequest(err))
}

func TestArtifactStore_PendingInvisibleToScan(t *testing.T) {
	root := t.TempDir()
	store := NewArtifactStore(afero.NewOsFs(), root)
	index := NewCacheIndex(afero.NewOsFs(), testCacheConfig(root), zap.NewNop())

	pending, err := store.Begin("a/b", "f")
	require.NoError(t, err)
	_, _ = pending.Write(make([]byte, 1024))

	snap, err := index.Scan(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Stats.Files)

	_, err = pending.Commit()
	require.NoError(t, err)

	snap, err = index.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.Files)
	assert.Equal(t, int64(1024), snap.Stats.Size)
}

func TestArtifactStore_PurgeIncoming(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewArtifactStore(fs, "/cache")

	pending, err := store.Begin("org/model", "weights.bin")
	require.NoError(t, err)
	_, err = pending.Write([]byte("stale"))
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/cache/org--model/config.json", []byte("{}"), 0o644))

	require.NoError(t, store.PurgeIncoming())

	exists, err := afero.DirExists(fs, "/cache/"+IncomingDir)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.Exists(fs, "/cache/org--model/config.json")
	require.NoError(t, err)
	assert.True(t, exists)
}
