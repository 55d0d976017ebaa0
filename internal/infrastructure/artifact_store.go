package infrastructure

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"
	"github.com/yourusername/hfcache-go/internal/domain"
)

// ArtifactStore places downloaded files into the cache. Data is written to a
// temporary file under the root's .incoming directory and only becomes
// visible to scans once committed.
type ArtifactStore struct {
	fs   afero.Fs
	root string
	lock *sync.RWMutex
}

// NewArtifactStore creates a new artifact store for the cache root
func NewArtifactStore(fs afero.Fs, root string) *ArtifactStore {
	return &ArtifactStore{
		fs:   fs,
		root: root,
		lock: RootLock(root),
	}
}

// PendingArtifact is a download that has not been placed yet
type PendingArtifact struct {
	store     *ArtifactStore
	file      afero.File
	tempPath  string
	finalPath string
	closed    bool
}

// Begin creates the temporary file for repoID/filename
func (s *ArtifactStore) Begin(repoID, filename string) (*PendingArtifact, error) {
	if err := domain.ValidateDownloadRequest(repoID, filename); err != nil {
		return nil, err
	}

	incoming := filepath.Join(s.root, IncomingDir)
	if err := s.fs.MkdirAll(incoming, 0o755); err != nil {
		return nil, domain.ErrIO(err, "failed to create %s", incoming)
	}

	file, err := afero.TempFile(s.fs, incoming, domain.RepoFolderName(repoID)+"-*.part")
	if err != nil {
		return nil, domain.ErrIO(err, "failed to create temporary file in %s", incoming)
	}

	return &PendingArtifact{
		store:     s,
		file:      file,
		tempPath:  file.Name(),
		finalPath: s.FinalPath(repoID, filename),
	}, nil
}

// PurgeIncoming deletes temporary files left by a previous process. Call it
// before any download starts.
func (s *ArtifactStore) PurgeIncoming() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	incoming := filepath.Join(s.root, IncomingDir)
	if err := s.fs.RemoveAll(incoming); err != nil {
		return domain.ErrIO(err, "failed to purge %s", incoming)
	}
	return nil
}

// FinalPath is where a committed file ends up
func (s *ArtifactStore) FinalPath(repoID, filename string) string {
	return filepath.Join(s.root, domain.RepoFolderName(repoID), filepath.FromSlash(filename))
}

// Write implements io.Writer
func (p *PendingArtifact) Write(b []byte) (int, error) {
	return p.file.Write(b)
}

// Reset discards everything written so far, for a fresh attempt
func (p *PendingArtifact) Reset() error {
	if err := p.file.Truncate(0); err != nil {
		return domain.ErrIO(err, "failed to truncate %s", p.tempPath)
	}
	if _, err := p.file.Seek(0, 0); err != nil {
		return domain.ErrIO(err, "failed to rewind %s", p.tempPath)
	}
	return nil
}

// Commit moves the file into its repository folder and returns the final path
func (p *PendingArtifact) Commit() (string, error) {
	if err := p.close(); err != nil {
		_ = p.store.fs.Remove(p.tempPath)
		return "", domain.ErrIO(err, "failed to flush %s", p.tempPath)
	}

	p.store.lock.Lock()
	defer p.store.lock.Unlock()

	if err := p.store.fs.MkdirAll(filepath.Dir(p.finalPath), 0o755); err != nil {
		return "", domain.ErrIO(err, "failed to create %s", filepath.Dir(p.finalPath))
	}
	if err := p.store.fs.Rename(p.tempPath, p.finalPath); err != nil {
		_ = p.store.fs.Remove(p.tempPath)
		return "", domain.ErrIO(err, "failed to place %s", p.finalPath)
	}
	return p.finalPath, nil
}

// Abort deletes the temporary file
func (p *PendingArtifact) Abort() error {
	_ = p.close()
	if err := p.store.fs.Remove(p.tempPath); err != nil && !os.IsNotExist(err) {
		return domain.ErrIO(err, "failed to remove %s", p.tempPath)
	}
	return nil
}

func (p *PendingArtifact) close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.file.Sync(); err != nil {
		_ = p.file.Close()
		return err
	}
	return p.file.Close()
}
