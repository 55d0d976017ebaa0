package infrastructure

import (
	"sort"
	"sync"
	"time"

	"github.com/yourusername/hfcache-go/internal/domain"
)

// MemoryProgressStore keeps download records in a map
type MemoryProgressStore struct {
	mu        sync.RWMutex
	downloads map[string]*domain.Download
}

// NewMemoryProgressStore creates an empty in-memory store
func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{downloads: make(map[string]*domain.Download)}
}

// Get returns a copy of the record for id
func (s *MemoryProgressStore) Get(id string) (*domain.Download, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.downloads[id]
	if !ok {
		return nil, domain.ErrNotFound("download %s not found", id)
	}
	return d.Clone(), nil
}

// Put stores a copy of download
func (s *MemoryProgressStore) Put(download *domain.Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads[download.ID] = download.Clone()
	return nil
}

// List returns copies of every record ordered by start time, then id
func (s *MemoryProgressStore) List() ([]*domain.Download, error) {
	s.mu.RLock()
	list := make([]*domain.Download, 0, len(s.downloads))
	for _, d := range s.downloads {
		list = append(list, d.Clone())
	}
	s.mu.RUnlock()

	sortDownloads(list)
	return list, nil
}

// Evict removes the record for id
func (s *MemoryProgressStore) Evict(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.downloads[id]; !ok {
		return domain.ErrNotFound("download %s not found", id)
	}
	delete(s.downloads, id)
	return nil
}

// Clear removes every record
func (s *MemoryProgressStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloads = make(map[string]*domain.Download)
	return nil
}

// EvictFinishedBefore removes terminal records that ended before t
func (s *MemoryProgressStore) EvictFinishedBefore(t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, d := range s.downloads {
		if d.IsTerminal() && d.EndTime != nil && d.EndTime.Before(t) {
			delete(s.downloads, id)
			n++
		}
	}
	return n, nil
}

func sortDownloads(list []*domain.Download) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].StartTime.Equal(list[j].StartTime) {
			return list[i].StartTime.Before(list[j].StartTime)
		}
		return list[i].ID < list[j].ID
	})
}
