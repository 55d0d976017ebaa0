package domain

import (
	"encoding/json"
	"time"
)

// CacheEntry describes one file in the cache
type CacheEntry struct {
	Path         string     `json:"path"`
	Size         int64      `json:"size"`
	LastAccessed *time.Time `json:"last_accessed"`
	Folder       string     `json:"folder"`
}

// MarshalJSON adds the human readable size
func (e CacheEntry) MarshalJSON() ([]byte, error) {
	type entry CacheEntry
	return json.Marshal(struct {
		entry
		SizeFormatted string `json:"size_formatted"`
	}{entry(e), FormatSize(e.Size)})
}

// CacheStats summarizes the whole cache
type CacheStats struct {
	Size        int64     `json:"size"`
	Folders     int       `json:"folders"`
	Files       int       `json:"files"`
	LastUpdated time.Time `json:"last_updated"`
	Partial     bool      `json:"partial,omitempty"`
}

// MarshalJSON adds the human readable size
func (s CacheStats) MarshalJSON() ([]byte, error) {
	type stats CacheStats
	return json.Marshal(struct {
		stats
		SizeFormatted string `json:"size_formatted"`
	}{stats(s), FormatSize(s.Size)})
}

// CacheSnapshot is the result of one walk of the cache root. Stats are derived
// from Entries so the two always agree.
type CacheSnapshot struct {
	Entries []CacheEntry
	Stats   CacheStats
}

// NewCacheSnapshot computes stats for entries observed at scannedAt.
func NewCacheSnapshot(entries []CacheEntry, scannedAt time.Time, partial bool) *CacheSnapshot {
	folders := make(map[string]struct{})
	var size int64
	for _, e := range entries {
		size += e.Size
		folders[e.Folder] = struct{}{}
	}
	if entries == nil {
		entries = []CacheEntry{}
	}
	return &CacheSnapshot{
		Entries: entries,
		Stats: CacheStats{
			Size:        size,
			Folders:     len(folders),
			Files:       len(entries),
			LastUpdated: scannedAt,
			Partial:     partial,
		},
	}
}
