package domain

import (
	"context"
	"io"
	"time"
)

// ProgressStore keeps download records for the lifetime of the process.
// Implementations copy values in and out.
type ProgressStore interface {
	// Get returns the record for id, or a not-found error
	Get(id string) (*Download, error)

	// Put inserts or replaces a record
	Put(download *Download) error

	// List returns every record ordered by start time, then id
	List() ([]*Download, error)

	// Evict removes one record, or returns a not-found error
	Evict(id string) error

	// Clear removes every record
	Clear() error

	// EvictFinishedBefore removes terminal records that ended before t and
	// returns how many were removed
	EvictFinishedBefore(t time.Time) (int, error)
}

// ProgressFunc receives the bytes written so far and the total size, which is
// zero when the server did not announce it.
type ProgressFunc func(written, total int64)

// Fetcher retrieves one file of a repository from the model hub.
type Fetcher interface {
	// Fetch streams the file into w and returns the number of bytes written.
	// It stops between chunks once ctx is done.
	Fetch(ctx context.Context, repoID, filename string, w io.Writer, progress ProgressFunc) (int64, error)
}
