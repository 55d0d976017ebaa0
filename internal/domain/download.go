package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DownloadStatus represents the current status of a download
type DownloadStatus string

const (
	StatusQueued    DownloadStatus = "queued"
	StatusRunning   DownloadStatus = "running"
	StatusCompleted DownloadStatus = "completed"
	StatusFailed    DownloadStatus = "failed"
	StatusCancelled DownloadStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible from s
func (s DownloadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Download represents one requested fetch of a file from a repository
type Download struct {
	ID              string         `json:"id" gorm:"primaryKey"`
	RepoID          string         `json:"repo_id" gorm:"not null"`
	Filename        string         `json:"filename" gorm:"not null"`
	Status          DownloadStatus `json:"status" gorm:"not null;index"`
	Progress        int            `json:"progress"`
	BytesDownloaded int64          `json:"bytes_downloaded"`
	TotalBytes      int64          `json:"total_bytes"`
	Attempts        int            `json:"attempts"`
	StartTime       time.Time      `json:"start_time" gorm:"index"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	Error           string         `json:"error,omitempty"`
	FilePath        string         `json:"file_path,omitempty"`
}

// NewDownload creates a new queued download
func NewDownload(repoID, filename string) *Download {
	return &Download{
		ID:        uuid.New().String(),
		RepoID:    repoID,
		Filename:  filename,
		Status:    StatusQueued,
		Progress:  0,
		StartTime: time.Now(),
	}
}

// IsTerminal checks if the download is in a terminal state
func (d *Download) IsTerminal() bool {
	return d.Status.IsTerminal()
}

// MarkRunning moves a queued download to running.
func (d *Download) MarkRunning() bool {
	if d.Status != StatusQueued {
		return false
	}
	d.Status = StatusRunning
	return true
}

// SetProgress records transferred bytes. Progress never decreases and is
// capped at 99 until the download completes.
func (d *Download) SetProgress(percent int, written, total int64) bool {
	if d.Status != StatusRunning {
		return false
	}
	if percent > 99 {
		percent = 99
	}
	changed := false
	if percent > d.Progress {
		d.Progress = percent
		changed = true
	}
	if written > d.BytesDownloaded {
		d.BytesDownloaded = written
		changed = true
	}
	if total > 0 && total != d.TotalBytes {
		d.TotalBytes = total
		changed = true
	}
	return changed
}

// IncrementAttempt records the start of a transfer attempt
func (d *Download) IncrementAttempt() {
	if d.Status == StatusRunning {
		d.Attempts++
	}
}

// MarkCompleted marks the download as completed
func (d *Download) MarkCompleted(filePath string) bool {
	if d.Status != StatusRunning {
		return false
	}
	d.Status = StatusCompleted
	d.Progress = 100
	if d.TotalBytes > 0 {
		d.BytesDownloaded = d.TotalBytes
	}
	d.FilePath = filePath
	d.finish()
	return true
}

// MarkFailed marks the download as failed
func (d *Download) MarkFailed(err error) bool {
	if d.IsTerminal() {
		return false
	}
	d.Status = StatusFailed
	d.Error = ErrorMessage(err)
	d.finish()
	return true
}

// MarkCancelled marks the download as cancelled
func (d *Download) MarkCancelled() bool {
	if d.IsTerminal() {
		return false
	}
	d.Status = StatusCancelled
	d.finish()
	return true
}

func (d *Download) finish() {
	now := time.Now()
	d.EndTime = &now
}

// Clone returns a deep copy of the download
func (d *Download) Clone() *Download {
	if d == nil {
		return nil
	}
	c := *d
	if d.EndTime != nil {
		end := *d.EndTime
		c.EndTime = &end
	}
	return &c
}

// Validate checks that the optional fields match the status: error only on
// failed, file_path only on completed, end_time only on terminal records.
func (d *Download) Validate() error {
	if (d.Error != "") != (d.Status == StatusFailed) {
		return fmt.Errorf("download %s: error set with status %s", d.ID, d.Status)
	}
	if (d.FilePath != "") != (d.Status == StatusCompleted) {
		return fmt.Errorf("download %s: file_path set with status %s", d.ID, d.Status)
	}
	if (d.EndTime != nil) != d.IsTerminal() {
		return fmt.Errorf("download %s: end_time set with status %s", d.ID, d.Status)
	}
	if d.Progress < 0 || d.Progress > 100 {
		return fmt.Errorf("download %s: progress %d out of range", d.ID, d.Progress)
	}
	return nil
}

// ValidateDownloadRequest checks a (repo_id, filename) pair before a download
// is created. Filenames may contain sub-directories but must stay inside the
// repository folder. A repo_id must map to a visible top-level folder, so
// hidden names such as ".incoming" are rejected.
func ValidateDownloadRequest(repoID, filename string) error {
	if repoID == "" || filename == "" {
		return ErrInvalidRequest("repo_id and filename are required")
	}
	if strings.Contains(repoID, "\\") || strings.HasPrefix(RepoFolderName(repoID), ".") {
		return ErrInvalidRequestf("invalid repo_id: %s", repoID)
	}
	for _, part := range strings.Split(repoID, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidRequestf("invalid repo_id: %s", repoID)
		}
	}
	if strings.HasPrefix(filename, "/") || strings.Contains(filename, "\\") {
		return ErrInvalidRequestf("invalid filename: %s", filename)
	}
	for _, part := range strings.Split(filename, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidRequestf("invalid filename: %s", filename)
		}
	}
	return nil
}

// RepoFolderName maps a repository id to its top-level cache folder name,
// e.g. "lysandre/arxiv-nlp" becomes "lysandre--arxiv-nlp".
func RepoFolderName(repoID string) string {
	return strings.ReplaceAll(repoID, "/", FolderSeparator)
}

// FolderSeparator joins the owner and name parts of a repository folder
const FolderSeparator = "--"

// RepoNameOfFolder returns the repository-name part of a cache folder
// ("lysandre--arxiv-nlp" gives "arxiv-nlp").
func RepoNameOfFolder(folder string) string {
	if i := strings.LastIndex(folder, FolderSeparator); i >= 0 {
		return folder[i+len(FolderSeparator):]
	}
	return folder
}
