package infrastructure

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/hfcache-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var terminalStatuses = []domain.DownloadStatus{
	domain.StatusCompleted,
	domain.StatusFailed,
	domain.StatusCancelled,
}

// SQLiteProgressStore keeps download records in SQLite. Without a database
// path it uses a private in-memory database; with one, existing rows are
// dropped on open so records never outlive the process.
type SQLiteProgressStore struct {
	db *gorm.DB
}

// NewSQLiteProgressStore opens the store
func NewSQLiteProgressStore(dbPath string) (*SQLiteProgressStore, error) {
	dsn := dbPath
	if dsn == "" {
		dsn = fmt.Sprintf("file:progress-%s?mode=memory&cache=shared", uuid.New().String())
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&domain.Download{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store := &SQLiteProgressStore{db: db}
	if err := store.Clear(); err != nil {
		return nil, err
	}
	return store, nil
}

// Get returns the record for id
func (s *SQLiteProgressStore) Get(id string) (*domain.Download, error) {
	var download domain.Download
	err := s.db.First(&download, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound("download %s not found", id)
		}
		return nil, domain.ErrIO(err, "failed to load download %s", id)
	}
	return &download, nil
}

// Put inserts or replaces download
func (s *SQLiteProgressStore) Put(download *domain.Download) error {
	if err := s.db.Save(download.Clone()).Error; err != nil {
		return domain.ErrIO(err, "failed to save download %s", download.ID)
	}
	return nil
}

// List returns every record ordered by start time, then id
func (s *SQLiteProgressStore) List() ([]*domain.Download, error) {
	var downloads []*domain.Download
	if err := s.db.Order("start_time ASC, id ASC").Find(&downloads).Error; err != nil {
		return nil, domain.ErrIO(err, "failed to list downloads")
	}
	// SQLite compares timestamps as text, so reorder on the decoded values.
	sortDownloads(downloads)
	return downloads, nil
}

// Evict removes the record for id
func (s *SQLiteProgressStore) Evict(id string) error {
	result := s.db.Delete(&domain.Download{}, "id = ?", id)
	if result.Error != nil {
		return domain.ErrIO(result.Error, "failed to evict download %s", id)
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound("download %s not found", id)
	}
	return nil
}

// Clear removes every record
func (s *SQLiteProgressStore) Clear() error {
	if err := s.db.Where("1 = 1").Delete(&domain.Download{}).Error; err != nil {
		return domain.ErrIO(err, "failed to clear downloads")
	}
	return nil
}

// EvictFinishedBefore removes terminal records that ended before t
func (s *SQLiteProgressStore) EvictFinishedBefore(t time.Time) (int, error) {
	var ids []string
	var finished []*domain.Download
	if err := s.db.Where("status IN ? AND end_time IS NOT NULL", terminalStatuses).Find(&finished).Error; err != nil {
		return 0, domain.ErrIO(err, "failed to query finished downloads")
	}
	for _, d := range finished {
		if d.EndTime.Before(t) {
			ids = append(ids, d.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.Delete(&domain.Download{}, "id IN ?", ids)
	if result.Error != nil {
		return 0, domain.ErrIO(result.Error, "failed to evict finished downloads")
	}
	return int(result.RowsAffected), nil
}

// Close closes the database connection
func (s *SQLiteProgressStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
