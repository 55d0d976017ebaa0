package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourusername/hfcache-go/internal/domain"
	"github.com/yourusername/hfcache-go/pkg/logger"
	"go.uber.org/zap"
)

// Sweeper periodically evicts finished download records older than a TTL
type Sweeper struct {
	store    domain.ProgressStore
	ttl      time.Duration
	interval time.Duration
	log      *logger.LoggerAdapter

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	workerWg sync.WaitGroup
}

// NewSweeper creates a new sweeper
func NewSweeper(store domain.ProgressStore, config domain.ProgressConfig, log *logger.LoggerAdapter) *Sweeper {
	return &Sweeper{
		store:    store,
		ttl:      config.TTL,
		interval: config.SweepInterval,
		log:      log,
	}
}

// Start starts the sweep loop
func (s *Sweeper) Start(ctx context.Context) error {
	if s.ttl <= 0 || s.interval <= 0 {
		return fmt.Errorf("sweeper needs a positive ttl and interval")
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper already running")
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	s.workerWg.Add(1)
	go s.loop(ctx, s.stopChan)
	return nil
}

// Stop stops the sweep loop and waits for it to exit
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("sweeper not running")
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.workerWg.Wait()
	return nil
}

// IsRunning returns whether the sweep loop is active
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SweepOnce evicts expired records and returns how many were removed
func (s *Sweeper) SweepOnce(now time.Time) (int, error) {
	n, err := s.store.EvictFinishedBefore(now.Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.LogDownloadEvent("download_records_evicted",
			zap.Int("count", n),
			zap.Duration("ttl", s.ttl))
	}
	return n, nil
}

func (s *Sweeper) loop(ctx context.Context, stop <-chan struct{}) {
	defer s.workerWg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		case <-stop:
			return
		case now := <-ticker.C:
			if _, err := s.SweepOnce(now); err != nil {
				s.log.LogError(logger.CategoryDownload, "Failed to evict finished downloads", zap.Error(err))
			}
		}
	}
}
