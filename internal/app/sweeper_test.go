package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/hfcache-go/internal/domain"
	"github.com/yourusername/hfcache-go/internal/infrastructure"
	"github.com/yourusername/hfcache-go/pkg/logger"
	"go.uber.org/zap"
)

func finishedAt(t *testing.T, store domain.ProgressStore, end time.Time) *domain.Download {
	t.Helper()
	d := domain.NewDownload("org/model", "config.json")
	d.MarkRunning()
	d.MarkCompleted("/cache/org--model/config.json")
	d.EndTime = &end
	require.NoError(t, store.Put(d))
	return d
}

func TestSweeper_SweepOnce(t *testing.T) {
	store := infrastructure.NewMemoryProgressStore()
	now := time.Now()

	old := finishedAt(t, store, now.Add(-2*time.Hour))
	fresh := finishedAt(t, store, now.Add(-time.Minute))
	running := domain.NewDownload("org/model", "weights.bin")
	running.MarkRunning()
	require.NoError(t, store.Put(running))

	sweeper := NewSweeper(store, domain.ProgressConfig{TTL: time.Hour, SweepInterval: time.Minute},
		logger.NewSingleLoggerAdapter(zap.NewNop()))

	n, err := sweeper.SweepOnce(now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(old.ID)
	assert.True(t, domain.IsNotFound(err))
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
	_, err = store.Get(running.ID)
	assert.NoError(t, err)
}

func TestSweeper_StartStop(t *testing.T) {
	store := infrastructure.NewMemoryProgressStore()
	expired := finishedAt(t, store, time.Now().Add(-time.Hour))

	sweeper := NewSweeper(store, domain.ProgressConfig{TTL: time.Millisecond, SweepInterval: 10 * time.Millisecond},
		logger.NewSingleLoggerAdapter(zap.NewNop()))

	require.NoError(t, sweeper.Start(context.Background()))
	assert.True(t, sweeper.IsRunning())
	assert.Error(t, sweeper.Start(context.Background()))

	assert.Eventually(t, func() bool {
		_, err := store.Get(expired.ID)
		return domain.IsNotFound(err)
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, sweeper.Stop())
	assert.False(t, sweeper.IsRunning())
	assert.Error(t, sweeper.Stop())
}

func TestSweeper_StopsWithContext(t *testing.T) {
	sweeper := NewSweeper(infrastructure.NewMemoryProgressStore(),
		domain.ProgressConfig{TTL: time.Minute, SweepInterval: time.Hour},
		logger.NewSingleLoggerAdapter(zap.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, sweeper.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !sweeper.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestSweeper_RequiresPositiveSettings(t *testing.T) {
	sweeper := NewSweeper(infrastructure.NewMemoryProgressStore(), domain.ProgressConfig{},
		logger.NewSingleLoggerAdapter(zap.NewNop()))
	assert.Error(t, sweeper.Start(context.Background()))
	assert.False(t, sweeper.IsRunning())
}
