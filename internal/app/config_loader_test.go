package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/hfcache-go/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadConfig_File(t *testing.T) {
	cacheDir := t.TempDir()
	path := writeConfig(t, `
server:
  port: 8081
cache:
  root_dir: `+cacheDir+`
  scan_timeout: 5s
download:
  concurrent_limit: 4
  retry_delay: 250ms
progress:
  backend: sqlite
  ttl: 10m
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, cacheDir, config.Cache.RootDir)
	assert.Equal(t, 5*time.Second, config.Cache.ScanTimeout)
	assert.Equal(t, 4, config.Download.ConcurrentLimit)
	assert.Equal(t, 250*time.Millisecond, config.Download.RetryDelay)
	assert.Equal(t, 3, config.Download.MaxRetries)
	assert.Equal(t, domain.ProgressBackendSQLite, config.Progress.Backend)
	assert.Equal(t, 10*time.Minute, config.Progress.TTL)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	cacheDir := t.TempDir()
	t.Setenv("HFCACHE_CACHE_ROOT_DIR", cacheDir)
	t.Setenv("HFCACHE_DOWNLOAD_MAX_RETRIES", "7")
	t.Setenv("HFCACHE_DOWNLOAD_TOKEN", "hf_secret")

	config, err := LoadConfig(writeConfig(t, "server:\n  port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, cacheDir, config.Cache.RootDir)
	assert.Equal(t, 7, config.Download.MaxRetries)
	assert.Equal(t, "hf_secret", config.Download.Token)
	assert.Equal(t, 9000, config.Server.Port)
}

func TestLoadConfig_ExpandsPaths(t *testing.T) {
	base := t.TempDir()
	t.Setenv("HFCACHE_TEST_BASE", base)

	config, err := LoadConfig(writeConfig(t, `
cache:
  root_dir: $HFCACHE_TEST_BASE/hub
logging:
  logs_dir: ${HFCACHE_TEST_BASE}/logs
`))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "hub"), config.Cache.RootDir)
	assert.Equal(t, filepath.Join(base, "logs"), config.Logging.LogsDir)
	assert.Equal(t, "stdout", config.Logging.OutputPath)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"port", "server:\n  port: 70000\n"},
		{"negative retries", "download:\n  max_retries: -1\n"},
		{"zero concurrency", "download:\n  concurrent_limit: 0\n"},
		{"zero workers", "cache:\n  scan_workers: 0\n"},
		{"backend", "progress:\n  backend: redis\n"},
		{"chunk size", "download:\n  chunk_size: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	config := domain.DefaultConfig()
	config.Server.Port = 6123
	config.Cache.RootDir = t.TempDir()
	config.Download.RetryDelay = 2 * time.Second
	config.Progress.Backend = domain.ProgressBackendSQLite

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveConfig(config, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6123, loaded.Server.Port)
	assert.Equal(t, config.Cache.RootDir, loaded.Cache.RootDir)
	assert.Equal(t, 2*time.Second, loaded.Download.RetryDelay)
	assert.Equal(t, domain.ProgressBackendSQLite, loaded.Progress.Backend)
}
