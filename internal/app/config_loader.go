package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/yourusername/hfcache-go/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. HFCACHE_CACHE_ROOT_DIR
const EnvPrefix = "HFCACHE"

// LoadConfig loads configuration from file and environment. Variables from
// a .env file in the working directory are loaded first without overriding
// the real environment.
func LoadConfig(configPath string) (*domain.Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := domain.DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.hfcache")
		v.AddConfigPath("/etc/hfcache")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDefaults(v, config)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config = expandPaths(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// bindDefaults registers every key so AutomaticEnv can override keys that
// are absent from the config file
func bindDefaults(v *viper.Viper, config *domain.Config) {
	v.SetDefault("server.host", config.Server.Host)
	v.SetDefault("server.port", config.Server.Port)

	v.SetDefault("cache.root_dir", config.Cache.RootDir)
	v.SetDefault("cache.scan_timeout", config.Cache.ScanTimeout)
	v.SetDefault("cache.scan_workers", config.Cache.ScanWorkers)

	v.SetDefault("download.endpoint", config.Download.Endpoint)
	v.SetDefault("download.revision", config.Download.Revision)
	v.SetDefault("download.token", config.Download.Token)
	v.SetDefault("download.concurrent_limit", config.Download.ConcurrentLimit)
	v.SetDefault("download.max_retries", config.Download.MaxRetries)
	v.SetDefault("download.retry_delay", config.Download.RetryDelay)
	v.SetDefault("download.request_timeout", config.Download.RequestTimeout)
	v.SetDefault("download.chunk_size", config.Download.ChunkSize)
	v.SetDefault("download.user_agent", config.Download.UserAgent)

	v.SetDefault("progress.backend", config.Progress.Backend)
	v.SetDefault("progress.database_path", config.Progress.DatabasePath)
	v.SetDefault("progress.ttl", config.Progress.TTL)
	v.SetDefault("progress.sweep_interval", config.Progress.SweepInterval)

	v.SetDefault("logging.level", config.Logging.Level)
	v.SetDefault("logging.format", config.Logging.Format)
	v.SetDefault("logging.output_path", config.Logging.OutputPath)
	v.SetDefault("logging.logs_dir", config.Logging.LogsDir)
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Cache.RootDir = expandPath(config.Cache.RootDir)
	config.Progress.DatabasePath = expandPath(config.Progress.DatabasePath)
	config.Logging.LogsDir = expandPath(config.Logging.LogsDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.Expand(path, func(key string) string {
		if key == "HOME" {
			if home, err := os.UserHomeDir(); err == nil {
				return home
			}
		}
		return os.Getenv(key)
	})
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Cache.RootDir == "" {
		return fmt.Errorf("cache root directory not configured")
	}

	if config.Cache.ScanWorkers < 1 {
		return fmt.Errorf("scan workers must be at least 1")
	}

	if config.Download.Endpoint == "" {
		return fmt.Errorf("download endpoint not configured")
	}

	if config.Download.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if config.Download.ConcurrentLimit < 1 {
		return fmt.Errorf("concurrent limit must be at least 1")
	}

	if config.Download.ChunkSize < 1 {
		return fmt.Errorf("chunk size must be at least 1")
	}

	switch config.Progress.Backend {
	case domain.ProgressBackendMemory, domain.ProgressBackendSQLite:
	default:
		return fmt.Errorf("unknown progress backend: %s", config.Progress.Backend)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("server", map[string]interface{}{
		"host": config.Server.Host,
		"port": config.Server.Port,
	})
	v.Set("cache", map[string]interface{}{
		"root_dir":     config.Cache.RootDir,
		"scan_timeout": config.Cache.ScanTimeout.String(),
		"scan_workers": config.Cache.ScanWorkers,
	})
	v.Set("download", map[string]interface{}{
		"endpoint":         config.Download.Endpoint,
		"revision":         config.Download.Revision,
		"token":            config.Download.Token,
		"concurrent_limit": config.Download.ConcurrentLimit,
		"max_retries":      config.Download.MaxRetries,
		"retry_delay":      config.Download.RetryDelay.String(),
		"request_timeout":  config.Download.RequestTimeout.String(),
		"chunk_size":       config.Download.ChunkSize,
		"user_agent":       config.Download.UserAgent,
	})
	v.Set("progress", map[string]interface{}{
		"backend":        config.Progress.Backend,
		"database_path":  config.Progress.DatabasePath,
		"ttl":            config.Progress.TTL.String(),
		"sweep_interval": config.Progress.SweepInterval.String(),
	})
	v.Set("logging", map[string]interface{}{
		"level":       config.Logging.Level,
		"format":      config.Logging.Format,
		"output_path": config.Logging.OutputPath,
		"logs_dir":    config.Logging.LogsDir,
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
