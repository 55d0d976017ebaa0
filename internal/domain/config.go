package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Download DownloadConfig `mapstructure:"download"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CacheConfig describes the local model cache
type CacheConfig struct {
	RootDir     string        `mapstructure:"root_dir"`
	ScanTimeout time.Duration `mapstructure:"scan_timeout"`
	ScanWorkers int           `mapstructure:"scan_workers"`
}

// DownloadConfig contains download-related configuration
type DownloadConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Revision        string        `mapstructure:"revision"`
	Token           string        `mapstructure:"token"`
	ConcurrentLimit int           `mapstructure:"concurrent_limit"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// ProgressConfig selects where download records live and how long finished
// ones are kept.
type ProgressConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, sqlite
	DatabasePath  string        `mapstructure:"database_path"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
	LogsDir    string `mapstructure:"logs_dir"`    // categorized JSON logs, empty disables
}

const (
	ProgressBackendMemory = "memory"
	ProgressBackendSQLite = "sqlite"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 5000,
		},
		Cache: CacheConfig{
			RootDir:     "$HOME/.hfcache/hub",
			ScanTimeout: 30 * time.Second,
			ScanWorkers: 4,
		},
		Download: DownloadConfig{
			Endpoint:        "https://huggingface.co",
			Revision:        "main",
			ConcurrentLimit: 2,
			MaxRetries:      3,
			RetryDelay:      5 * time.Second,
			RequestTimeout:  time.Minute,
			ChunkSize:       1 << 20,
			UserAgent:       "hfcache-go/1.0",
		},
		Progress: ProgressConfig{
			Backend:       ProgressBackendMemory,
			TTL:           time.Hour,
			SweepInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
			LogsDir:    "$HOME/.hfcache/logs",
		},
	}
}
