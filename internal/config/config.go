package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds all configuration for the MediaScribe server.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Storage     StorageConfig
	Worker      WorkerConfig
	Transcriber TranscriberConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	// DataDir is the root under which transcript bundles and the
	// per-job download scratch space live.
	DataDir string
}

type WorkerConfig struct {
	PollInterval time.Duration
}

type TranscriberConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	MaxWait      time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MEDIASCRIBE_PORT", 8080),
			Env:  envString("MEDIASCRIBE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			DataDir: envString("DATA_DIR", "/data"),
		},
		Worker: WorkerConfig{
			PollInterval: envDuration("WORKER_POLL_INTERVAL", 5*time.Second),
		},
		Transcriber: TranscriberConfig{
			APIKey:       os.Getenv("ASSEMBLYAI_API_KEY"),
			BaseURL:      envString("ASSEMBLYAI_BASE_URL", "https://api.assemblyai.com/v2"),
			PollInterval: envDuration("TRANSCRIBER_POLL_INTERVAL", 3*time.Second),
			HTTPTimeout:  envDuration("TRANSCRIBER_HTTP_TIMEOUT", 10*time.Minute),
			MaxWait:      envDuration("TRANSCRIBER_MAX_WAIT", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Transcriber.APIKey == "" {
		return fmt.Errorf("ASSEMBLYAI_API_KEY is required")
	}

	if !filepath.IsAbs(c.Storage.DataDir) {
		return fmt.Errorf("DATA_DIR must be an absolute path, got %q", c.Storage.DataDir)
	}

	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive, got %s", c.Worker.PollInterval)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
