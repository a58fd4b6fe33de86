package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr            string
	DBPath          string
	CatalogPath     string
	AssetsDir       string
	LogLevel        string
	TeacherPIN      string
	SyncURL         string
	SyncSecret      string
	SyncTimeout     time.Duration
	SyncWorkerCount int
	SyncQueueSize   int
	ShuffleSeed     int64
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent.
	_ = godotenv.Load()

	return Config{
		Addr:            envOr("ADDR", ":8080"),
		DBPath:          envOr("DB_PATH", "file:starcards.db"),
		CatalogPath:     envOr("CATALOG_PATH", "cards.json"),
		AssetsDir:       envOr("ASSETS_DIR", "assets"),
		LogLevel:        envOr("LOG_LEVEL", "INFO"),
		TeacherPIN:      envOr("TEACHER_PIN", "2026"),
		SyncURL:         strings.TrimSpace(os.Getenv("SYNC_URL")),
		SyncSecret:      os.Getenv("SYNC_SECRET"),
		SyncTimeout:     time.Duration(envIntOr("SYNC_TIMEOUT_MS", 8000)) * time.Millisecond,
		SyncWorkerCount: envIntOr("SYNC_WORKER_COUNT", 1),
		SyncQueueSize:   envIntOr("SYNC_QUEUE_SIZE", 128),
		ShuffleSeed:     int64(envIntOr("SHUFFLE_SEED", 0)),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("ADDR cannot be empty"))
	}
	if strings.TrimSpace(c.DBPath) == "" {
		errs = append(errs, errors.New("DB_PATH cannot be empty"))
	}
	if strings.TrimSpace(c.TeacherPIN) == "" {
		errs = append(errs, errors.New("TEACHER_PIN cannot be empty"))
	}
	if c.SyncTimeout <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_TIMEOUT_MS must be positive, got %v", c.SyncTimeout))
	}
	if c.SyncWorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_WORKER_COUNT must be positive, got %d", c.SyncWorkerCount))
	}
	if c.SyncQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("SYNC_QUEUE_SIZE must be positive, got %d", c.SyncQueueSize))
	}
	return errors.Join(errs...)
}

// SyncEnabled reports whether a remote aggregator is configured.
func (c Config) SyncEnabled() bool {
	return c.SyncURL != ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}
