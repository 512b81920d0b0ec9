// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir     string // Base directory for all databases (always absolute)
	Port        int
	LogLevel    string
	DevMode     bool
	CORSOrigins []string

	Universe      []string // tickers scored by default when a rebalance names none
	DefaultEngine string   // "pillar" or "continuous"

	Scoring   ScoringConfig
	Scheduler SchedulerConfig
	Backup    *BackupConfig // nil when backups are disabled
}

// ScoringConfig holds the engine parameters. Values are immutable after Load;
// per-request overrides construct new parameter structs instead of mutating
// these.
type ScoringConfig struct {
	Alpha           float64 // continuous: score exponent
	MaxPositionSize float64 // continuous: per-position weight cap
	MinScore        float64 // continuous: qualification threshold
	PortfolioSize   int     // pillar: target number of positions
	MinTotal        int     // pillar: minimum qualifying total score
}

// SchedulerConfig holds cron schedules (6-field expressions, with seconds).
type SchedulerConfig struct {
	Enabled              bool
	RebalanceSchedule    string
	BackupSchedule       string
	CacheCleanupSchedule string
}

// BackupConfig holds S3-compatible object storage settings for database
// backups (R2, MinIO, S3).
type BackupConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	Prefix    string
	Keep      int // backup generations retained per database
}

// defaultUniverse is the built-in scoring universe, used when
// OCTAVE_UNIVERSE is not set.
var defaultUniverse = []string{
	// Tech
	"MSFT", "GOOGL", "META", "CRM", "ADBE",
	// Consumer
	"AMZN", "NFLX", "NKE", "SBUX", "MCD",
	// Finance
	"V", "MA", "JPM", "GS", "BRK-B",
	// Healthcare
	"UNH", "JNJ", "PFE", "TMO", "ABT",
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory to an absolute path and make sure it exists
	dataDir := getEnv("OCTAVE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		Port:          getEnvAsInt("OCTAVE_PORT", 8080),
		LogLevel:      getEnv("OCTAVE_LOG_LEVEL", "info"),
		DevMode:       getEnvAsBool("OCTAVE_DEV_MODE", false),
		CORSOrigins:   getEnvAsList("OCTAVE_CORS_ORIGINS", []string{"*"}),
		Universe:      getEnvAsList("OCTAVE_UNIVERSE", defaultUniverse),
		DefaultEngine: getEnv("OCTAVE_ENGINE", "pillar"),
		Scoring: ScoringConfig{
			Alpha:           getEnvAsFloat("OCTAVE_ALPHA", 2.0),
			MaxPositionSize: getEnvAsFloat("OCTAVE_MAX_POSITION", 0.05),
			MinScore:        getEnvAsFloat("OCTAVE_MIN_SCORE", 50),
			PortfolioSize:   getEnvAsInt("OCTAVE_PORTFOLIO_SIZE", 8),
			MinTotal:        getEnvAsInt("OCTAVE_MIN_TOTAL", 32),
		},
		Scheduler: SchedulerConfig{
			Enabled:              getEnvAsBool("OCTAVE_SCHEDULER_ENABLED", true),
			RebalanceSchedule:    getEnv("OCTAVE_REBALANCE_SCHEDULE", "0 30 2 * * *"),
			BackupSchedule:       getEnv("OCTAVE_BACKUP_SCHEDULE", "0 0 4 * * 0"),
			CacheCleanupSchedule: getEnv("OCTAVE_CACHE_CLEANUP_SCHEDULE", "0 15 3 * * *"),
		},
		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the loaded configuration is usable. Engine parameter
// validation lives here because a bad parameter is a batch-level failure:
// nothing may be scored with it.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DefaultEngine != "pillar" && c.DefaultEngine != "continuous" {
		return fmt.Errorf("invalid engine %q (want pillar or continuous)", c.DefaultEngine)
	}
	return c.Scoring.Validate()
}

// Validate rejects engine parameters that would make a whole batch
// meaningless.
func (s ScoringConfig) Validate() error {
	if s.Alpha < 0 {
		return fmt.Errorf("alpha must be non-negative, got %v", s.Alpha)
	}
	if s.MaxPositionSize <= 0 || s.MaxPositionSize > 1 {
		return fmt.Errorf("max position size must be in (0, 1], got %v", s.MaxPositionSize)
	}
	if s.MinScore < 0 || s.MinScore > 100 {
		return fmt.Errorf("min score must be in [0, 100], got %v", s.MinScore)
	}
	if s.PortfolioSize <= 0 {
		return fmt.Errorf("portfolio size must be positive, got %d", s.PortfolioSize)
	}
	if s.MinTotal < 0 {
		return fmt.Errorf("min total must be non-negative, got %d", s.MinTotal)
	}
	return nil
}

// loadBackupConfig returns nil unless backups are explicitly enabled.
func loadBackupConfig() *BackupConfig {
	if !getEnvAsBool("OCTAVE_BACKUP_ENABLED", false) {
		return nil
	}
	return &BackupConfig{
		Endpoint:  getEnv("OCTAVE_BACKUP_ENDPOINT", ""),
		Region:    getEnv("OCTAVE_BACKUP_REGION", "auto"),
		Bucket:    getEnv("OCTAVE_BACKUP_BUCKET", "octave-backups"),
		AccessKey: getEnv("OCTAVE_BACKUP_ACCESS_KEY", ""),
		SecretKey: getEnv("OCTAVE_BACKUP_SECRET_KEY", ""),
		Prefix:    getEnv("OCTAVE_BACKUP_PREFIX", "octave"),
		Keep:      getEnvAsInt("OCTAVE_BACKUP_KEEP", 8),
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
