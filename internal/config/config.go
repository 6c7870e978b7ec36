// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for databases and caches (always absolute)
	CriteriaPath  string // Path to the screening criteria YAML file
	UniverseFile  string // Optional symbol list; the curated universe is used when empty
	AnalysesDir   string // Directory holding per-symbol qualitative analysis markdown
	FinnhubAPIKey string // Optional; finnhub sources are skipped without it
	LogLevel      string
	Port          int
	DevMode       bool

	Tiers    TierConfig
	Fetch    FetchConfig
	Schedule ScheduleConfig
	Backup   *BackupConfig
}

// TierConfig holds tier-assignment thresholds.
// Percentages are stored as decimal fractions (0.25 = 25%).
type TierConfig struct {
	MinMarginOfSafety float64 // Fair value discount required for the target entry price
	ProximityAlertPct float64 // Alert when price is within this fraction of target
	TrancheCount      int     // Number of staged-entry tranches
	TrancheStepPct    float64 // Price step between tranches, as a fraction of target
}

// FetchConfig holds fundamentals-fetch behavior.
type FetchConfig struct {
	Workers           int     // Bounded concurrency for per-symbol requests
	RequestsPerMinute float64 // Provider rate limit
	CacheTTLHours     int     // Freshness window for cached fundamentals
}

// ScheduleConfig holds cron expressions for the background jobs.
type ScheduleConfig struct {
	FullScreen string // Complete universe screen with tier reassignment
	PriceCheck string // Lightweight proximity re-check against current prices
	Cleanup    string // Expired client-data purge
	Backup     string // S3 snapshot backup, used only when backups are enabled
}

// BackupConfig holds S3 snapshot backup configuration.
// Backups are disabled unless a bucket is configured.
type BackupConfig struct {
	Bucket        string
	Region        string
	Prefix        string
	RetentionDays int // 0 keeps backups forever
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("STEWARD_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:       absDataDir,
		CriteriaPath:  getEnv("SCREENING_CRITERIA_PATH", "config/screening_criteria.yaml"),
		UniverseFile:  getEnv("UNIVERSE_FILE", ""),
		AnalysesDir:   getEnv("ANALYSES_DIR", filepath.Join(absDataDir, "analyses")),
		FinnhubAPIKey: getEnv("FINNHUB_API_KEY", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnvAsInt("PORT", 8010),
		DevMode:       getEnvAsBool("DEV_MODE", false),
		Tiers: TierConfig{
			MinMarginOfSafety: getEnvAsFloat("MARGIN_OF_SAFETY_PCT", 25) / 100,
			ProximityAlertPct: getEnvAsFloat("TIER1_PROXIMITY_ALERT_PCT", 10) / 100,
			TrancheCount:      getEnvAsInt("STAGED_ENTRY_TRANCHES", 3),
			TrancheStepPct:    getEnvAsFloat("STAGED_ENTRY_STEP_PCT", 5) / 100,
		},
		Fetch: FetchConfig{
			Workers:           getEnvAsInt("FETCH_WORKERS", 4),
			RequestsPerMinute: getEnvAsFloat("FETCH_REQUESTS_PER_MINUTE", 30),
			CacheTTLHours:     getEnvAsInt("FETCH_CACHE_TTL_HOURS", 24),
		},
		Schedule: ScheduleConfig{
			FullScreen: getEnv("SCHEDULE_FULL_SCREEN", "0 7 1 * *"),
			PriceCheck: getEnv("SCHEDULE_PRICE_CHECK", "0 8 * * 1"),
			Cleanup:    getEnv("SCHEDULE_CLEANUP", "30 3 * * *"),
			Backup:     getEnv("SCHEDULE_BACKUP", "0 4 * * 0"),
		},
		Backup: loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and sane
func (c *Config) Validate() error {
	if c.Tiers.MinMarginOfSafety <= 0 || c.Tiers.MinMarginOfSafety >= 1 {
		return fmt.Errorf("margin of safety must be a fraction in (0, 1), got %.2f", c.Tiers.MinMarginOfSafety)
	}
	if c.Tiers.TrancheCount < 1 {
		return fmt.Errorf("staged entry needs at least one tranche, got %d", c.Tiers.TrancheCount)
	}
	if c.Tiers.TrancheStepPct < 0 || c.Tiers.TrancheStepPct >= 1 {
		return fmt.Errorf("tranche step must be a fraction in [0, 1), got %.2f", c.Tiers.TrancheStepPct)
	}
	if c.Fetch.Workers < 1 {
		return fmt.Errorf("fetch workers must be positive, got %d", c.Fetch.Workers)
	}
	return nil
}

// BackupEnabled reports whether S3 snapshot backups are configured.
func (c *Config) BackupEnabled() bool {
	return c.Backup != nil && c.Backup.Bucket != ""
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

func loadBackupConfig() *BackupConfig {
	bucket := getEnv("BACKUP_S3_BUCKET", "")
	if bucket == "" {
		return nil
	}
	return &BackupConfig{
		Bucket:        bucket,
		Region:        getEnv("BACKUP_S3_REGION", "eu-central-1"),
		Prefix:        getEnv("BACKUP_S3_PREFIX", "steward"),
		RetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 90),
	}
}
