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
	DataDir            string // Base directory for the tracker database, audit log and backup staging
	Port               int
	LogLevel           string
	DevMode            bool
	MetaAccessToken    string // Meta Marketing API access token
	MetaAdAccountID    string // Ad account in "act_<id>" form
	AnalyticsDSN       string // Postgres DSN for the app analytics store
	MonitorAutoStart   bool   // Start the performance monitor on boot
	CheckIntervalHours int    // Scheduled performance check cadence
	SweepThresholds    SweepThresholdConfig
	Backup             *BackupConfig
}

// SweepThresholdConfig holds the scheduled sweep's threshold scheme.
// This is intentionally a separate rule set from the KPI cost/ROAS thresholds;
// the two policies are documented in DESIGN.md and never merged.
type SweepThresholdConfig struct {
	MinDay1Retention float64
	MinDay3Retention float64
	MinDay7Retention float64
	MinSessionCount  float64
	MinTimeSpent     float64 // seconds
	MinInstalls      int
	MinCTR           float64 // percent
	MaxCPM           float64
	MinROAS          float64
	MaxCPA           float64
}

// BackupConfig holds S3-compatible backup configuration.
// Backups are disabled when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // S3-compatible endpoint (e.g. Cloudflare R2)
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Keep            int // number of backups to retain
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("ADPILOT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		Port:               getEnvAsInt("PORT", 3000),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		MetaAccessToken:    getEnv("META_ACCESS_TOKEN", ""),
		MetaAdAccountID:    getEnv("META_AD_ACCOUNT_ID", ""),
		AnalyticsDSN:       getEnv("ANALYTICS_DATABASE_URL", ""),
		MonitorAutoStart:   getEnvAsBool("PERFORMANCE_MONITOR_AUTOSTART", false),
		CheckIntervalHours: getEnvAsInt("PERFORMANCE_CHECK_INTERVAL_HOURS", 2),
		SweepThresholds:    loadSweepThresholds(),
		Backup:             loadBackupConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	// Meta credentials are optional at startup: the dashboard-facing endpoints
	// report connection status instead of refusing to boot.
	if c.CheckIntervalHours < 1 {
		return fmt.Errorf("PERFORMANCE_CHECK_INTERVAL_HOURS must be at least 1, got %d", c.CheckIntervalHours)
	}
	return nil
}

func loadSweepThresholds() SweepThresholdConfig {
	return SweepThresholdConfig{
		MinDay1Retention: getEnvAsFloat("MIN_D1_RETENTION", 0.30),
		MinDay3Retention: getEnvAsFloat("MIN_D3_RETENTION", 0.15),
		MinDay7Retention: getEnvAsFloat("MIN_D7_RETENTION", 0.08),
		MinSessionCount:  getEnvAsFloat("MIN_SESSION_COUNT", 2),
		MinTimeSpent:     getEnvAsFloat("MIN_TIME_SPENT", 300),
		MinInstalls:      getEnvAsInt("MIN_INSTALLS", 10),
		MinCTR:           getEnvAsFloat("MIN_CTR_THRESHOLD", 0.8),
		MaxCPM:           getEnvAsFloat("MIN_CPM_THRESHOLD", 15.0),
		MinROAS:          getEnvAsFloat("MIN_ROAS_THRESHOLD", 1.5),
		MaxCPA:           getEnvAsFloat("MAX_CPA_THRESHOLD", 25.0),
	}
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
		Region:          getEnv("BACKUP_S3_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
		Keep:            getEnvAsInt("BACKUP_KEEP", 7),
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
