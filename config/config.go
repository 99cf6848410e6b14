package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingDatabaseURL is returned by Load when no connection string is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is not set")

// Tie-break strategies for units whose name or abbreviation match the same token.
const (
	TieBreakStore  = "store"
	TieBreakNewest = "newest"
	TieBreakOldest = "oldest"
)

type Config struct {
	DatabaseURL     string
	DBMaxOpenConns  int
	DBMaxIdleConns  int
	DBConnLifetime  time.Duration
	LogLevel        string
	LogFormat       string
	Port            string
	DryRun          bool
	JobTimeout      time.Duration
	UnitTieBreak    string
	CleanupStrict   bool
	ExportPath      string
	AuditSampleSize int
	NormalizeCron   string
	CompanyIDs      []string
}

// Load reads an optional .env file, then the process environment.
// Environment variables already set take precedence over .env values.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PORT", "9000")
	v.SetDefault("DRY_RUN", false)
	v.SetDefault("JOB_TIMEOUT", "30m")
	v.SetDefault("UNIT_TIE_BREAK", TieBreakStore)
	v.SetDefault("CLEANUP_REQUIRE_ABBREVIATION", false)
	v.SetDefault("EXPORT_PATH", "exports/boq_unit_items.csv")
	v.SetDefault("AUDIT_SAMPLE_SIZE", 20)
	v.SetDefault("NORMALIZE_SCHEDULE", "0 2 * * *")

	cfg := &Config{
		DatabaseURL:     strings.TrimSpace(v.GetString("DATABASE_URL")),
		DBMaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		DBMaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		DBConnLifetime:  v.GetDuration("DB_CONN_MAX_LIFETIME"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		Port:            v.GetString("PORT"),
		DryRun:          v.GetBool("DRY_RUN"),
		JobTimeout:      v.GetDuration("JOB_TIMEOUT"),
		UnitTieBreak:    strings.ToLower(v.GetString("UNIT_TIE_BREAK")),
		CleanupStrict:   v.GetBool("CLEANUP_REQUIRE_ABBREVIATION"),
		ExportPath:      v.GetString("EXPORT_PATH"),
		AuditSampleSize: v.GetInt("AUDIT_SAMPLE_SIZE"),
		NormalizeCron:   strings.TrimSpace(v.GetString("NORMALIZE_SCHEDULE")),
		CompanyIDs:      splitList(v.GetString("COMPANY_IDS")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and enumerations.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	switch c.UnitTieBreak {
	case TieBreakStore, TieBreakNewest, TieBreakOldest:
	default:
		return fmt.Errorf("invalid UNIT_TIE_BREAK %q: want store, newest or oldest", c.UnitTieBreak)
	}
	if c.AuditSampleSize <= 0 {
		return fmt.Errorf("invalid AUDIT_SAMPLE_SIZE %d: must be positive", c.AuditSampleSize)
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("invalid JOB_TIMEOUT %s: must be positive", c.JobTimeout)
	}
	if c.ExportPath == "" {
		return errors.New("EXPORT_PATH must not be empty")
	}
	return nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
