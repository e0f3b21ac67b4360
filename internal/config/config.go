package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	DBMinConns  int32  `envconfig:"NP_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"NP_DB_MAX_CONNS" default:"8"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"tara.db"`

	RetentionHours        int    `envconfig:"RETENTION_HOURS" default:"336"`
	RetentionWeekendHours int    `envconfig:"RETENTION_WEEKEND_HOURS" default:"0"`
	RetentionTimezone     string `envconfig:"RETENTION_TIMEZONE" default:"America/New_York"`

	AggregatorDomains string  `envconfig:"AGGREGATOR_DOMAINS" default:"cryptopanic.com"`
	FuzzyThreshold    float64 `envconfig:"FUZZY_THRESHOLD" default:"0.55"`
	DedupeScanLimit   int     `envconfig:"DEDUPE_SCAN_LIMIT" default:"2000"`

	FilterRulesFile   string `envconfig:"FILTER_RULES_FILE" default:""`
	FilterShopping    bool   `envconfig:"FILTER_SHOPPING" default:"true"`
	FilterLocalCrime  bool   `envconfig:"FILTER_LOCAL_CRIME" default:"true"`
	FilterReposters   bool   `envconfig:"FILTER_REPOSTERS" default:"false"`
	FilterEnglishOnly bool   `envconfig:"FILTER_ENGLISH_ONLY" default:"false"`
	EnableSentiment   bool   `envconfig:"ENABLE_SENTIMENT" default:"false"`

	WebhookSecret string `envconfig:"WEBHOOK_SECRET" default:""`
	AdminKey      string `envconfig:"ADMIN_KEY" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, postgres, sqlite (got %q)", c.StoreDriver)
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("NP_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("NP_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("NP_DB_MIN_CONNS (%d) cannot exceed NP_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RetentionHours < 1 {
		return fmt.Errorf("RETENTION_HOURS must be >= 1")
	}
	if c.RetentionWeekendHours < 0 {
		return fmt.Errorf("RETENTION_WEEKEND_HOURS must be >= 0")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(c.RetentionTimezone)); err != nil {
		return fmt.Errorf("RETENTION_TIMEZONE %q: %w", c.RetentionTimezone, err)
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("FUZZY_THRESHOLD must be in (0, 1]")
	}
	if c.DedupeScanLimit < 1 {
		return fmt.Errorf("DEDUPE_SCAN_LIMIT must be >= 1")
	}
	return nil
}

// Location returns the retention/dedupe calendar zone. Validate has already
// confirmed it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(c.RetentionTimezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// RetentionWeekendWindow falls back to the weekday window when unset.
func (c *Config) RetentionWeekendWindow() time.Duration {
	if c.RetentionWeekendHours <= 0 {
		return c.RetentionWindow()
	}
	return time.Duration(c.RetentionWeekendHours) * time.Hour
}

func (c *Config) AggregatorDomainList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.AggregatorDomains)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		item := strings.ToLower(strings.TrimSpace(part))
		if item == "" {
			continue
		}
		if _, exists := seen[item]; exists {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// RetentionWindowAt picks the weekday or weekend window for now in Location.
func (c *Config) RetentionWindowAt(now time.Time) time.Duration {
	switch now.In(c.Location()).Weekday() {
	case time.Saturday, time.Sunday:
		return c.RetentionWeekendWindow()
	default:
		return c.RetentionWindow()
	}
}
