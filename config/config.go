/*
config.go - Service configuration

SOURCES (later wins):
  1. Built-in defaults
  2. Environment variables (Load)
  3. Command-line flags (cmd/server)

ENVIRONMENT:
  PORT                    HTTP port                        (8080)
  DATABASE_PATH           SQLite file                      (pension.db)
  STATISTICS_FILE         Statistics JSON document         (data/statistics.json)
  CONTRIBUTION_RATE       tau                              (0.1952)
  SICK_FACTOR             Global sick-leave factor         (0.97)
  SICK_PAY_RATIO          Base share kept on a sick day    (0.8)
  MIN_CONTRIBUTORY_YEARS  Eligibility gate, 0 = off        (0)
  CALCULATION_RETENTION   Stored calculation lifetime      (0 = keep)
  ALLOWED_ORIGINS         Comma-separated CORS origins     (*)
  LOG_LEVEL               logrus level                     (info)
  LOG_FORMAT              text | json                      (text)
  ENVIRONMENT             development | production | test  (development)
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/warp/pension-engine/pension"
)

// Config holds all service configuration.
type Config struct {
	// Server
	Port           int
	AllowedOrigins []string

	// Storage
	DatabasePath         string
	StatisticsFile       string
	CalculationRetention time.Duration

	// Scheme parameters
	ContributionRate     decimal.Decimal
	SickFactor           decimal.Decimal
	SickPayRatio         decimal.Decimal
	MinContributoryYears int

	// Logging
	LogLevel  string
	LogFormat string

	Environment string
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	s := pension.DefaultSettings()
	return &Config{
		Port:                 8080,
		AllowedOrigins:       []string{"*"},
		DatabasePath:         "pension.db",
		StatisticsFile:       "data/statistics.json",
		ContributionRate:     s.ContributionRate,
		SickFactor:           s.SickFactor,
		SickPayRatio:         s.SickPayRatio,
		MinContributoryYears: s.MinContributoryYears,
		LogLevel:             "info",
		LogFormat:            "text",
		Environment:          "development",
	}
}

// Load reads the process environment over the defaults.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv. Malformed values are
// errors, not silently ignored.
func LoadFrom(getenv func(string) string) (*Config, error) {
	cfg := Default()

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := getenv("STATISTICS_FILE"); v != "" {
		cfg.StatisticsFile = v
	}
	if v := getenv("CALCULATION_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CALCULATION_RETENTION: %w", err)
		}
		cfg.CalculationRetention = d
	}

	decimals := []struct {
		key string
		dst *decimal.Decimal
	}{
		{"CONTRIBUTION_RATE", &cfg.ContributionRate},
		{"SICK_FACTOR", &cfg.SickFactor},
		{"SICK_PAY_RATIO", &cfg.SickPayRatio},
	}
	for _, d := range decimals {
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v := getenv("MIN_CONTRIBUTORY_YEARS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("MIN_CONTRIBUTORY_YEARS: %w", err)
		}
		cfg.MinContributoryYears = n
	}

	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = SplitList(v)
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := getenv("ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}

	return cfg, nil
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate rejects configurations the engine would refuse at request time.
func (c *Config) Validate() error {
	one := decimal.NewFromInt(1)

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.StatisticsFile == "" {
		return fmt.Errorf("statistics file is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database path is required")
	}
	if !c.ContributionRate.IsPositive() || c.ContributionRate.GreaterThan(one) {
		return fmt.Errorf("contribution rate %s must be in (0, 1]", c.ContributionRate)
	}
	if !c.SickFactor.IsPositive() || c.SickFactor.GreaterThan(one) {
		return fmt.Errorf("sick factor %s must be in (0, 1]", c.SickFactor)
	}
	if c.SickPayRatio.IsNegative() || c.SickPayRatio.GreaterThan(one) {
		return fmt.Errorf("sick pay ratio %s must be in [0, 1]", c.SickPayRatio)
	}
	if c.CalculationRetention < 0 {
		return fmt.Errorf("calculation retention must not be negative")
	}
	if c.MinContributoryYears < 0 {
		return fmt.Errorf("minimum contributory years must not be negative")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log format %q must be text or json", c.LogFormat)
	}
	return nil
}

// Settings returns the engine parameters.
func (c *Config) Settings() pension.Settings {
	return pension.Settings{
		ContributionRate:     c.ContributionRate,
		SickFactor:           c.SickFactor,
		SickPayRatio:         c.SickPayRatio,
		MinContributoryYears: c.MinContributoryYears,
	}
}

// IsProduction reports whether destructive admin routes must stay off.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// ConfigureLogging applies level and format to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
