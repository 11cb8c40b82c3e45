// Package config provides configuration loading, validation, and management
// for the ReadWiser bot. Values come from built-in defaults, an optional YAML
// file, and READWISER_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // scheduler timezones must resolve on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (READWISER_TELEGRAM_TOKEN, ...).
const EnvPrefix = "READWISER"

// Names of the scheduled tasks; they key Scheduler.Tasks and the task registry.
const (
	TaskDigest         = "digest"
	TaskDailyQuote     = "daily_quote"
	TaskSQLMaintenance = "sql_maintenance"
)

// Config defines the application configuration for all components of the bot.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Pending   PendingConfig   `mapstructure:"pending"`
	Digest    DigestConfig    `mapstructure:"digest"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log verbosity and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot credential.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`
}

// DatabaseConfig holds the SQLite storage location.
type DatabaseConfig struct {
	Path        string        `mapstructure:"path"         validate:"required"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout" validate:"min=0,max=1m"`
}

// MetadataConfig controls article metadata fetching.
// Failed fetches are retried RetryAttempts times in total; BreakerFailures
// consecutive failures stop fetching for BreakerCooldown.
type MetadataConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"          validate:"min=1s,max=1m"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"   validate:"min=1024"`
	UserAgent       string        `mapstructure:"user_agent"       validate:"required"`
	RetryAttempts   uint          `mapstructure:"retry_attempts"   validate:"min=1,max=5"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"      validate:"min=0,max=10s"`
	BreakerFailures uint32        `mapstructure:"breaker_failures" validate:"min=1"`
	BreakerCooldown time.Duration `mapstructure:"breaker_cooldown" validate:"min=1s,max=1h"`
}

// PendingConfig controls how long a URL-only message waits for its quote.
type PendingConfig struct {
	TTL time.Duration `mapstructure:"ttl" validate:"min=1s,max=24h"`
}

// DigestConfig controls the size of a digest.
type DigestConfig struct {
	Count int `mapstructure:"count" validate:"min=1,max=50"`
}

// SchedulerConfig holds the timezone and per-task schedules.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"    validate:"dive"`
}

// TaskConfig describes when a scheduled task runs. An empty DayOfWeek means every day.
type TaskConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	DayOfWeek string `mapstructure:"day_of_week" validate:"omitempty,oneof=sun mon tue wed thu fri sat"`
	Hour      int    `mapstructure:"hour"        validate:"min=0,max=23"`
	Minute    int    `mapstructure:"minute"      validate:"min=0,max=59"`
}

// MetricsConfig controls the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// MessagesConfig holds user-facing texts that operators may want to customise.
type MessagesConfig struct {
	Welcome      string `mapstructure:"welcome"       validate:"required"`
	GeneralError string `mapstructure:"general_error" validate:"required"`
}

var weekdays = map[string]int{"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6}

// Cron renders the task schedule as a five-field cron expression.
func (t TaskConfig) Cron() string {
	dow := "*"
	if d, ok := weekdays[t.DayOfWeek]; ok {
		dow = strconv.Itoa(d)
	}
	return fmt.Sprintf("%d %d * * %s", t.Minute, t.Hour, dow)
}

// Location resolves the configured scheduler timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// LoadConfig reads configuration from defaults, the YAML file at path (optional,
// a missing file is not an error) and the environment, then validates it.
func LoadConfig(path string) (*Config, error) {
	startTime := time.Now()
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			slog.Info("Configuration file not found, using defaults and environment", "path", path)
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
			slog.Debug("Configuration file loaded", "path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if _, err := cfg.Scheduler.Location(); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded successfully",
		"log_level", cfg.Logger.Level,
		"db_path", cfg.Database.Path,
		"digest_count", cfg.Digest.Count,
		"duration_ms", time.Since(startTime).Milliseconds())

	return cfg, nil
}
