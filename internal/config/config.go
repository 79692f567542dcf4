// Package config defines the runtime configuration of the saida service and
// its validation rules.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config is the root configuration. Fields come from a TOML file and are
// then overridden by SAIDA_* environment variables.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Signals  SignalsConfig  `toml:"signals"`
	Server   ServerConfig   `toml:"server"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
	BuildID  string         `toml:"build_id"`
}

// DataConfig locates the position book and the monitor snapshot.
type DataConfig struct {
	Dir                string `toml:"dir"`
	BookFile           string `toml:"book_file"`
	MonitorFile        string `toml:"monitor_file"`
	LegacyRealizedFile string `toml:"legacy_realized_file"`
	Timezone           string `toml:"timezone"`
}

// BookPath returns the book file, joined to Dir when relative.
func (d DataConfig) BookPath() string { return d.resolve(d.BookFile) }

// MonitorPath returns the monitor snapshot file, joined to Dir when relative.
func (d DataConfig) MonitorPath() string { return d.resolve(d.MonitorFile) }

// LegacyRealizedPath returns the legacy realized file, or "" when unset.
func (d DataConfig) LegacyRealizedPath() string {
	if d.LegacyRealizedFile == "" {
		return ""
	}
	return d.resolve(d.LegacyRealizedFile)
}

func (d DataConfig) resolve(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.Dir, name)
}

// SignalsConfig lists the feed documents consulted for targets, in order.
type SignalsConfig struct {
	Sources []SourceConfig `toml:"sources"`
}

// SourceConfig is one signal feed document. Format is "json" or "yaml" and
// defaults to the file extension.
type SourceConfig struct {
	Name   string `toml:"name"`
	Path   string `toml:"path"`
	Format string `toml:"format"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	DistDir     string   `toml:"dist_dir"`
	VersionFile string   `toml:"version_file"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// RedisConfig holds Redis connection parameters and the event bus names.
type RedisConfig struct {
	Enabled       bool     `toml:"enabled"`
	Addr          string   `toml:"addr"`
	Password      string   `toml:"password"`
	DB            int      `toml:"db"`
	PoolSize      int      `toml:"pool_size"`
	MaxRetries    int      `toml:"max_retries"`
	TLSEnabled    bool     `toml:"tls_enabled"`
	LockTTL       duration `toml:"lock_ttl"`
	EventsChannel string   `toml:"events_channel"`
	EventsStream  string   `toml:"events_stream"`
	StreamMaxLen  int64    `toml:"stream_max_len"`
}

// PostgresConfig holds the audit log database parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds the realized-history archive bucket parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// NotifyConfig holds notification channel credentials. Events filters which
// lifecycle events are sent; empty sends all.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values of config.example.toml.
func Defaults() Config {
	return Config{
		Data: DataConfig{
			Dir:                "data",
			BookFile:           "saida_ops.json",
			MonitorFile:        "saida_monitor.json",
			LegacyRealizedFile: "saida_real.json",
			Timezone:           "America/Sao_Paulo",
		},
		Signals: SignalsConfig{
			Sources: []SourceConfig{
				{Name: "pro", Path: "data/sinais_pro.json"},
			},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8096,
			DistDir:     "dist",
			VersionFile: "VERSION",
			RateLimit:   60,
			RateWindow:  duration{time.Minute},
		},
		Redis: RedisConfig{
			Addr:          "localhost:6379",
			PoolSize:      10,
			MaxRetries:    3,
			LockTTL:       duration{10 * time.Second},
			EventsChannel: "positions",
			EventsStream:  "saida:events",
			StreamMaxLen:  10000,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "saida",
			User:          "saida",
			SSLMode:       "disable",
			PoolMaxConns:  5,
			PoolMinConns:  0,
			RunMigrations: true,
		},
		S3: S3Config{
			Region: "us-east-1",
			Prefix: "saida",
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"archive": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFormats = map[string]bool{
	"":     true,
	"json": true,
	"yaml": true,
	"yml":  true,
}

// Validate reports every problem in c as one error.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Data
	if strings.TrimSpace(c.Data.BookFile) == "" {
		errs = append(errs, "data: book_file must not be empty")
	}
	if strings.TrimSpace(c.Data.MonitorFile) == "" {
		errs = append(errs, "data: monitor_file must not be empty")
	}
	if c.Data.Timezone != "" {
		if _, err := time.LoadLocation(c.Data.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("data: unknown timezone %q", c.Data.Timezone))
		}
	}

	// Signals
	if len(c.Signals.Sources) == 0 {
		errs = append(errs, "signals: at least one source is required")
	}
	for i, s := range c.Signals.Sources {
		if strings.TrimSpace(s.Path) == "" {
			errs = append(errs, fmt.Sprintf("signals: sources[%d].path must not be empty", i))
		}
		if !validFormats[strings.ToLower(s.Format)] {
			errs = append(errs, fmt.Sprintf("signals: sources[%d].format %q must be json or yaml", i, s.Format))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.LockTTL.Duration <= 0 {
			errs = append(errs, "redis: lock_ttl must be > 0")
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// S3
	if c.S3.Enabled || mode == "archive" {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
		if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
			errs = append(errs, "s3: access_key and secret_key must be set together")
		}
	}

	// Notify
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
