package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over the defaults and applies SAIDA_*
// environment overrides. An empty path skips the file. The result is not
// validated; call Config.Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose SAIDA_* variable is set. DATA_DIR
// and PORT are honoured for deployments that predate the prefix.
func applyEnvOverrides(cfg *Config) {
	// ── Data ──
	setStr(&cfg.Data.Dir, "DATA_DIR")
	setStr(&cfg.Data.Dir, "SAIDA_DATA_DIR")
	setStr(&cfg.Data.BookFile, "SAIDA_DATA_BOOK_FILE")
	setStr(&cfg.Data.MonitorFile, "SAIDA_DATA_MONITOR_FILE")
	setStr(&cfg.Data.LegacyRealizedFile, "SAIDA_DATA_LEGACY_REALIZED_FILE")
	setStr(&cfg.Data.Timezone, "SAIDA_DATA_TIMEZONE")

	// ── Signals ──
	setSources(&cfg.Signals.Sources, "SAIDA_SIGNALS_SOURCES")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SAIDA_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PORT")
	setInt(&cfg.Server.Port, "SAIDA_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "SAIDA_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.DistDir, "SAIDA_SERVER_DIST_DIR")
	setStr(&cfg.Server.VersionFile, "SAIDA_SERVER_VERSION_FILE")
	setInt(&cfg.Server.RateLimit, "SAIDA_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "SAIDA_SERVER_RATE_WINDOW")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "SAIDA_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "SAIDA_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "SAIDA_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "SAIDA_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "SAIDA_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "SAIDA_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "SAIDA_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.LockTTL, "SAIDA_REDIS_LOCK_TTL")
	setStr(&cfg.Redis.EventsChannel, "SAIDA_REDIS_EVENTS_CHANNEL")
	setStr(&cfg.Redis.EventsStream, "SAIDA_REDIS_EVENTS_STREAM")
	setInt64(&cfg.Redis.StreamMaxLen, "SAIDA_REDIS_STREAM_MAX_LEN")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "SAIDA_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "SAIDA_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "SAIDA_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "SAIDA_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "SAIDA_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "SAIDA_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "SAIDA_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "SAIDA_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "SAIDA_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "SAIDA_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "SAIDA_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "SAIDA_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "SAIDA_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "SAIDA_S3_REGION")
	setStr(&cfg.S3.Bucket, "SAIDA_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "SAIDA_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "SAIDA_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "SAIDA_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "SAIDA_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "SAIDA_S3_PREFIX")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SAIDA_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SAIDA_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SAIDA_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SAIDA_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SAIDA_MODE")
	setStr(&cfg.LogLevel, "SAIDA_LOG_LEVEL")
	setStr(&cfg.BuildID, "SAIDA_BUILD_ID")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		if cleaned := splitList(v); len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setSources replaces the source list from "name=path,path2,...". Entries
// without a name are named after their file.
func setSources(dst *[]SourceConfig, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var sources []SourceConfig
	for _, item := range splitList(v) {
		name, path, ok := strings.Cut(item, "=")
		if !ok {
			name, path = strings.TrimSuffix(filepath.Base(item), filepath.Ext(item)), item
		}
		sources = append(sources, SourceConfig{Name: strings.TrimSpace(name), Path: strings.TrimSpace(path)})
	}
	if len(sources) > 0 {
		*dst = sources
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}
