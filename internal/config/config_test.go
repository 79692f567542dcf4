package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join("data", "saida_ops.json"), cfg.Data.BookPath())
	assert.Equal(t, filepath.Join("data", "saida_monitor.json"), cfg.Data.MonitorPath())
	assert.Equal(t, 8096, cfg.Server.Port)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saida.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "server"
log_level = "debug"

[data]
dir = "/srv/saida"
book_file = "/var/lib/saida/ops.json"

[[signals.sources]]
name = "pro"
path = "/srv/feeds/pro.json"

[[signals.sources]]
name = "backup"
path = "/srv/feeds/backup.yaml"

[redis]
enabled = true
lock_ttl = "5s"
`), 0o644))

	t.Setenv("SAIDA_SERVER_PORT", "9000")
	t.Setenv("SAIDA_REDIS_PASSWORD", "hunter2")
	t.Setenv("SAIDA_NOTIFY_EVENTS", "position_added, position_exited,")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/saida/ops.json", cfg.Data.BookPath())
	assert.Equal(t, filepath.Join("/srv/saida", "saida_monitor.json"), cfg.Data.MonitorPath())
	require.Len(t, cfg.Signals.Sources, 2)
	assert.Equal(t, "backup", cfg.Signals.Sources[1].Name)
	assert.Equal(t, 5*time.Second, cfg.Redis.LockTTL.Duration)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, []string{"position_added", "position_exited"}, cfg.Notify.Events)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saida.toml")
	require.NoError(t, os.WriteFile(path, []byte("[data]\nbook = \"x.json\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data.book")
}

func TestLegacyEnvNames(t *testing.T) {
	t.Setenv("DATA_DIR", "/legacy")
	t.Setenv("PORT", "8100")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/legacy", cfg.Data.Dir)
	assert.Equal(t, 8100, cfg.Server.Port)
}

func TestSourcesFromEnv(t *testing.T) {
	t.Setenv("SAIDA_SIGNALS_SOURCES", "pro=/feeds/pro.json, /feeds/fallback.yaml")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []SourceConfig{
		{Name: "pro", Path: "/feeds/pro.json"},
		{Name: "fallback", Path: "/feeds/fallback.yaml"},
	}, cfg.Signals.Sources)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	cfg.Data.Timezone = "Mars/Olympus"
	cfg.Signals.Sources = []SourceConfig{{Path: "", Format: "xml"}}
	cfg.Server.Port = 0
	cfg.Notify.TelegramToken = "t"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		"unknown timezone",
		"sources[0].path",
		"sources[0].format",
		"server: port",
		"telegram_chat_id",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestArchiveModeRequiresBucket(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "archive"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket")

	cfg.S3.Bucket = "saida-archive"
	assert.NoError(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "pw"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.S3.SecretKey = "secret"
	cfg.Notify.TelegramToken = "tok"
	cfg.Server.CORSOrigins = []string{"https://a"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Redis.Password)
	assert.Equal(t, "***", out.Postgres.DSN)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Empty(t, out.S3.AccessKey)

	out.Server.CORSOrigins[0] = "https://b"
	assert.Equal(t, "https://a", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "pw", cfg.Redis.Password)
}
