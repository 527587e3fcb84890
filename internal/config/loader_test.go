package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_FileValues(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "db", "fundus.db")
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 19090
database:
  path: `+dbPath+`
dataset:
  source: https://example.test/store/data.xlsx
  reload_on_reset: true
upload:
  decode_concurrency: 3
analysis:
  advice_delay_ms: 250
export:
  default_format: csv
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:19090", cfg.Server.GetAddress())
	assert.Equal(t, "https://example.test/store/data.xlsx", cfg.Dataset.Source)
	assert.True(t, cfg.Dataset.ReloadOnReset)
	assert.Equal(t, 3, cfg.Upload.DecodeConcurrency)
	assert.Equal(t, 250*time.Millisecond, cfg.Analysis.GetAdviceDelay())
	assert.Equal(t, "csv", cfg.Export.DefaultFormat)

	// 未配置的字段使用默认值
	assert.Equal(t, 500, cfg.Upload.MaxFilesPerPhase)
	assert.Equal(t, int64(20<<20), cfg.Upload.GetMaxFileSize())
	assert.Equal(t, "诊断报告", cfg.Export.SheetName)
	assert.False(t, cfg.Redis.Enabled())

	_, err = os.Stat(filepath.Dir(dbPath))
	assert.NoError(t, err, "database directory should be created")
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 19090
database:
  path: `+filepath.Join(t.TempDir(), "fundus.db")+`
`)
	t.Setenv("FUNDUS_SERVER_PORT", "18181")
	t.Setenv("FUNDUS_REDIS_SERVICE_HOST", "redis.local")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 18181, cfg.Server.Port)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "redis.local:6379", cfg.Redis.GetAddress())
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad port", "server:\n  port: 70000\n"},
		{"bad export format", "export:\n  default_format: pdf\n"},
		{"negative delay", "analysis:\n  match_delay_ms: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := tt.body + "database:\n  path: " + filepath.Join(t.TempDir(), "fundus.db") + "\n"
			_, err := LoadConfig(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 18080, cfg.Server.Port)
	assert.Equal(t, "./store/data.xlsx", cfg.Dataset.Source)
	assert.Equal(t, "xlsx", cfg.Export.DefaultFormat)
	assert.Equal(t, time.Hour, cfg.Session.GetIdleTimeout())
}
