package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	assert.Equal(t, 30*time.Minute, Default().InteractionDuration())
	assert.Equal(t, 10*time.Second, Default().SyncInterval())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  addr: 0.0.0.0:9000
  metrics_enabled: false
client:
  server_url: https://study.example.org
  timeout: 5s
study:
  interaction_minutes: 20
costs:
  daily_limit: 1.5
  weekly_limit: 4
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("STUDYCTL_WEEKLY_LIMIT", "6.25")
	t.Setenv("STUDYCTL_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.False(t, cfg.Server.MetricsEnabled)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.Equal(t, 20, cfg.Study.InteractionMinutes)
	assert.Equal(t, 10, cfg.Study.SyncIntervalSeconds, "unset keys keep defaults")
	assert.Equal(t, 1.5, cfg.Costs.DailyLimit)
	assert.Equal(t, 6.25, cfg.Costs.WeeklyLimit)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"weekly below daily", func(c *Config) { c.Costs.WeeklyLimit = 1.5 }, "WeeklyLimit"},
		{"zero daily", func(c *Config) { c.Costs.DailyLimit = 0 }, "DailyLimit"},
		{"bad url", func(c *Config) { c.Client.ServerURL = "not a url" }, "ServerURL"},
		{"bad addr", func(c *Config) { c.Server.Addr = "localhost" }, "Addr"},
		{"long interaction", func(c *Config) { c.Study.InteractionMinutes = 600 }, "InteractionMinutes"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "Level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestBadEnvValue(t *testing.T) {
	t.Setenv("STUDYCTL_DAILY_LIMIT", "two dollars")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STUDYCTL_DAILY_LIMIT")
}
