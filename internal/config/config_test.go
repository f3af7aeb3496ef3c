package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/skilldex/internal/env"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "./skilldex.db", cfg.Database.Path)
	assert.Equal(t, "SKILL.md", cfg.GitHub.Filename)
	assert.Equal(t, 50, cfg.Leaderboard.MinInstalls)
	assert.Equal(t, 10*time.Second, cfg.Leaderboard.ParseSettleDelay())
	assert.Equal(t, 500*time.Millisecond, cfg.Backfill.ParseStaggerToken())
	assert.Equal(t, 30*time.Second, cfg.Backfill.ParseStaggerAnonymous())
	assert.Equal(t, 25, cfg.Backfill.ReposPerBatch)
	assert.Equal(t, time.Second, cfg.Worker.ParsePollInterval())
}

func TestLoadWithEnv(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "skilldex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /var/lib/skilldex.db
github:
  token: from-file
leaderboard:
  min_installs: 200
  settle_delay: 2s
backfill:
  fetch_stagger: 1s
schedule:
  sync_cron: "30 4 * * *"
  run_on_start: true
worker:
  concurrency: 8
alerts:
  webhook:
    enabled: true
    url: https://hooks.test/in
    secret: s3cret
`), 0o600))

	cfg, err := LoadWithEnv(path, env.MapReader{
		"GITHUB_TOKEN":       " from-env ",
		"SLACK_WEBHOOK_URL":  "https://hooks.slack.test/x",
		"SKILLDEX_LOG_LEVEL": "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/skilldex.db", cfg.Database.Path)
	assert.Equal(t, "from-env", cfg.GitHub.Token)
	assert.Equal(t, 200, cfg.Leaderboard.MinInstalls)
	assert.Equal(t, 100, cfg.Leaderboard.ChunkSize, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Leaderboard.ParseSettleDelay())
	assert.Equal(t, time.Second, cfg.Backfill.ParseFetchStagger())
	assert.Equal(t, "30 4 * * *", cfg.Schedule.SyncCron)
	assert.True(t, cfg.Schedule.RunOnStart)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.True(t, cfg.Alerts.Slack.Enabled)
	assert.Equal(t, "https://hooks.slack.test/x", cfg.Alerts.Slack.WebhookURL)
	assert.False(t, cfg.Alerts.Discord.Enabled)
	assert.Equal(t, "s3cret", cfg.Alerts.Webhook.Secret)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), env.MapReader{})
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: [oops"), 0o600))
	_, err = LoadWithEnv(bad, env.MapReader{})
	assert.Error(t, err)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadWithEnv("", env.MapReader{"SKILLDEX_DB_PATH": "/tmp/x.db"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestDurationFallbacks(t *testing.T) {
	t.Parallel()

	w := WorkerConfig{PollInterval: "soon", RetryBackoff: "-5s"}
	assert.Equal(t, time.Second, w.ParsePollInterval())
	assert.Equal(t, 30*time.Second, w.ParseRetryBackoff())
}
