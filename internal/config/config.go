package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/skilldex/internal/env"
)

// Config is the root configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	GitHub      GitHubConfig      `yaml:"github"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Backfill    BackfillConfig    `yaml:"backfill"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Worker      WorkerConfig      `yaml:"worker"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// GitHubConfig configures repository access. Token is optional; without it REST calls
// are anonymous and discovery is paced much slower.
type GitHubConfig struct {
	Token    string `yaml:"token"`
	Filename string `yaml:"filename"`
	APIBase  string `yaml:"api_base"`
	RawBase  string `yaml:"raw_base"`
	WebBase  string `yaml:"web_base"`
}

// LeaderboardConfig configures the leaderboard sync.
type LeaderboardConfig struct {
	URL         string `yaml:"url"`
	MinInstalls int    `yaml:"min_installs"`
	ChunkSize   int    `yaml:"chunk_size"`
	SettleDelay string `yaml:"settle_delay"`
	MaxPages    int    `yaml:"max_pages"`
}

// ParseSettleDelay returns the settle delay as time.Duration.
func (l LeaderboardConfig) ParseSettleDelay() time.Duration {
	return parseDuration(l.SettleDelay, 10*time.Second)
}

// BackfillConfig paces the discovery and fetch passes.
type BackfillConfig struct {
	StaggerToken     string `yaml:"stagger_token"`
	StaggerAnonymous string `yaml:"stagger_anonymous"`
	FetchStagger     string `yaml:"fetch_stagger"`
	ReposPerBatch    int    `yaml:"repos_per_batch"`
	DiscoverPageSize int    `yaml:"discover_page_size"`
	FetchPageSize    int    `yaml:"fetch_page_size"`
	RefreshPageSize  int    `yaml:"refresh_page_size"`
}

// ParseStaggerToken returns the authenticated discovery stagger.
func (b BackfillConfig) ParseStaggerToken() time.Duration {
	return parseDuration(b.StaggerToken, 500*time.Millisecond)
}

// ParseStaggerAnonymous returns the anonymous discovery stagger.
func (b BackfillConfig) ParseStaggerAnonymous() time.Duration {
	return parseDuration(b.StaggerAnonymous, 30*time.Second)
}

// ParseFetchStagger returns the content fetch stagger.
func (b BackfillConfig) ParseFetchStagger() time.Duration {
	return parseDuration(b.FetchStagger, 500*time.Millisecond)
}

// ScheduleConfig configures the recurring jobs. Cron specs use the standard five
// fields; an empty spec disables the job.
type ScheduleConfig struct {
	SyncCron    string `yaml:"sync_cron"`
	RefreshCron string `yaml:"refresh_cron"`
	RunOnStart  bool   `yaml:"run_on_start"`
}

// WorkerConfig configures the task queue worker.
type WorkerConfig struct {
	Concurrency  int    `yaml:"concurrency"`
	PollInterval string `yaml:"poll_interval"`
	MaxAttempts  int    `yaml:"max_attempts"`
	RetryBackoff string `yaml:"retry_backoff"`
}

// ParsePollInterval returns the poll interval as time.Duration.
func (w WorkerConfig) ParsePollInterval() time.Duration {
	return parseDuration(w.PollInterval, time.Second)
}

// ParseRetryBackoff returns the retry backoff as time.Duration.
func (w WorkerConfig) ParseRetryBackoff() time.Duration {
	return parseDuration(w.RetryBackoff, 30*time.Second)
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `yaml:"format"` // "json" or "text"
	Level  string `yaml:"level"`
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./skilldex.db"},
		GitHub:   GitHubConfig{Filename: "SKILL.md"},
		Leaderboard: LeaderboardConfig{
			URL:         "https://skills.sh",
			MinInstalls: 50,
			ChunkSize:   100,
			SettleDelay: "10s",
			MaxPages:    1000,
		},
		Backfill: BackfillConfig{
			StaggerToken:     "500ms",
			StaggerAnonymous: "30s",
			FetchStagger:     "500ms",
			ReposPerBatch:    25,
			DiscoverPageSize: 500,
			FetchPageSize:    200,
			RefreshPageSize:  200,
		},
		Schedule: ScheduleConfig{
			SyncCron:    "0 3 * * *",
			RefreshCron: "0 15 * * 0",
		},
		Worker: WorkerConfig{
			Concurrency:  4,
			PollInterval: "1s",
			MaxAttempts:  3,
			RetryBackoff: "30s",
		},
		Server: ServerConfig{Port: 8080},
		Log:    LogConfig{Format: "json", Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, &env.OSReader{})
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, e env.Reader) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg, e)
	cfg.GitHub.Token = strings.TrimSpace(cfg.GitHub.Token)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config, e env.Reader) {
	if v := e.Getenv("SKILLDEX_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := e.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.GitHub.Token = v
	}
	if v := e.Getenv("SKILLDEX_LEADERBOARD_URL"); v != "" {
		cfg.Leaderboard.URL = v
	}
	if v := e.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := e.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := e.Getenv("SKILLDEX_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := e.Getenv("SKILLDEX_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
