// Package app wires the skilldex services using go.uber.org/dig.
package app

import (
	"fmt"
	"log/slog"

	"go.uber.org/dig"

	"github.com/elonfeng/skilldex/internal/config"
	"github.com/elonfeng/skilldex/internal/logging"
	"github.com/elonfeng/skilldex/internal/queue"
	"github.com/elonfeng/skilldex/internal/scheduler"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/alert"
	"github.com/elonfeng/skilldex/pkg/analyze"
	"github.com/elonfeng/skilldex/pkg/backfill"
	"github.com/elonfeng/skilldex/pkg/content"
	"github.com/elonfeng/skilldex/pkg/discovery"
	"github.com/elonfeng/skilldex/pkg/github"
	"github.com/elonfeng/skilldex/pkg/leaderboard"
	"github.com/elonfeng/skilldex/pkg/server"
	"github.com/elonfeng/skilldex/pkg/tech"
)

// Container holds the resolved service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg        *config.Config
	log        *slog.Logger
	store      *store.SQLiteStore
	registry   *tech.Registry
	github     *github.Client
	queue      *queue.Queue
	backfill   *backfill.Orchestrator
	syncer     *leaderboard.Syncer
	discoverer *discovery.Discoverer
	fetcher    *content.Fetcher
	analyzer   *analyze.Analyzer
	alerts     *alert.Manager
	server     *server.Server
	scheduler  *scheduler.Scheduler
}

func (c *Container) Config() *config.Config            { return c.cfg }
func (c *Container) Logger() *slog.Logger              { return c.log }
func (c *Container) Store() *store.SQLiteStore         { return c.store }
func (c *Container) Registry() *tech.Registry          { return c.registry }
func (c *Container) GitHub() *github.Client            { return c.github }
func (c *Container) Queue() *queue.Queue               { return c.queue }
func (c *Container) Backfill() *backfill.Orchestrator  { return c.backfill }
func (c *Container) Syncer() *leaderboard.Syncer       { return c.syncer }
func (c *Container) Discoverer() *discovery.Discoverer { return c.discoverer }
func (c *Container) Fetcher() *content.Fetcher         { return c.fetcher }
func (c *Container) Analyzer() *analyze.Analyzer       { return c.analyzer }
func (c *Container) Alerts() *alert.Manager            { return c.alerts }
func (c *Container) Server() *server.Server            { return c.server }
func (c *Container) Scheduler() *scheduler.Scheduler   { return c.scheduler }

// Close releases the database.
func (c *Container) Close() error { return c.store.Close() }

// New builds and wires all services from cfg.
func New(cfg *config.Config) (*Container, error) {
	return NewWithLogger(cfg, NewLogger(cfg))
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg *config.Config) *slog.Logger {
	return logging.New(
		logging.WithFormat(logging.ParseFormat(cfg.Log.Format)),
		logging.WithLevel(logging.ParseLevel(cfg.Log.Level)),
	)
}

// NewWithLogger is New with an explicit logger.
func NewWithLogger(cfg *config.Config, log *slog.Logger) (*Container, error) {
	d := dig.New()

	providers := []any{
		func() *config.Config { return cfg },
		func() *slog.Logger { return log },
		newStore,
		tech.Default,
		newGitHub,
		newQueue,
		newDiscoverer,
		newFetcher,
		newBackfill,
		newSyncer,
		newAnalyzer,
		newAlerts,
		newServer,
		newScheduler,
	}
	for _, p := range providers {
		if err := d.Provide(p); err != nil {
			return nil, fmt.Errorf("provide: %w", err)
		}
	}

	var result *Container
	err := d.Invoke(func(
		st *store.SQLiteStore,
		registry *tech.Registry,
		gh *github.Client,
		q *queue.Queue,
		bf *backfill.Orchestrator,
		syncer *leaderboard.Syncer,
		disc *discovery.Discoverer,
		fetcher *content.Fetcher,
		analyzer *analyze.Analyzer,
		alerts *alert.Manager,
		srv *server.Server,
		sched *scheduler.Scheduler,
	) {
		result = &Container{
			cfg:        cfg,
			log:        log,
			store:      st,
			registry:   registry,
			github:     gh,
			queue:      q,
			backfill:   bf,
			syncer:     syncer,
			discoverer: disc,
			fetcher:    fetcher,
			analyzer:   analyzer,
			alerts:     alerts,
			server:     srv,
			scheduler:  sched,
		}
	})
	if err != nil {
		d.Invoke(func(st *store.SQLiteStore) { st.Close() })
		return nil, fmt.Errorf("wire services: %w", dig.RootCause(err))
	}
	return result, nil
}

func newStore(cfg *config.Config) (*store.SQLiteStore, error) {
	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func newGitHub(cfg *config.Config, log *slog.Logger) *github.Client {
	opts := []github.Option{github.WithLogger(log.With("component", "github"))}
	if cfg.GitHub.APIBase != "" {
		opts = append(opts, github.WithAPIBase(cfg.GitHub.APIBase))
	}
	if cfg.GitHub.RawBase != "" {
		opts = append(opts, github.WithRawBase(cfg.GitHub.RawBase))
	}
	if cfg.GitHub.WebBase != "" {
		opts = append(opts, github.WithWebBase(cfg.GitHub.WebBase))
	}
	return github.NewClient(cfg.GitHub.Token, opts...)
}

func newQueue(cfg *config.Config, st *store.SQLiteStore, log *slog.Logger) *queue.Queue {
	return queue.New(st, log.With("component", "queue"), queue.Options{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.ParsePollInterval(),
		MaxAttempts:  cfg.Worker.MaxAttempts,
		RetryBackoff: cfg.Worker.ParseRetryBackoff(),
	})
}

func newDiscoverer(cfg *config.Config, gh *github.Client, st *store.SQLiteStore, log *slog.Logger) *discovery.Discoverer {
	return discovery.New(gh, st, log.With("component", "discovery"), cfg.GitHub.Filename)
}

func newFetcher(gh *github.Client, st *store.SQLiteStore, log *slog.Logger) *content.Fetcher {
	return content.NewFetcher(st, gh, log.With("component", "fetcher"))
}

// newBackfill builds the orchestrator and registers its task handlers on the queue.
func newBackfill(
	cfg *config.Config,
	q *queue.Queue,
	st *store.SQLiteStore,
	disc *discovery.Discoverer,
	fetcher *content.Fetcher,
	gh *github.Client,
	log *slog.Logger,
) *backfill.Orchestrator {
	o := backfill.New(q, st, disc, fetcher, gh, log.With("component", "backfill"), backfill.Options{
		Authenticated:    gh.HasToken(),
		StaggerToken:     cfg.Backfill.ParseStaggerToken(),
		StaggerAnonymous: cfg.Backfill.ParseStaggerAnonymous(),
		FetchStagger:     cfg.Backfill.ParseFetchStagger(),
		FetchSettle:      cfg.Worker.ParseRetryBackoff(),
		ReposPerBatch:    cfg.Backfill.ReposPerBatch,
		DiscoverPageSize: cfg.Backfill.DiscoverPageSize,
		FetchPageSize:    cfg.Backfill.FetchPageSize,
		RefreshPageSize:  cfg.Backfill.RefreshPageSize,
	})
	for name, h := range o.Handlers() {
		q.Register(name, h)
	}
	return o
}

func newSyncer(cfg *config.Config, st *store.SQLiteStore, registry *tech.Registry, bf *backfill.Orchestrator, log *slog.Logger) *leaderboard.Syncer {
	pages := leaderboard.NewClient(cfg.Leaderboard.URL, nil)
	return leaderboard.NewSyncer(pages, st, registry, bf, log.With("component", "leaderboard"), leaderboard.Options{
		MinInstalls: cfg.Leaderboard.MinInstalls,
		ChunkSize:   cfg.Leaderboard.ChunkSize,
		SettleDelay: cfg.Leaderboard.ParseSettleDelay(),
		MaxPages:    cfg.Leaderboard.MaxPages,
	})
}

func newAnalyzer(gh *github.Client, st *store.SQLiteStore, registry *tech.Registry, log *slog.Logger) *analyze.Analyzer {
	return analyze.New(gh, st, registry, log.With("component", "analyze"))
}

func newAlerts(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func newServer(
	cfg *config.Config,
	st *store.SQLiteStore,
	registry *tech.Registry,
	analyzer *analyze.Analyzer,
	bf *backfill.Orchestrator,
	log *slog.Logger,
) *server.Server {
	return server.New(st, registry, analyzer, bf, log.With("component", "server"), cfg.Server.Port)
}

func newScheduler(
	cfg *config.Config,
	syncer *leaderboard.Syncer,
	bf *backfill.Orchestrator,
	st *store.SQLiteStore,
	alerts *alert.Manager,
	log *slog.Logger,
) (*scheduler.Scheduler, error) {
	return scheduler.New(syncer, bf, st, alerts, log.With("component", "scheduler"), scheduler.Options{
		SyncCron:    cfg.Schedule.SyncCron,
		RefreshCron: cfg.Schedule.RefreshCron,
		RunOnStart:  cfg.Schedule.RunOnStart,
	})
}
