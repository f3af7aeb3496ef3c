// Package scheduler runs the recurring leaderboard sync and content refresh.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/alert"
	"github.com/elonfeng/skilldex/pkg/leaderboard"
)

// Syncer runs one full leaderboard sync.
type Syncer interface {
	SyncAll(ctx context.Context) (*leaderboard.Result, error)
}

// Refresher schedules a content refresh pass.
type Refresher interface {
	ScheduleRefresh(ctx context.Context) error
}

// StatsSource reports pipeline counters for the sync summary.
type StatsSource interface {
	Stats(ctx context.Context) (*store.Stats, error)
}

// Broadcaster delivers notifications.
type Broadcaster interface {
	HasNotifiers() bool
	Broadcast(ctx context.Context, n *alert.Notification) error
}

// Options configures the recurring jobs. An empty cron spec disables its job.
type Options struct {
	SyncCron    string
	RefreshCron string
	RunOnStart  bool
}

// Scheduler triggers syncs and refreshes on cron schedules.
type Scheduler struct {
	syncer    Syncer
	refresher Refresher
	stats     StatsSource
	alerts    Broadcaster
	log       *slog.Logger
	opts      Options

	syncSched    robfigcron.Schedule
	refreshSched robfigcron.Schedule

	running sync.Mutex
}

var parser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow,
)

// New validates the cron specs and creates a scheduler. refresher, stats and alerts
// may be nil.
func New(syncer Syncer, refresher Refresher, stats StatsSource, alerts Broadcaster, log *slog.Logger, opts Options) (*Scheduler, error) {
	s := &Scheduler{
		syncer:    syncer,
		refresher: refresher,
		stats:     stats,
		alerts:    alerts,
		log:       log,
		opts:      opts,
	}
	var err error
	if opts.SyncCron != "" {
		if s.syncSched, err = parser.Parse(opts.SyncCron); err != nil {
			return nil, fmt.Errorf("parse sync cron %q: %w", opts.SyncCron, err)
		}
	}
	if opts.RefreshCron != "" && refresher != nil {
		if s.refreshSched, err = parser.Parse(opts.RefreshCron); err != nil {
			return nil, fmt.Errorf("parse refresh cron %q: %w", opts.RefreshCron, err)
		}
	}
	return s, nil
}

// Run starts the cron loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	c := robfigcron.New()
	if s.syncSched != nil {
		c.Schedule(s.syncSched, robfigcron.FuncJob(func() { s.RunSync(ctx) }))
	}
	if s.refreshSched != nil {
		c.Schedule(s.refreshSched, robfigcron.FuncJob(func() { s.runRefresh(ctx) }))
	}

	if s.opts.RunOnStart {
		s.log.Info("initial sync")
		s.RunSync(ctx)
	}

	c.Start()
	s.log.Info("scheduler running", "sync_cron", s.opts.SyncCron, "refresh_cron", s.opts.RefreshCron)

	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info("scheduler stopped")
	return ctx.Err()
}

// RunSync runs one sync unless another is still in progress and broadcasts a summary.
// It returns nil, nil when skipped.
func (s *Scheduler) RunSync(ctx context.Context) (*leaderboard.Result, error) {
	if !s.running.TryLock() {
		s.log.Warn("sync still running, skipping")
		return nil, nil
	}
	defer s.running.Unlock()

	res, err := s.syncer.SyncAll(ctx)
	if err != nil {
		s.log.Error("sync failed", "error", err)
	}

	var stats *store.Stats
	if s.stats != nil {
		var serr error
		if stats, serr = s.stats.Stats(ctx); serr != nil {
			s.log.Warn("stats unavailable", "error", serr)
		}
	}
	s.notify(ctx, Summary(res, stats, err))
	return res, err
}

func (s *Scheduler) runRefresh(ctx context.Context) {
	if err := s.refresher.ScheduleRefresh(ctx); err != nil {
		s.log.Error("schedule refresh failed", "error", err)
		return
	}
	s.log.Info("refresh scheduled")
}

func (s *Scheduler) notify(ctx context.Context, n *alert.Notification) {
	if s.alerts == nil || !s.alerts.HasNotifiers() {
		return
	}
	if err := s.alerts.Broadcast(ctx, n); err != nil {
		s.log.Warn("alert delivery failed", "error", err)
	}
}

// Summary builds the notification sent after a sync. res may be nil when the sync
// failed outright; stats may be nil.
func Summary(res *leaderboard.Result, stats *store.Stats, syncErr error) *alert.Notification {
	n := &alert.Notification{
		Title: "Leaderboard sync finished",
		Level: alert.LevelInfo,
	}
	switch {
	case syncErr != nil:
		n.Title = "Leaderboard sync failed"
		n.Level = alert.LevelWarning
		n.Body = syncErr.Error()
	case res != nil && res.PageError != nil:
		n.Title = "Leaderboard sync stopped early"
		n.Level = alert.LevelWarning
		n.Body = fmt.Sprintf("Paging stopped after %d pages: %v", res.Pages, res.PageError)
	case res != nil:
		n.Body = fmt.Sprintf("%d new skills, %d updated.", res.Inserted, res.Updated)
	}

	if res != nil {
		n.Fields = append(n.Fields,
			alert.Field{Name: "Pages", Value: strconv.Itoa(res.Pages)},
			alert.Field{Name: "Qualified", Value: strconv.Itoa(res.Qualified)},
			alert.Field{Name: "Inserted", Value: strconv.Itoa(res.Inserted)},
			alert.Field{Name: "Updated", Value: strconv.Itoa(res.Updated)},
			alert.Field{Name: "Stopped", Value: res.StoppedReason},
			alert.Field{Name: "Duration", Value: res.Duration.Round(time.Second).String()},
		)
	}
	if stats != nil {
		n.Fields = append(n.Fields,
			alert.Field{Name: "Catalog", Value: strconv.Itoa(stats.Skills)},
			alert.Field{Name: "Pending discovery", Value: strconv.Itoa(stats.PendingDiscovery)},
			alert.Field{Name: "Resolved", Value: strconv.Itoa(stats.Resolved)},
			alert.Field{Name: "With content", Value: strconv.Itoa(stats.WithContent)},
		)
	}
	return n
}
