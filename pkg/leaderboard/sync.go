package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/tech"
)

// Defaults for Syncer.
const (
	DefaultMinInstalls = 50
	DefaultChunkSize   = 100
	DefaultSettleDelay = 10 * time.Second
	DefaultMaxPages    = 1000
)

// Reasons a sync stopped paging.
const (
	StopExhausted = "exhausted"
	StopLongTail  = "long_tail"
	StopError     = "error"
	StopMaxPages  = "max_pages"
)

// PageSource yields leaderboard pages.
type PageSource interface {
	Page(ctx context.Context, n int) (*Page, error)
}

// SkillStore persists synced skills.
type SkillStore interface {
	UpsertSkills(ctx context.Context, skills []store.Skill) (inserted, updated int, err error)
}

// Backfiller schedules the discovery phase once a sync has landed.
type Backfiller interface {
	ScheduleDiscovery(ctx context.Context, delay time.Duration) error
}

// Options tunes a Syncer. Zero values fall back to the package defaults.
type Options struct {
	MinInstalls int
	ChunkSize   int
	SettleDelay time.Duration
	MaxPages    int
	Leaderboard string
}

// Result summarizes one SyncAll run.
type Result struct {
	Pages         int
	Seen          int
	Qualified     int
	Inserted      int
	Updated       int
	StoppedReason string
	PageError     error
	Duration      time.Duration
}

// Syncer walks the leaderboard and upserts skills above the install threshold.
type Syncer struct {
	pages    PageSource
	store    SkillStore
	tagger   *tech.Registry
	backfill Backfiller
	log      *slog.Logger
	opts     Options
	now      func() time.Time
}

// NewSyncer creates a Syncer. backfill may be nil, in which case no discovery is
// scheduled after a sync.
func NewSyncer(pages PageSource, s SkillStore, tagger *tech.Registry, backfill Backfiller, log *slog.Logger, opts Options) *Syncer {
	if opts.MinInstalls <= 0 {
		opts.MinInstalls = DefaultMinInstalls
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Leaderboard == "" {
		opts.Leaderboard = "all-time"
	}
	return &Syncer{
		pages:    pages,
		store:    s,
		tagger:   tagger,
		backfill: backfill,
		log:      log,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SyncAll walks pages 0, 1, 2, ... and upserts every entry with enough installs.
// Paging stops at the first page with no qualifying entry, when the leaderboard has
// no more pages, or on the first failed page (no retry; the next run catches up).
// Store failures are returned; a failed page is reported in Result.PageError.
func (s *Syncer) SyncAll(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{}

	for n := 0; ; n++ {
		if n >= s.opts.MaxPages {
			res.StoppedReason = StopMaxPages
			break
		}
		page, err := s.pages.Page(ctx, n)
		if err != nil {
			s.log.Warn("leaderboard page failed, stopping sync", "page", n, "error", err)
			res.StoppedReason = StopError
			res.PageError = err
			break
		}
		res.Pages++
		res.Seen += len(page.Skills)

		batch := s.qualifying(page.Skills)
		if len(batch) == 0 {
			s.log.Info("leaderboard below install threshold, stopping sync",
				"page", n, "min_installs", s.opts.MinInstalls)
			res.StoppedReason = StopLongTail
			break
		}
		res.Qualified += len(batch)

		if err := s.upsert(ctx, batch, res); err != nil {
			return res, err
		}
		s.log.Debug("leaderboard page synced", "page", n, "qualified", len(batch), "total", page.Total)

		if !page.HasMore {
			res.StoppedReason = StopExhausted
			break
		}
	}
	res.Duration = time.Since(start)

	s.log.Info("leaderboard sync complete",
		"pages", res.Pages, "qualified", res.Qualified,
		"inserted", res.Inserted, "updated", res.Updated,
		"stopped", res.StoppedReason, "duration", res.Duration.Round(time.Millisecond))

	if s.backfill != nil {
		if err := s.backfill.ScheduleDiscovery(ctx, s.opts.SettleDelay); err != nil {
			return res, fmt.Errorf("schedule discovery: %w", err)
		}
	}
	return res, nil
}

func (s *Syncer) qualifying(entries []Entry) []store.Skill {
	now := s.now()
	var out []store.Skill
	for _, e := range entries {
		if e.Installs < s.opts.MinInstalls || e.Source == "" || e.SkillID == "" {
			continue
		}
		name := e.Name
		if name == "" {
			name = e.SkillID
		}
		out = append(out, store.Skill{
			Source:       e.Source,
			SkillID:      e.SkillID,
			Name:         name,
			Installs:     e.Installs,
			Leaderboard:  s.opts.Leaderboard,
			Technologies: s.tagger.TagSkill(e.Source, e.SkillID, name),
			LastSynced:   now,
		})
	}
	return out
}

func (s *Syncer) upsert(ctx context.Context, batch []store.Skill, res *Result) error {
	for start := 0; start < len(batch); start += s.opts.ChunkSize {
		end := min(start+s.opts.ChunkSize, len(batch))
		inserted, updated, err := s.store.UpsertSkills(ctx, batch[start:end])
		if err != nil {
			return fmt.Errorf("upsert skills: %w", err)
		}
		res.Inserted += inserted
		res.Updated += updated
	}
	return nil
}
