// Package backfill chains discovery and content fetching across the whole catalog.
//
// Nothing here loops over the catalog in-process. Every step is a queued task that
// does one page of work and schedules its successor before returning, so a restart
// resumes from the last persisted step.
package backfill

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/elonfeng/skilldex/internal/queue"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/discovery"
)

// Task names.
const (
	TaskDiscoverPage   = "backfill.discover_page"
	TaskDiscoverSource = "backfill.discover_source"
	TaskFetchPage      = "backfill.fetch_page"
	TaskFetchSkill     = "backfill.fetch_skill"
	TaskRefresh        = "backfill.refresh"
)

// DiscoverPagePayload addresses one page of skills missing a URL. Sources up to and
// including AfterSource were already scheduled from this cursor. A continuation carries
// MaxID, the last row of the page it resumes, so the re-read page cannot grow.
type DiscoverPagePayload struct {
	Cursor      int64  `json:"cursor"`
	AfterSource string `json:"after_source,omitempty"`
	MaxID       int64  `json:"max_id,omitempty"`
}

// DiscoverSourcePayload is one discovery invocation.
type DiscoverSourcePayload struct {
	Source   string  `json:"source"`
	SkillIDs []int64 `json:"skill_ids"`
}

// FetchPagePayload addresses one page of skills needing content.
type FetchPagePayload struct {
	Cursor int64 `json:"cursor"`
}

// FetchSkillPayload is one fetch invocation.
type FetchSkillPayload struct {
	ID int64 `json:"id"`
}

// RefreshPayload addresses one page of skills with fetched content.
type RefreshPayload struct {
	Cursor int64 `json:"cursor"`
}

// Scheduler enqueues delayed tasks.
type Scheduler interface {
	RunAfter(ctx context.Context, delay time.Duration, name string, payload any) error
}

// Store is the catalog access the orchestrator needs.
type Store interface {
	ListSkillsMissingURL(ctx context.Context, after int64, limit int) (*store.Page, error)
	ListSkillsNeedingContent(ctx context.Context, after int64, limit int) (*store.Page, error)
	ListSkillsWithContent(ctx context.Context, after int64, limit int) (*store.Page, error)
	GetSkillsByIDs(ctx context.Context, ids []int64) ([]store.Skill, error)
	ClearSkillContent(ctx context.Context, ids []int64) error
}

// Discoverer resolves the content URLs of one source.
type Discoverer interface {
	DiscoverForSource(ctx context.Context, source string, skills []store.Skill) (*discovery.Result, error)
}

// Fetcher fetches one skill's content.
type Fetcher interface {
	FetchContent(ctx context.Context, id int64) error
}

// CommitFeed reports the newest commit on a branch.
type CommitFeed interface {
	LatestCommit(ctx context.Context, source, branch string) (time.Time, error)
}

// Options tunes paging and staggering. Zero values use the defaults.
type Options struct {
	// Authenticated selects StaggerToken over StaggerAnonymous for discovery.
	Authenticated    bool
	StaggerToken     time.Duration
	StaggerAnonymous time.Duration
	FetchStagger     time.Duration
	// FetchSettle is added before the fetch pass so late or retried discoveries land first.
	FetchSettle      time.Duration
	ReposPerBatch    int
	DiscoverPageSize int
	FetchPageSize    int
	RefreshPageSize  int
}

func (o *Options) setDefaults() {
	if o.StaggerToken <= 0 {
		o.StaggerToken = 500 * time.Millisecond
	}
	if o.StaggerAnonymous <= 0 {
		o.StaggerAnonymous = 30 * time.Second
	}
	if o.FetchStagger <= 0 {
		o.FetchStagger = 500 * time.Millisecond
	}
	if o.FetchSettle <= 0 {
		o.FetchSettle = 30 * time.Second
	}
	if o.ReposPerBatch <= 0 {
		o.ReposPerBatch = 25
	}
	if o.DiscoverPageSize <= 0 {
		o.DiscoverPageSize = 500
	}
	if o.FetchPageSize <= 0 {
		o.FetchPageSize = 200
	}
	if o.RefreshPageSize <= 0 {
		o.RefreshPageSize = 200
	}
}

// Orchestrator owns the backfill task handlers.
type Orchestrator struct {
	sched      Scheduler
	store      Store
	discoverer Discoverer
	fetcher    Fetcher
	feed       CommitFeed
	log        *slog.Logger
	opts       Options
}

// New creates an Orchestrator. feed may be nil when refresh is not used.
func New(sched Scheduler, s Store, d Discoverer, f Fetcher, feed CommitFeed, log *slog.Logger, opts Options) *Orchestrator {
	opts.setDefaults()
	return &Orchestrator{
		sched:      sched,
		store:      s,
		discoverer: d,
		fetcher:    f,
		feed:       feed,
		log:        log,
		opts:       opts,
	}
}

// Handlers returns the task handlers keyed by task name.
func (o *Orchestrator) Handlers() map[string]queue.Handler {
	return map[string]queue.Handler{
		TaskDiscoverPage:   decode(o.DiscoverPage),
		TaskDiscoverSource: decode(o.DiscoverSource),
		TaskFetchPage:      decode(o.FetchPage),
		TaskFetchSkill:     decode(o.FetchSkill),
		TaskRefresh:        decode(o.Refresh),
	}
}

func decode[P any](fn func(context.Context, P) error) queue.Handler {
	return func(ctx context.Context, raw json.RawMessage) error {
		var p P
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return fn(ctx, p)
	}
}

// ScheduleDiscovery starts a backfill run after delay.
func (o *Orchestrator) ScheduleDiscovery(ctx context.Context, delay time.Duration) error {
	return o.sched.RunAfter(ctx, delay, TaskDiscoverPage, DiscoverPagePayload{})
}

// Start starts a backfill run now.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.ScheduleDiscovery(ctx, 0)
}

// ScheduleFetch starts a fetch pass without discovery.
func (o *Orchestrator) ScheduleFetch(ctx context.Context, delay time.Duration) error {
	return o.sched.RunAfter(ctx, delay, TaskFetchPage, FetchPagePayload{})
}

// ScheduleRefresh starts a refresh pass now.
func (o *Orchestrator) ScheduleRefresh(ctx context.Context) error {
	return o.sched.RunAfter(ctx, 0, TaskRefresh, RefreshPayload{})
}

func (o *Orchestrator) discoverStagger() time.Duration {
	if o.opts.Authenticated {
		return o.opts.StaggerToken
	}
	return o.opts.StaggerAnonymous
}

type sourceGroup struct {
	source string
	ids    []int64
}

// groupBySource groups a page by source, ordered by source name.
func groupBySource(skills []store.Skill) []sourceGroup {
	idx := make(map[string]int)
	var groups []sourceGroup
	for _, sk := range skills {
		i, ok := idx[sk.Source]
		if !ok {
			i = len(groups)
			idx[sk.Source] = i
			groups = append(groups, sourceGroup{source: sk.Source})
		}
		groups[i].ids = append(groups[i].ids, sk.ID)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].source < groups[j].source })
	return groups
}

// DiscoverPage schedules up to ReposPerBatch staggered source discoveries for one page
// and then chains to the rest of the page, the next page, or the fetch pass.
func (o *Orchestrator) DiscoverPage(ctx context.Context, p DiscoverPagePayload) error {
	page, err := o.store.ListSkillsMissingURL(ctx, p.Cursor, o.opts.DiscoverPageSize)
	if err != nil {
		return err
	}

	skills, cursor, hasMore := page.Skills, page.Cursor, page.HasMore
	if p.MaxID > 0 {
		// Rows resolved since the first read drop out and later rows slide in; cut them off.
		n := sort.Search(len(skills), func(i int) bool { return skills[i].ID > p.MaxID })
		hasMore = hasMore || n < len(skills)
		skills, cursor = skills[:n], p.MaxID
	}

	groups := groupBySource(skills)
	start := sort.Search(len(groups), func(i int) bool { return groups[i].source > p.AfterSource })
	end := min(start+o.opts.ReposPerBatch, len(groups))
	stagger := o.discoverStagger()

	for i, g := range groups[start:end] {
		payload := DiscoverSourcePayload{Source: g.source, SkillIDs: g.ids}
		if err := o.sched.RunAfter(ctx, time.Duration(i)*stagger, TaskDiscoverSource, payload); err != nil {
			return fmt.Errorf("schedule discovery for %s: %w", g.source, err)
		}
	}
	next := time.Duration(end-start) * stagger

	o.log.Info("discovery page scheduled",
		"cursor", p.Cursor, "skills", len(skills),
		"sources", end-start, "remaining_sources", len(groups)-end, "stagger", stagger)

	switch {
	case end < len(groups):
		return o.sched.RunAfter(ctx, next, TaskDiscoverPage,
			DiscoverPagePayload{Cursor: p.Cursor, AfterSource: groups[end-1].source, MaxID: cursor})
	case hasMore:
		return o.sched.RunAfter(ctx, next, TaskDiscoverPage, DiscoverPagePayload{Cursor: cursor})
	default:
		o.log.Info("discovery pass scheduled completely, fetch pass next")
		return o.sched.RunAfter(ctx, next+stagger+o.opts.FetchSettle, TaskFetchPage, FetchPagePayload{})
	}
}

// DiscoverSource runs discovery for the listed skills that still lack a URL.
func (o *Orchestrator) DiscoverSource(ctx context.Context, p DiscoverSourcePayload) error {
	skills, err := o.store.GetSkillsByIDs(ctx, p.SkillIDs)
	if err != nil {
		return err
	}
	var pending []store.Skill
	for _, sk := range skills {
		if sk.SkillMdURL == nil && sk.Source == p.Source {
			pending = append(pending, sk)
		}
	}
	if len(pending) == 0 {
		o.log.Debug("source already discovered", "source", p.Source)
		return nil
	}
	_, err = o.discoverer.DiscoverForSource(ctx, p.Source, pending)
	return err
}

// FetchPage schedules one staggered fetch per skill on the page and chains to the
// next page.
func (o *Orchestrator) FetchPage(ctx context.Context, p FetchPagePayload) error {
	page, err := o.store.ListSkillsNeedingContent(ctx, p.Cursor, o.opts.FetchPageSize)
	if err != nil {
		return err
	}

	stagger := o.opts.FetchStagger
	for i, sk := range page.Skills {
		if err := o.sched.RunAfter(ctx, time.Duration(i)*stagger, TaskFetchSkill, FetchSkillPayload{ID: sk.ID}); err != nil {
			return fmt.Errorf("schedule fetch for %d: %w", sk.ID, err)
		}
	}
	o.log.Info("fetch page scheduled", "cursor", p.Cursor, "skills", len(page.Skills))

	if !page.HasMore {
		o.log.Info("backfill fetch pass scheduled completely")
		return nil
	}
	return o.sched.RunAfter(ctx, time.Duration(len(page.Skills))*stagger, TaskFetchPage,
		FetchPagePayload{Cursor: page.Cursor})
}

// FetchSkill fetches one skill.
func (o *Orchestrator) FetchSkill(ctx context.Context, p FetchSkillPayload) error {
	return o.fetcher.FetchContent(ctx, p.ID)
}
