package backfill

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Refresh compares each source's newest commit with the time its skills' content was
// fetched. Skills of sources that changed since get their content cleared so the fetch
// pass picks them up again. The last page chains into a fetch pass.
func (o *Orchestrator) Refresh(ctx context.Context, p RefreshPayload) error {
	if o.feed == nil {
		o.log.Warn("refresh requested without a commit feed")
		return nil
	}
	page, err := o.store.ListSkillsWithContent(ctx, p.Cursor, o.opts.RefreshPageSize)
	if err != nil {
		return err
	}

	var stale []int64
	checked := 0
	for _, g := range groupBySource(page.Skills) {
		skills := make(map[int64]bool, len(g.ids))
		for _, id := range g.ids {
			skills[id] = true
		}

		branch := ""
		var oldest time.Time
		for _, sk := range page.Skills {
			if !skills[sk.ID] {
				continue
			}
			if branch == "" && sk.SkillMdURL != nil {
				branch = branchFromRawURL(*sk.SkillMdURL, sk.Source)
			}
			if sk.ContentFetchedAt.Valid && (oldest.IsZero() || sk.ContentFetchedAt.Time.Before(oldest)) {
				oldest = sk.ContentFetchedAt.Time
			}
		}
		if branch == "" || oldest.IsZero() {
			continue
		}

		latest, err := o.feed.LatestCommit(ctx, g.source, branch)
		checked++
		if err != nil {
			o.log.Warn("commit feed unavailable", "source", g.source, "branch", branch, "error", err)
			continue
		}
		if !latest.After(oldest) {
			continue
		}
		for _, sk := range page.Skills {
			if skills[sk.ID] && sk.ContentFetchedAt.Valid && latest.After(sk.ContentFetchedAt.Time) {
				stale = append(stale, sk.ID)
			}
		}
	}

	if err := o.store.ClearSkillContent(ctx, stale); err != nil {
		return err
	}
	o.log.Info("refresh page checked", "cursor", p.Cursor, "sources", checked, "stale", len(stale))

	if page.HasMore {
		return o.sched.RunAfter(ctx, 0, TaskRefresh, RefreshPayload{Cursor: page.Cursor})
	}
	return o.ScheduleFetch(ctx, 0)
}

// branchFromRawURL extracts the branch from a raw content URL of the form
// <base>/<owner>/<repo>/<branch>/<path>.
func branchFromRawURL(rawURL, source string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	_, rest, ok := strings.Cut(u.EscapedPath(), "/"+source+"/")
	if !ok {
		return ""
	}
	seg, _, _ := strings.Cut(rest, "/")
	branch, err := url.PathUnescape(seg)
	if err != nil {
		return ""
	}
	return branch
}
