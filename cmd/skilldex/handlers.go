package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/skilldex/internal/app"
	"github.com/elonfeng/skilldex/internal/config"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/analyze"
	"github.com/elonfeng/skilldex/pkg/github"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildApp() (*app.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cfg)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// drain runs the queue until no task is left and prints the final counters.
func drain(ctx context.Context, c *app.Container) error {
	if !c.GitHub().HasToken() {
		fmt.Fprintln(os.Stderr, "GITHUB_TOKEN not set: discovery is paced at one repository every 30s")
	}
	n, err := c.Queue().RunUntilIdle(ctx)
	if err != nil {
		return fmt.Errorf("run queue: %w", err)
	}
	fmt.Fprintf(os.Stderr, "queue idle after %d tasks\n", n)
	return runStatsWith(ctx, c, false)
}

func runSync(ctx context.Context, wait bool) error {
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Syncer().SyncAll(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	fmt.Fprintf(os.Stderr, "synced %d pages: %d qualified, %d new, %d updated (stopped: %s)\n",
		res.Pages, res.Qualified, res.Inserted, res.Updated, res.StoppedReason)
	if res.PageError != nil {
		fmt.Fprintf(os.Stderr, "  page error: %v\n", res.PageError)
	}

	if !wait {
		fmt.Fprintln(os.Stderr, "discovery scheduled; run `skilldex worker` or `skilldex run` to process it")
		return nil
	}
	return drain(ctx, c)
}

func runBackfill(ctx context.Context, wait bool) error {
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Backfill().Start(ctx); err != nil {
		return fmt.Errorf("start backfill: %w", err)
	}
	if !wait {
		fmt.Fprintln(os.Stderr, "backfill scheduled")
		return nil
	}
	return drain(ctx, c)
}

func runDiscover(ctx context.Context, source string, all bool) error {
	if _, _, err := github.SplitSource(source); err != nil {
		return err
	}
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	skills, err := c.Store().ListSkills(ctx, store.ListOpts{Source: source, Limit: 10000})
	if err != nil {
		return err
	}
	var pending []store.Skill
	for _, sk := range skills {
		if all || sk.SkillMdURL == nil {
			pending = append(pending, sk)
		}
	}
	if len(pending) == 0 {
		fmt.Fprintf(os.Stderr, "nothing to discover for %s (%d skills cataloged)\n", source, len(skills))
		return nil
	}

	res, err := c.Discoverer().DiscoverForSource(ctx, source, pending)
	if err != nil {
		return fmt.Errorf("discover %s: %w", source, err)
	}
	fmt.Fprintf(os.Stderr, "%s (%s, branch %s): %d by directory, %d by frontmatter, %d by probe, %d not found\n",
		res.Source, res.Mode, res.Branch, res.Pass1, res.Pass2, res.Fallback, res.NotFound)
	return nil
}

func runFetch(ctx context.Context, arg string) error {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("skill id must be a number: %q", arg)
	}
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Fetcher().FetchContent(ctx, id); err != nil {
		return fmt.Errorf("fetch %d: %w", id, err)
	}
	sk, err := c.Store().GetSkill(ctx, id)
	if err != nil {
		return err
	}
	desc := "(none)"
	if sk.Description != nil {
		desc = *sk.Description
	}
	size := 0
	if sk.Content != nil {
		size = len(*sk.Content)
	}
	fmt.Printf("%s/%s\n  description: %s\n  content: %d bytes\n", sk.Source, sk.SkillID, desc, size)
	return nil
}

func runRefresh(ctx context.Context, wait bool) error {
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Backfill().ScheduleRefresh(ctx); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}
	if !wait {
		fmt.Fprintln(os.Stderr, "refresh scheduled")
		return nil
	}
	return drain(ctx, c)
}

func runAnalyze(ctx context.Context, url string, jsonOutput bool) error {
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	rep, err := c.Analyzer().Analyze(ctx, url)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	if jsonOutput {
		return printJSON(rep)
	}
	printReport(rep)
	return nil
}

func printReport(rep *analyze.Report) {
	fmt.Printf("%s/%s@%s (id %s)\n", rep.Owner, rep.Repo, rep.Branch, rep.URLID)
	if rep.Monorepo {
		fmt.Println("  monorepo")
	}
	fmt.Printf("  manifests: %s\n", strings.Join(rep.Manifests, ", "))
	if len(rep.Technologies) == 0 {
		fmt.Println("  no technologies detected")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTECHNOLOGY\tINSTALLS\tSKILL")
	for _, id := range rep.Technologies {
		skills := rep.Recommendations[id]
		if len(skills) == 0 {
			fmt.Fprintf(w, "%s\t-\t-\n", id)
			continue
		}
		for _, sk := range skills {
			fmt.Fprintf(w, "%s\t%d\t%s/%s\n", id, sk.Installs, sk.Source, sk.SkillID)
		}
	}
	w.Flush()
}

func runSkills(ctx context.Context, techID, source string, limit int, jsonOutput bool) error {
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	var skills []store.Skill
	if techID != "" {
		if _, ok := c.Registry().Lookup(techID); !ok {
			return fmt.Errorf("unknown technology %q", techID)
		}
		skills, err = c.Store().ListSkillsByTechnology(ctx, techID, limit)
	} else {
		skills, err = c.Store().ListSkills(ctx, store.ListOpts{Source: source, Limit: limit})
	}
	if err != nil {
		return fmt.Errorf("list skills: %w", err)
	}

	if jsonOutput {
		return printJSON(skills)
	}
	if len(skills) == 0 {
		fmt.Println("no skills found (try syncing first: skilldex sync)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tINSTALLS\tSKILL\tSTATUS\tTECHNOLOGIES")
	for _, sk := range skills {
		fmt.Fprintf(w, "%d\t%d\t%s/%s\t%s\t%s\n",
			sk.ID, sk.Installs, sk.Source, sk.SkillID, status(&sk), strings.Join(sk.Technologies, ","))
	}
	return w.Flush()
}

func status(sk *store.Skill) string {
	switch {
	case sk.SkillMdURL == nil:
		return "pending"
	case *sk.SkillMdURL == "":
		return "not-found"
	case sk.Description != nil:
		return "fetched"
	default:
		return "resolved"
	}
}

func runStats(ctx context.Context, jsonOutput bool) error {
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()
	return runStatsWith(ctx, c, jsonOutput)
}

func runStatsWith(ctx context.Context, c *app.Container, jsonOutput bool) error {
	st, err := c.Store().Stats(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(st)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "skills\t%d\n", st.Skills)
	fmt.Fprintf(w, "pending discovery\t%d\n", st.PendingDiscovery)
	fmt.Fprintf(w, "resolved\t%d\n", st.Resolved)
	fmt.Fprintf(w, "not found\t%d\n", st.NotFound)
	fmt.Fprintf(w, "with content\t%d\n", st.WithContent)
	fmt.Fprintf(w, "pending tasks\t%d\n", st.PendingTasks)
	fmt.Fprintf(w, "failed tasks\t%d\n", st.FailedTasks)
	return w.Flush()
}

func runWorker(ctx context.Context) error {
	c, err := buildApp()
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Queue().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runServe(ctx context.Context, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	c, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Server().ListenAndServe(ctx)
}

func runDaemon(ctx context.Context, port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	c, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	if !c.GitHub().HasToken() {
		c.Logger().Warn("GITHUB_TOKEN not set, discovery runs at the anonymous pace")
	}
	if c.Alerts().HasNotifiers() {
		c.Logger().Info("alerts enabled", "notifiers", c.Alerts().Names())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Scheduler().Run(ctx) })
	g.Go(func() error { return c.Queue().Run(ctx) })
	g.Go(func() error { return c.Server().ListenAndServe(ctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	c.Logger().Info("shut down")
	return nil
}
