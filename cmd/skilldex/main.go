package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "skilldex",
		Short:         "Catalog agent skills from the leaderboard and backfill their SKILL.md content",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(syncCmd())
	root.AddCommand(backfillCmd())
	root.AddCommand(discoverCmd())
	root.AddCommand(fetchCmd())
	root.AddCommand(refreshCmd())
	root.AddCommand(analyzeCmd())
	root.AddCommand(skillsCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(workerCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func syncCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync the leaderboard into the catalog and schedule discovery",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context(), wait)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "run the backfill queue until it is idle")
	return cmd
}

func backfillCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Schedule discovery and content fetching for every skill missing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackfill(cmd.Context(), wait)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "run the backfill queue until it is idle")
	return cmd
}

func discoverCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "discover <owner/repo>",
		Short: "Resolve SKILL.md locations for one source repository now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(cmd.Context(), args[0], all)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "re-resolve skills that already have a location")
	return cmd
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <skill-id>",
		Short: "Fetch and parse one skill's content now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), args[0])
		},
	}
}

func refreshCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-fetch content of skills whose repository changed since the last fetch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd.Context(), wait)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "run the queue until it is idle")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "analyze <github-url>",
		Short: "Detect a repository's stack and recommend skills for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), args[0], jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func skillsCmd() *cobra.Command {
	var (
		jsonOutput bool
		techID     string
		source     string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "skills",
		Short: "List cataloged skills",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSkills(cmd.Context(), techID, source, limit, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&techID, "tech", "", "only skills tagged with this technology id")
	cmd.Flags().StringVar(&source, "source", "", "only skills from this owner/repo")
	cmd.Flags().IntVar(&limit, "limit", 20, "max skills to show")
	return cmd
}

func statsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show catalog and queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the task queue worker only",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with scheduler, queue worker and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
