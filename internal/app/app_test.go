package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/skilldex/internal/config"
	"github.com/elonfeng/skilldex/internal/logging"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/backfill"
)

// fakeUpstream serves the leaderboard, the GitHub API and raw files from one server.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /lb/api/skills/all-time/{page}", func(w http.ResponseWriter, r *http.Request) {
		page := map[string]any{"hasMore": false, "skills": []map[string]any{}}
		if r.PathValue("page") == "0" {
			page["skills"] = []map[string]any{
				{"source": "acme/skills", "skillId": "react-hooks", "name": "React Hooks", "installs": 900},
				{"source": "acme/skills", "skillId": "pdf", "name": "PDF", "installs": 400},
				{"source": "solo/tool", "skillId": "solo", "name": "Solo", "installs": 120},
				{"source": "tiny/thing", "skillId": "tiny", "name": "Tiny", "installs": 3},
			}
		}
		json.NewEncoder(w).Encode(page)
	})

	mux.HandleFunc("GET /api/repos/{owner}/{repo}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
	})
	mux.HandleFunc("GET /api/repos/acme/skills/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"sha": "abc",
			"tree": []map[string]string{
				{"path": "skills/react-hooks/SKILL.md", "type": "blob"},
				{"path": "skills/pdf/SKILL.md", "type": "blob"},
			},
		})
	})
	mux.HandleFunc("GET /api/repos/solo/tool/git/trees/{branch}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})

	files := map[string]string{
		"/raw/acme/skills/main/skills/react-hooks/SKILL.md": "---\nname: react-hooks\ndescription: Hooks done right\n---\n# Hooks\n",
		"/raw/acme/skills/main/skills/pdf/SKILL.md":         "---\nname: pdf\ndescription: |\n  Read and\n  write PDFs\n---\nbody",
		"/raw/solo/tool/main/SKILL.md":                      "# Solo\nno frontmatter",
	}
	mux.HandleFunc("/raw/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if r.Method == http.MethodHead {
			return
		}
		w.Write([]byte(body))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, upstream string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "skilldex.db")
	cfg.GitHub.Token = "test-token"
	cfg.GitHub.APIBase = upstream + "/api"
	cfg.GitHub.RawBase = upstream + "/raw"
	cfg.GitHub.WebBase = upstream + "/web"
	cfg.Leaderboard.URL = upstream + "/lb"
	cfg.Leaderboard.SettleDelay = "1ms"
	cfg.Backfill.StaggerToken = "1ms"
	cfg.Backfill.FetchStagger = "1ms"
	cfg.Worker.PollInterval = "5ms"
	cfg.Worker.RetryBackoff = "5ms"
	cfg.Schedule.SyncCron = ""
	cfg.Schedule.RefreshCron = ""
	return cfg
}

func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	upstream := fakeUpstream(t)
	cfg := testConfig(t, upstream.URL)
	// One task at a time keeps the fetch pass strictly behind discovery.
	cfg.Worker.Concurrency = 1
	c, err := NewWithLogger(cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	res, err := c.Syncer().SyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Inserted, "entries below the install threshold are skipped")

	_, err = c.Queue().RunUntilIdle(ctx)
	require.NoError(t, err)

	skills, err := c.Store().ListSkills(ctx, store.ListOpts{Limit: 10})
	require.NoError(t, err)
	require.Len(t, skills, 3)

	byID := make(map[string]*store.Skill)
	for i := range skills {
		full, err := c.Store().GetSkill(ctx, skills[i].ID)
		require.NoError(t, err)
		byID[full.SkillID] = full
	}

	hooks := byID["react-hooks"]
	require.NotNil(t, hooks.SkillMdURL)
	assert.Equal(t, upstream.URL+"/raw/acme/skills/main/skills/react-hooks/SKILL.md", *hooks.SkillMdURL)
	require.NotNil(t, hooks.Description)
	assert.Equal(t, "Hooks done right", *hooks.Description)
	assert.Contains(t, hooks.Technologies, "react")

	pdf := byID["pdf"]
	require.NotNil(t, pdf.Description)
	assert.Equal(t, "Read and\nwrite PDFs", strings.TrimSpace(*pdf.Description))

	solo := byID["solo"]
	require.NotNil(t, solo.SkillMdURL, "409 tree falls back to path probes")
	assert.True(t, strings.HasSuffix(*solo.SkillMdURL, "/raw/solo/tool/main/SKILL.md"))
	require.NotNil(t, solo.Content)
	assert.Contains(t, *solo.Content, "no frontmatter")

	stats, err := c.Store().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PendingDiscovery)
	assert.Equal(t, 3, stats.WithContent)
	assert.Equal(t, 0, stats.PendingTasks)
	assert.Equal(t, 0, stats.FailedTasks)
}

func TestHandlersRegistered(t *testing.T) {
	t.Parallel()

	c, err := NewWithLogger(testConfig(t, "http://127.0.0.1:0"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	for _, name := range []string{
		backfill.TaskDiscoverPage, backfill.TaskDiscoverSource,
		backfill.TaskFetchPage, backfill.TaskFetchSkill, backfill.TaskRefresh,
	} {
		assert.NoError(t, c.Queue().RunAfter(context.Background(), time.Hour, name, nil), name)
	}
	assert.Error(t, c.Queue().RunAfter(context.Background(), 0, "unknown.task", nil))

	assert.NotNil(t, c.Server())
	assert.NotNil(t, c.Scheduler())
	assert.NotNil(t, c.Analyzer())
	assert.False(t, c.Alerts().HasNotifiers())
}

func TestNewRejectsBadCron(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Schedule.SyncCron = "not a cron"
	_, err := NewWithLogger(cfg, logging.Discard())
	assert.ErrorContains(t, err, "sync cron")
}
