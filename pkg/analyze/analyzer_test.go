package analyze

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/skilldex/internal/httperr"
	"github.com/elonfeng/skilldex/internal/logging"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/github"
	"github.com/elonfeng/skilldex/pkg/tech"
)

type fakeGitHub struct {
	branch  string
	blobs   []string
	treeErr error
	files   map[string]string // path -> body
	fetched []string
}

func (f *fakeGitHub) DefaultBranch(context.Context, string) (string, error) {
	return f.branch, nil
}

func (f *fakeGitHub) Tree(context.Context, string, string) (*github.Tree, error) {
	if f.treeErr != nil {
		return nil, f.treeErr
	}
	t := &github.Tree{}
	for _, b := range f.blobs {
		t.Entries = append(t.Entries, github.TreeEntry{Path: b, Type: "blob"})
	}
	return t, nil
}

func (f *fakeGitHub) RawURL(source, branch, p string) string {
	return fmt.Sprintf("raw://%s/%s/%s", source, branch, p)
}

func (f *fakeGitHub) FetchRaw(_ context.Context, url string) (string, error) {
	f.fetched = append(f.fetched, url)
	for p, body := range f.files {
		if url == f.RawURL("acme/shop", f.branch, p) {
			return body, nil
		}
	}
	return "", httperr.WithCode(github.ErrNotFound, http.StatusNotFound)
}

func newAnalyzer(t *testing.T, gh GitHub) (*Analyzer, *store.SQLiteStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(gh, s, tech.Default(), logging.Discard()), s
}

func TestAnalyzeMonorepo(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{
		branch: "main",
		blobs: []string{
			"package.json",
			"README.md",
			"apps/web/package.json",
			"apps/web/next.config.mjs",
			"packages/db/package.json",
			"docs/site/package.json",
			"node_modules/left-pad/package.json",
			"Dockerfile",
		},
		files: map[string]string{
			"package.json":             `{"workspaces":["apps/*","packages/*"],"devDependencies":{"typescript":"^5"}}`,
			"apps/web/package.json":    `{"dependencies":{"next":"14","react":"18"}}`,
			"packages/db/package.json": `{"dependencies":{"@prisma/client":"5"}}`,
			"docs/site/package.json":   `{"dependencies":{"vue":"3"}}`,
			"README.md":                "Payments are handled with Stripe checkout and tailwind styles.",
		},
	}
	a, s := newAnalyzer(t, gh)

	rep, err := a.Analyze(context.Background(), "https://github.com/acme/shop.git")
	require.NoError(t, err)

	assert.True(t, rep.Monorepo)
	assert.Equal(t, "main", rep.Branch)
	assert.Equal(t, "https://github.com/acme/shop", rep.RepoURL)
	assert.Equal(t, []string{"package.json", "apps/web/package.json", "packages/db/package.json"}, rep.Manifests)
	assert.Contains(t, rep.Technologies, "nextjs")
	assert.Contains(t, rep.Technologies, "react")
	assert.Contains(t, rep.Technologies, "typescript")
	assert.Contains(t, rep.Technologies, "docker")
	assert.NotContains(t, rep.Technologies, "vue", "manifests outside the workspace are skipped")
	assert.Len(t, rep.URLID, 10)

	stored, err := s.GetAnalysis(context.Background(), rep.URLID)
	require.NoError(t, err)
	assert.Equal(t, rep.Technologies, stored.Technologies)
	assert.Equal(t, rep.Manifests, stored.Manifests)
}

func TestAnalyzePnpmWorkspace(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{
		branch: "trunk",
		blobs:  []string{"pnpm-workspace.yaml", "web/package.json", "scripts/package.json"},
		files: map[string]string{
			"pnpm-workspace.yaml":  "packages:\n  - web\n",
			"web/package.json":     `{"dependencies":{"svelte":"4"}}`,
			"scripts/package.json": `{"dependencies":{"vue":"3"}}`,
		},
	}
	a, _ := newAnalyzer(t, gh)

	rep, err := a.Analyze(context.Background(), "github.com/acme/shop")
	require.NoError(t, err)
	assert.True(t, rep.Monorepo)
	assert.Equal(t, []string{"web/package.json"}, rep.Manifests)
	assert.Contains(t, rep.Technologies, "svelte")
	assert.NotContains(t, rep.Technologies, "vue")
}

func TestAnalyzeTreeFailureReadsRootManifest(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{
		branch:  "main",
		treeErr: httperr.WithCode(github.ErrTooLarge, http.StatusConflict),
		files: map[string]string{
			"package.json": `{"dependencies":{"express":"4","stripe":"14"}}`,
		},
	}
	a, _ := newAnalyzer(t, gh)

	rep, err := a.Analyze(context.Background(), "https://github.com/acme/shop")
	require.NoError(t, err)
	assert.False(t, rep.Monorepo)
	assert.Equal(t, []string{"package.json"}, rep.Manifests)
	assert.Contains(t, rep.Technologies, "stripe")
	assert.Equal(t, []string{"raw://acme/shop/main/package.json"}, gh.fetched)
}

func TestAnalyzeRecommendations(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{
		branch: "main",
		blobs:  []string{"package.json"},
		files:  map[string]string{"package.json": `{"dependencies":{"react":"18"}}`},
	}
	a, s := newAnalyzer(t, gh)
	ctx := context.Background()

	var skills []store.Skill
	for i := range 7 {
		skills = append(skills, store.Skill{
			Source: "acme/skills", SkillID: fmt.Sprintf("react-%d", i), Name: "React helper",
			Installs: 100 + i, Technologies: []string{"react"},
		})
	}
	_, _, err := s.UpsertSkills(ctx, skills)
	require.NoError(t, err)

	rep, err := a.Analyze(ctx, "https://github.com/acme/shop")
	require.NoError(t, err)
	require.Len(t, rep.Recommendations["react"], DefaultRecommendPerTech)
	assert.Equal(t, "react-6", rep.Recommendations["react"][0].SkillID)

	again, err := a.Get(ctx, rep.URLID)
	require.NoError(t, err)
	assert.Equal(t, rep.Technologies, again.Technologies)
	assert.Len(t, again.Recommendations["react"], DefaultRecommendPerTech)

	_, err = a.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAnalyzeRejectsBadURL(t *testing.T) {
	t.Parallel()

	a, _ := newAnalyzer(t, &fakeGitHub{branch: "main"})
	_, err := a.Analyze(context.Background(), "https://example.com/acme/shop")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperr.Code(err))
}

func TestAnalyzeURLIDExhausted(t *testing.T) {
	t.Parallel()

	gh := &fakeGitHub{branch: "main", blobs: []string{"package.json"}, files: map[string]string{"package.json": `{}`}}
	a, _ := newAnalyzer(t, gh)
	a.newID = func() string { return "fixed" }

	_, err := a.Analyze(context.Background(), "https://github.com/acme/shop")
	require.NoError(t, err)

	_, err = a.Analyze(context.Background(), "https://github.com/acme/shop")
	assert.ErrorIs(t, err, ErrURLIDExhausted)
}
