package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elonfeng/skilldex/internal/httperr"
	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/github"
	"github.com/elonfeng/skilldex/pkg/tech"
)

// Defaults for Analyzer.
const (
	DefaultMaxManifests     = 15
	DefaultRecommendPerTech = 5
)

// GitHub is the subset of the GitHub client the analyzer uses.
type GitHub interface {
	DefaultBranch(ctx context.Context, source string) (string, error)
	Tree(ctx context.Context, source, branch string) (*github.Tree, error)
	RawURL(source, branch, filePath string) string
	FetchRaw(ctx context.Context, rawURL string) (string, error)
}

// Store persists analyses and answers per-technology skill lookups.
type Store interface {
	InsertAnalysis(ctx context.Context, a *store.Analysis) error
	AnalysisExists(ctx context.Context, urlID string) (bool, error)
	GetAnalysis(ctx context.Context, urlID string) (*store.Analysis, error)
	ListSkillsByTechnology(ctx context.Context, technology string, limit int) ([]store.Skill, error)
}

// Report is an analysis plus recommended skills per detected technology.
type Report struct {
	*store.Analysis
	Recommendations map[string][]store.Skill `json:"recommendations"`
}

// Analyzer derives a repository's stack.
type Analyzer struct {
	gh           GitHub
	store        Store
	tags         *tech.Registry
	log          *slog.Logger
	maxManifests int
	perTech      int
	newID        func() string
}

// New creates an Analyzer.
func New(gh GitHub, s Store, tags *tech.Registry, log *slog.Logger) *Analyzer {
	return &Analyzer{
		gh:           gh,
		store:        s,
		tags:         tags,
		log:          log,
		maxManifests: DefaultMaxManifests,
		perTech:      DefaultRecommendPerTech,
		newID:        NewURLID,
	}
}

// Analyze reads repoURL's manifests, config files and README, stores the result under
// a fresh url id and returns it with recommendations.
func (a *Analyzer) Analyze(ctx context.Context, repoURL string) (*Report, error) {
	ref, err := ParseGitHubURL(repoURL)
	if err != nil {
		return nil, httperr.WithCode(err, http.StatusBadRequest)
	}
	source := ref.Source()
	log := a.log.With("source", source)

	branch, err := a.gh.DefaultBranch(ctx, source)
	if err != nil {
		log.Warn("default branch lookup failed, assuming main", "error", err)
		branch = "main"
	}

	var files []string
	tree, err := a.gh.Tree(ctx, source, branch)
	if err != nil {
		// Without a tree only the root manifest can be read.
		log.Warn("tree listing failed, reading root manifest only", "error", err)
		files = []string{manifestName}
	} else {
		files = tree.Blobs()
	}

	var manifests []string
	hasPnpm := false
	readme := ""
	for _, f := range files {
		switch {
		case IsManifest(f):
			manifests = append(manifests, f)
		case f == pnpmWorkspaceName:
			hasPnpm = true
		case readme == "" && !strings.Contains(f, "/") && strings.EqualFold(f, "readme.md"):
			readme = f
		}
	}

	deps := make(map[string]string)
	monorepo := hasPnpm
	var patterns []string

	if hasPnpm {
		if text, err := a.gh.FetchRaw(ctx, a.gh.RawURL(source, branch, pnpmWorkspaceName)); err == nil {
			if p, err := parsePnpmWorkspace(text); err == nil {
				patterns = append(patterns, p...)
			} else {
				log.Debug("pnpm workspace unreadable", "error", err)
			}
		}
	}

	var read []string
	fetchManifest := func(p string) *packageManifest {
		text, err := a.gh.FetchRaw(ctx, a.gh.RawURL(source, branch, p))
		if err != nil {
			log.Debug("manifest fetch failed", "path", p, "error", err)
			return nil
		}
		m, err := parseManifest(text)
		if err != nil {
			log.Debug("manifest unreadable", "path", p, "error", err)
			return nil
		}
		read = append(read, p)
		for name, version := range m.deps() {
			deps[name] = version
		}
		return m
	}

	// The root manifest decides whether this is a workspace before the rest are chosen.
	hasRoot := false
	for _, m := range manifests {
		if m == manifestName {
			hasRoot = true
		}
	}
	if hasRoot {
		if root := fetchManifest(manifestName); root != nil {
			if ws := root.workspacePatterns(); len(ws) > 0 {
				monorepo = true
				patterns = append(patterns, ws...)
			}
		}
	}

	var rest []string
	for _, m := range manifests {
		if m == manifestName {
			continue
		}
		if monorepo && len(patterns) > 0 && !inWorkspace(patterns, m) {
			continue
		}
		rest = append(rest, m)
	}
	limit := a.maxManifests
	if hasRoot {
		limit--
	}
	for _, p := range PrioritizeAndCap(rest, limit) {
		fetchManifest(p)
	}

	techs := tech.Merge(a.tags.MapDependencies(deps), a.tags.MatchConfigFiles(files))
	if readme != "" {
		if text, err := a.gh.FetchRaw(ctx, a.gh.RawURL(source, branch, readme)); err == nil {
			techs = tech.Merge(techs, a.tags.TagContent(text))
		}
	}

	urlID, err := EnsureUniqueURLID(ctx, a.store.AnalysisExists, a.newID)
	if err != nil {
		return nil, err
	}
	analysis := &store.Analysis{
		URLID:        urlID,
		RepoURL:      "https://github.com/" + source,
		Owner:        ref.Owner,
		Repo:         ref.Repo,
		Branch:       branch,
		Technologies: techs,
		Manifests:    PrioritizeAndCap(read, -1),
		Monorepo:     monorepo,
	}
	if err := a.store.InsertAnalysis(ctx, analysis); err != nil {
		return nil, err
	}

	log.Info("repository analyzed",
		"url_id", urlID, "manifests", len(read), "technologies", len(techs), "monorepo", monorepo)
	return a.report(ctx, analysis)
}

// Get loads a stored analysis with fresh recommendations.
func (a *Analyzer) Get(ctx context.Context, urlID string) (*Report, error) {
	analysis, err := a.store.GetAnalysis(ctx, urlID)
	if err != nil {
		return nil, err
	}
	return a.report(ctx, analysis)
}

func (a *Analyzer) report(ctx context.Context, analysis *store.Analysis) (*Report, error) {
	rep := &Report{Analysis: analysis, Recommendations: make(map[string][]store.Skill, len(analysis.Technologies))}
	for _, id := range analysis.Technologies {
		skills, err := a.store.ListSkillsByTechnology(ctx, id, a.perTech)
		if err != nil {
			return nil, fmt.Errorf("recommend skills for %s: %w", id, err)
		}
		if len(skills) > 0 {
			rep.Recommendations[id] = skills
		}
	}
	return rep, nil
}
