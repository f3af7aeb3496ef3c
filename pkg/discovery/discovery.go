// Package discovery locates each skill's SKILL.md inside its source repository.
//
// A source is resolved from the repository tree when GitHub will list it: first by
// matching a skill id against the directory holding a SKILL.md (pass 1), then by
// reading the frontmatter name of every unclaimed SKILL.md (pass 2). When no tree is
// available, or GitHub truncated it, the discoverer probes a few conventional paths for
// whatever is still unmatched. Every skill handed in leaves with a URL: the raw file
// URL, or "" when nothing matched.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/elonfeng/skilldex/internal/store"
	"github.com/elonfeng/skilldex/pkg/content"
	"github.com/elonfeng/skilldex/pkg/github"
)

// DefaultFilename is the content file every skill directory carries.
const DefaultFilename = "SKILL.md"

// Resolution modes reported in Result.
const (
	ModeTree     = "tree"
	ModeFallback = "fallback"
)

// GitHub is the subset of the GitHub client discovery uses.
type GitHub interface {
	DefaultBranch(ctx context.Context, source string) (string, error)
	Tree(ctx context.Context, source, branch string) (*github.Tree, error)
	RawURL(source, branch, filePath string) string
	FetchRaw(ctx context.Context, rawURL string) (string, error)
	Exists(ctx context.Context, rawURL string) (bool, error)
}

// Store records discovery outcomes.
type Store interface {
	SetSkillMdURL(ctx context.Context, id int64, url string) error
}

// Result summarizes one DiscoverForSource call.
type Result struct {
	Source     string
	Mode       string
	Branch     string
	Candidates int
	Pass1      int
	Pass2      int
	Fallback   int
	NotFound   int
}

// Discoverer resolves content URLs.
type Discoverer struct {
	gh       GitHub
	store    Store
	log      *slog.Logger
	filename string
}

// New creates a Discoverer. An empty filename means DefaultFilename.
func New(gh GitHub, s Store, log *slog.Logger, filename string) *Discoverer {
	if filename == "" {
		filename = DefaultFilename
	}
	return &Discoverer{gh: gh, store: s, log: log, filename: filename}
}

// DiscoverForSource resolves every skill in skills, all of which belong to source.
// GitHub failures never surface as errors; only store writes do.
func (d *Discoverer) DiscoverForSource(ctx context.Context, source string, skills []store.Skill) (*Result, error) {
	res := &Result{Source: source}
	if len(skills) == 0 {
		return res, nil
	}
	log := d.log.With("source", source)

	defaultBranch, err := d.gh.DefaultBranch(ctx, source)
	if err != nil {
		log.Warn("default branch lookup failed, assuming main", "error", err)
		defaultBranch = "main"
	}

	tree, branch := d.findTree(ctx, log, source, candidateBranches(defaultBranch))
	if tree == nil {
		res.Mode = ModeFallback
		res.Branch = defaultBranch
		if err := d.fallback(ctx, log, source, defaultBranch, skills, res); err != nil {
			return res, err
		}
		log.Info("discovery finished", "mode", res.Mode, "found", res.Fallback, "not_found", res.NotFound)
		return res, nil
	}

	res.Mode = ModeTree
	res.Branch = branch
	if tree.Truncated {
		log.Warn("tree listing truncated, probing paths for unmatched skills", "branch", branch)
	}

	paths, byDir := d.indexTree(tree)
	res.Candidates = len(paths)

	remaining, claimed, err := d.matchByDirectory(ctx, source, branch, skills, byDir, res)
	if err != nil {
		return res, err
	}
	remaining, err = d.matchByFrontmatter(ctx, log, source, branch, paths, claimed, remaining, res)
	if err != nil {
		return res, err
	}

	// A truncated listing does not prove absence.
	if tree.Truncated {
		if err := d.fallback(ctx, log, source, branch, remaining, res); err != nil {
			return res, err
		}
		remaining = nil
	}
	for _, sk := range remaining {
		if err := d.store.SetSkillMdURL(ctx, sk.ID, ""); err != nil {
			return res, fmt.Errorf("mark %s not found: %w", sk.SkillID, err)
		}
		res.NotFound++
	}

	log.Info("discovery finished",
		"mode", res.Mode, "branch", branch, "candidates", res.Candidates,
		"pass1", res.Pass1, "pass2", res.Pass2, "fallback", res.Fallback, "not_found", res.NotFound)
	return res, nil
}

// candidateBranches returns [default, main, master] without duplicates.
func candidateBranches(defaultBranch string) []string {
	var out []string
	seen := make(map[string]bool, 3)
	for _, b := range []string{defaultBranch, "main", "master"} {
		if b == "" || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// findTree returns the first tree that lists. A too-large tree or a rate limit ends
// the search immediately: other branches would fail the same way.
func (d *Discoverer) findTree(ctx context.Context, log *slog.Logger, source string, branches []string) (*github.Tree, string) {
	for _, b := range branches {
		tree, err := d.gh.Tree(ctx, source, b)
		switch {
		case err == nil:
			return tree, b
		case errors.Is(err, github.ErrTooLarge):
			log.Warn("tree too large, using path probes", "branch", b)
			return nil, ""
		case errors.Is(err, github.ErrRateLimited):
			log.Warn("rate limited listing tree, using path probes", "branch", b)
			return nil, ""
		case errors.Is(err, github.ErrNotFound):
			log.Debug("branch not found", "branch", b)
		default:
			log.Warn("tree listing failed", "branch", b, "error", err)
		}
	}
	return nil, ""
}

// indexTree collects the sorted content-file paths and maps each file's immediate
// parent directory name to its path. The first path wins for a repeated directory name.
func (d *Discoverer) indexTree(tree *github.Tree) ([]string, map[string]string) {
	var paths []string
	for _, p := range tree.Blobs() {
		if p == d.filename || strings.HasSuffix(p, "/"+d.filename) {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	byDir := make(map[string]string, len(paths))
	for _, p := range paths {
		dir := path.Dir(p)
		if dir == "." {
			continue
		}
		name := path.Base(dir)
		if _, ok := byDir[name]; !ok {
			byDir[name] = p
		}
	}
	return paths, byDir
}

func (d *Discoverer) matchByDirectory(
	ctx context.Context, source, branch string, skills []store.Skill, byDir map[string]string, res *Result,
) ([]store.Skill, map[string]bool, error) {
	claimed := make(map[string]bool)
	var remaining []store.Skill
	for _, sk := range skills {
		p, ok := byDir[sk.SkillID]
		if !ok {
			remaining = append(remaining, sk)
			continue
		}
		if err := d.store.SetSkillMdURL(ctx, sk.ID, d.gh.RawURL(source, branch, p)); err != nil {
			return nil, nil, fmt.Errorf("set url for %s: %w", sk.SkillID, err)
		}
		claimed[p] = true
		res.Pass1++
	}
	return remaining, claimed, nil
}

func (d *Discoverer) matchByFrontmatter(
	ctx context.Context, log *slog.Logger, source, branch string,
	paths []string, claimed map[string]bool, remaining []store.Skill, res *Result,
) ([]store.Skill, error) {
	for _, p := range paths {
		if len(remaining) == 0 {
			break
		}
		if claimed[p] {
			continue
		}
		url := d.gh.RawURL(source, branch, p)
		text, err := d.gh.FetchRaw(ctx, url)
		if err != nil {
			log.Debug("candidate fetch failed", "path", p, "error", err)
			continue
		}
		doc := content.ParseDocument(text)
		if doc.Name == nil {
			continue
		}

		i := matchName(*doc.Name, remaining)
		if i < 0 {
			continue
		}
		sk := remaining[i]
		if err := d.store.SetSkillMdURL(ctx, sk.ID, url); err != nil {
			return nil, fmt.Errorf("set url for %s: %w", sk.SkillID, err)
		}
		claimed[p] = true
		res.Pass2++
		remaining = append(remaining[:i:i], remaining[i+1:]...)
	}
	return remaining, nil
}

// matchName finds the skill a frontmatter name belongs to. Tiers are tried across all
// skills in order: exact name or id, kebab-cased name equal to the id, then the longest
// id the kebab-cased name starts with (leaderboards truncate long ids).
func matchName(name string, skills []store.Skill) int {
	for i, sk := range skills {
		if name == sk.SkillID || name == sk.Name {
			return i
		}
	}
	k := Kebab(name)
	if k == "" {
		return -1
	}
	for i, sk := range skills {
		if k == sk.SkillID {
			return i
		}
	}
	best := -1
	for i, sk := range skills {
		if sk.SkillID == "" || !strings.HasPrefix(k, sk.SkillID) {
			continue
		}
		if best < 0 || len(sk.SkillID) > len(skills[best].SkillID) {
			best = i
		}
	}
	return best
}

// fallbackPaths are probed, in order, when no tree is available.
func (d *Discoverer) fallbackPaths(skillID string) []string {
	return []string{
		"skills/" + skillID + "/" + d.filename,
		".claude/skills/" + skillID + "/" + d.filename,
		d.filename,
	}
}

func (d *Discoverer) fallback(ctx context.Context, log *slog.Logger, source, branch string, skills []store.Skill, res *Result) error {
	for _, sk := range skills {
		found := ""
		for _, p := range d.fallbackPaths(sk.SkillID) {
			url := d.gh.RawURL(source, branch, p)
			ok, err := d.gh.Exists(ctx, url)
			if err != nil {
				log.Debug("path probe failed", "path", p, "error", err)
				continue
			}
			if ok {
				found = url
				break
			}
		}
		if err := d.store.SetSkillMdURL(ctx, sk.ID, found); err != nil {
			return fmt.Errorf("set url for %s: %w", sk.SkillID, err)
		}
		if found == "" {
			res.NotFound++
		} else {
			res.Fallback++
		}
	}
	return nil
}

// Kebab lowercases s and joins its alphanumeric runs with single hyphens.
func Kebab(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingDash = b.Len() > 0
			continue
		}
		if pendingDash {
			b.WriteByte('-')
			pendingDash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
