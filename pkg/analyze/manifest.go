package analyze

import (
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	manifestName      = "package.json"
	pnpmWorkspaceName = "pnpm-workspace.yaml"
)

// ignoredDirs never hold manifests worth reading.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
	".next":        true,
	"examples":     true,
	"fixtures":     true,
	"__tests__":    true,
}

// IsManifest reports whether p is a package.json outside vendored or generated trees.
func IsManifest(p string) bool {
	if path.Base(p) != manifestName {
		return false
	}
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if ignoredDirs[seg] {
			return false
		}
	}
	return true
}

func depth(p string) int { return strings.Count(p, "/") }

// PrioritizeAndCap orders manifest paths for fetching: the root package.json first,
// then shallower paths before deeper ones, ties alphabetical. At most limit paths are
// returned.
func PrioritizeAndCap(paths []string, limit int) []string {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a == manifestName || b == manifestName {
			return a == manifestName && b != manifestName
		}
		if da, db := depth(a), depth(b); da != db {
			return da < db
		}
		return a < b
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// packageManifest is the part of package.json the analyzer reads.
type packageManifest struct {
	Name                 string            `json:"name"`
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	Workspaces           json.RawMessage   `json:"workspaces"`
}

func parseManifest(text string) (*packageManifest, error) {
	var m packageManifest
	if err := json.Unmarshal([]byte(text), &m); err != nil {
		return nil, fmt.Errorf("parse package.json: %w", err)
	}
	return &m, nil
}

// deps merges every dependency section.
func (m *packageManifest) deps() map[string]string {
	out := make(map[string]string)
	for _, section := range []map[string]string{
		m.Dependencies, m.DevDependencies, m.PeerDependencies, m.OptionalDependencies,
	} {
		for name, version := range section {
			out[name] = version
		}
	}
	return out
}

// workspacePatterns reads "workspaces" as either an array or {"packages": [...]}.
func (m *packageManifest) workspacePatterns() []string {
	if len(m.Workspaces) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(m.Workspaces, &list); err == nil {
		return list
	}
	var obj struct {
		Packages []string `json:"packages"`
	}
	if err := json.Unmarshal(m.Workspaces, &obj); err == nil {
		return obj.Packages
	}
	return nil
}

type pnpmWorkspace struct {
	Packages []string `yaml:"packages"`
}

func parsePnpmWorkspace(text string) ([]string, error) {
	var ws pnpmWorkspace
	if err := yaml.Unmarshal([]byte(text), &ws); err != nil {
		return nil, fmt.Errorf("parse pnpm-workspace.yaml: %w", err)
	}
	return ws.Packages, nil
}

func normalizePattern(p string) string {
	p = strings.TrimPrefix(p, "./")
	return strings.TrimSuffix(p, "/")
}

// inWorkspace reports whether manifest p belongs to a package matched by one of the
// workspace patterns. "!" patterns exclude; "**" matches any depth.
func inWorkspace(patterns []string, p string) bool {
	dir := path.Dir(p)
	matched := false
	for _, raw := range patterns {
		neg := strings.HasPrefix(raw, "!")
		pat := normalizePattern(strings.TrimPrefix(raw, "!"))
		if pat == "" {
			continue
		}
		if matchPattern(pat, dir) {
			matched = !neg
		}
	}
	return matched
}

func matchPattern(pat, dir string) bool {
	if prefix, ok := strings.CutSuffix(pat, "/**"); ok {
		return dir == prefix || strings.HasPrefix(dir, prefix+"/")
	}
	ok, err := path.Match(pat, dir)
	return err == nil && ok
}
