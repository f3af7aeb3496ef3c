// Package tech holds the technology registry and the taggers built on it.
//
// Every lookup table (name keywords, content phrases, config-file hints, exact package
// names, package prefixes) is derived from the single Technology table in catalog.go.
package tech

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
)

// Technology describes one taggable technology.
type Technology struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`

	// Keywords are matched as lowercase substrings of skill metadata.
	Keywords []string `json:"keywords,omitempty"`
	// Aliases are alternative spellings, matched like Keywords.
	Aliases []string `json:"aliases,omitempty"`
	// ContentPhrases are matched against longer free text such as a README.
	ContentPhrases []string `json:"-"`
	// ConfigFiles are file names (or path suffixes) whose presence implies the technology.
	ConfigFiles []string `json:"-"`
	// Packages are exact dependency names from a package manifest.
	Packages []string `json:"-"`
	// PackagePrefixes match any dependency starting with the prefix, e.g. "@aws-sdk/".
	PackagePrefixes []string `json:"-"`
}

type prefixRule struct {
	prefix string
	id     string
}

// Registry indexes a Technology table for tagging.
type Registry struct {
	techs    []Technology
	byID     map[string]*Technology
	keywords map[string][]string // tech id -> lowercase keywords + aliases
	phrases  map[string][]string
	configs  map[string]string // lowercase file name or path suffix -> tech id
	packages map[string]string
	prefixes []prefixRule
}

// NewRegistry builds a registry. Duplicate ids, packages or config files are rejected
// so that no two rows can claim the same signal.
func NewRegistry(techs []Technology) (*Registry, error) {
	r := &Registry{
		techs:    make([]Technology, len(techs)),
		byID:     make(map[string]*Technology, len(techs)),
		keywords: make(map[string][]string, len(techs)),
		phrases:  make(map[string][]string, len(techs)),
		configs:  make(map[string]string),
		packages: make(map[string]string),
	}
	copy(r.techs, techs)
	sort.Slice(r.techs, func(i, j int) bool { return r.techs[i].ID < r.techs[j].ID })

	for i := range r.techs {
		t := &r.techs[i]
		if t.ID == "" {
			return nil, fmt.Errorf("technology %q has empty id", t.Name)
		}
		if _, dup := r.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate technology id %q", t.ID)
		}
		r.byID[t.ID] = t

		// Keywords keep surrounding spaces: " go " only matches a standalone token.
		for _, kw := range append(append([]string{}, t.Keywords...), t.Aliases...) {
			if kw = strings.ToLower(kw); strings.TrimSpace(kw) != "" {
				r.keywords[t.ID] = append(r.keywords[t.ID], kw)
			}
		}
		for _, p := range t.ContentPhrases {
			r.phrases[t.ID] = append(r.phrases[t.ID], strings.ToLower(p))
		}
		for _, f := range t.ConfigFiles {
			key := strings.ToLower(f)
			if owner, dup := r.configs[key]; dup {
				return nil, fmt.Errorf("config file %q claimed by %s and %s", f, owner, t.ID)
			}
			r.configs[key] = t.ID
		}
		for _, p := range t.Packages {
			if owner, dup := r.packages[p]; dup {
				return nil, fmt.Errorf("package %q claimed by %s and %s", p, owner, t.ID)
			}
			r.packages[p] = t.ID
		}
		for _, p := range t.PackagePrefixes {
			r.prefixes = append(r.prefixes, prefixRule{prefix: p, id: t.ID})
		}
	}

	// Longest prefix first so "@aws-sdk/" beats a hypothetical "@aws".
	sort.SliceStable(r.prefixes, func(i, j int) bool {
		return len(r.prefixes[i].prefix) > len(r.prefixes[j].prefix)
	})
	return r, nil
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry built from the built-in catalog.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := NewRegistry(catalog)
		if err != nil {
			panic(fmt.Sprintf("tech: invalid built-in catalog: %v", err))
		}
		defaultReg = r
	})
	return defaultReg
}

// All returns the technologies sorted by id.
func (r *Registry) All() []Technology {
	out := make([]Technology, len(r.techs))
	copy(out, r.techs)
	return out
}

// Lookup returns the technology with the given id.
func (r *Registry) Lookup(id string) (Technology, bool) {
	t, ok := r.byID[id]
	if !ok {
		return Technology{}, false
	}
	return *t, true
}

// TagByKeywords returns the ids of every technology with a keyword or alias contained
// in text. Matching is case-insensitive substring containment.
func (r *Registry) TagByKeywords(text string) []string {
	return matchAny(strings.ToLower(text), r.keywords)
}

// TagSkill tags a skill from its source, skill id and display name.
func (r *Registry) TagSkill(source, skillID, name string) []string {
	return r.TagByKeywords(" " + source + " " + skillID + " " + name + " ")
}

// TagContent matches content phrases against free text such as a README.
func (r *Registry) TagContent(text string) []string {
	return matchAny(strings.ToLower(text), r.phrases)
}

// MapDependencies maps a manifest's dependency names to technology ids.
// Exact names win over prefix patterns; unknown packages are ignored.
func (r *Registry) MapDependencies(deps map[string]string) []string {
	set := make(map[string]struct{})
	for name := range deps {
		if id, ok := r.packages[name]; ok {
			set[id] = struct{}{}
			continue
		}
		for _, rule := range r.prefixes {
			if strings.HasPrefix(name, rule.prefix) {
				set[rule.id] = struct{}{}
				break
			}
		}
	}
	return sortedKeys(set)
}

// MatchConfigFiles returns technologies hinted at by repository file paths.
func (r *Registry) MatchConfigFiles(paths []string) []string {
	set := make(map[string]struct{})
	for _, p := range paths {
		lp := strings.ToLower(p)
		if id, ok := r.configs[path.Base(lp)]; ok {
			set[id] = struct{}{}
			continue
		}
		for hint, id := range r.configs {
			if strings.Contains(hint, "/") && (lp == hint || strings.HasSuffix(lp, "/"+hint)) {
				set[id] = struct{}{}
			}
		}
	}
	return sortedKeys(set)
}

func matchAny(lower string, table map[string][]string) []string {
	set := make(map[string]struct{})
	for id, needles := range table {
		for _, n := range needles {
			if strings.Contains(lower, n) {
				set[id] = struct{}{}
				break
			}
		}
	}
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Merge unions several id lists into one sorted, deduplicated list.
func Merge(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, l := range lists {
		for _, id := range l {
			set[id] = struct{}{}
		}
	}
	return sortedKeys(set)
}
