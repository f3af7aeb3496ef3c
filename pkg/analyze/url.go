// Package analyze inspects a GitHub repository's manifests and config files, derives
// its technology stack and recommends skills for it.
package analyze

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RepoRef identifies a GitHub repository.
type RepoRef struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

// Source returns "owner/repo".
func (r RepoRef) Source() string { return r.Owner + "/" + r.Repo }

// ParseGitHubURL extracts owner and repo from a GitHub repository URL. It accepts
// https, http, scheme-less and git@ forms and strips a query, a fragment, trailing
// slashes and a .git suffix. Extra path segments (/tree/main/...) are ignored.
func ParseGitHubURL(raw string) (RepoRef, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}

	switch {
	case strings.HasPrefix(s, "git@github.com:"):
		s = strings.TrimPrefix(s, "git@github.com:")
	default:
		s = strings.TrimPrefix(s, "https://")
		s = strings.TrimPrefix(s, "http://")
		s = strings.TrimPrefix(s, "www.")
		host, rest, ok := strings.Cut(s, "/")
		if !ok || !strings.EqualFold(host, "github.com") {
			return RepoRef{}, fmt.Errorf("not a github repository url: %q", raw)
		}
		s = rest
	}

	s = strings.TrimRight(s, "/")
	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return RepoRef{}, fmt.Errorf("github url %q has no owner/repo", raw)
	}
	owner := parts[0]
	repo := strings.TrimSuffix(strings.TrimRight(parts[1], "/"), ".git")
	if owner == "" || repo == "" {
		return RepoRef{}, fmt.Errorf("github url %q has no owner/repo", raw)
	}
	return RepoRef{Owner: owner, Repo: repo}, nil
}

// MaxURLIDAttempts bounds EnsureUniqueURLID.
const MaxURLIDAttempts = 20

// ErrURLIDExhausted is returned when every generated id collided.
var ErrURLIDExhausted = errors.New("could not generate a unique url id")

// NewURLID returns a short random id for sharing an analysis.
func NewURLID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// EnsureUniqueURLID generates ids until exists reports one as free, giving up after
// MaxURLIDAttempts.
func EnsureUniqueURLID(ctx context.Context, exists func(context.Context, string) (bool, error), generate func() string) (string, error) {
	for range MaxURLIDAttempts {
		id := generate()
		taken, err := exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check url id: %w", err)
		}
		if !taken {
			return id, nil
		}
	}
	return "", ErrURLIDExhausted
}
