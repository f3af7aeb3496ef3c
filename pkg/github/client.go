// Package github talks to the GitHub REST API, raw.githubusercontent.com and the
// public commit Atom feeds.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/elonfeng/skilldex/internal/httperr"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultRawBase = "https://raw.githubusercontent.com"
	defaultWebBase = "https://github.com"

	maxRawBytes = 5 << 20
)

// Error taxonomy for GitHub responses. Every error returned by Client for a non-2xx
// response wraps one of these and carries the status via httperr.
var (
	ErrNotFound    = errors.New("not found")
	ErrTooLarge    = errors.New("too large")
	ErrRateLimited = errors.New("rate limited")
	ErrUnexpected  = errors.New("unexpected status")
)

// Client is a small GitHub client. The zero value is not usable; use NewClient.
type Client struct {
	client  *http.Client
	token   string
	apiBase string
	rawBase string
	webBase string
	log     *slog.Logger
	parser  *gofeed.Parser
	maxRaw  int64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithAPIBase overrides https://api.github.com.
func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = strings.TrimRight(base, "/") }
}

// WithRawBase overrides https://raw.githubusercontent.com.
func WithRawBase(base string) Option {
	return func(c *Client) { c.rawBase = strings.TrimRight(base, "/") }
}

// WithWebBase overrides https://github.com (commit feeds).
func WithWebBase(base string) Option {
	return func(c *Client) { c.webBase = strings.TrimRight(base, "/") }
}

// WithLogger sets the logger used for rate-limit diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient creates a client. token may be empty for unauthenticated access.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		client:  &http.Client{Timeout: 30 * time.Second},
		token:   token,
		apiBase: defaultAPIBase,
		rawBase: defaultRawBase,
		webBase: defaultWebBase,
		log:     slog.Default(),
		parser:  gofeed.NewParser(),
		maxRaw:  maxRawBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HasToken reports whether API calls are authenticated.
func (c *Client) HasToken() bool { return c.token != "" }

// TreeEntry is one item of a recursive tree listing.
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// Tree is a recursive tree listing for one branch.
type Tree struct {
	SHA       string      `json:"sha"`
	Truncated bool        `json:"truncated"`
	Entries   []TreeEntry `json:"tree"`
}

// Blobs returns the paths of all file entries.
func (t *Tree) Blobs() []string {
	var out []string
	for _, e := range t.Entries {
		if e.Type == "blob" {
			out = append(out, e.Path)
		}
	}
	return out
}

// DefaultBranch returns the repository's default branch.
func (c *Client) DefaultBranch(ctx context.Context, source string) (string, error) {
	owner, repo, err := SplitSource(source)
	if err != nil {
		return "", err
	}
	var info struct {
		DefaultBranch string `json:"default_branch"`
	}
	reqURL := fmt.Sprintf("%s/repos/%s/%s", c.apiBase, url.PathEscape(owner), url.PathEscape(repo))
	if err := c.getJSON(ctx, reqURL, &info); err != nil {
		return "", fmt.Errorf("get repo %s: %w", source, err)
	}
	if info.DefaultBranch == "" {
		return "", fmt.Errorf("repo %s: empty default branch", source)
	}
	return info.DefaultBranch, nil
}

// Tree lists the repository tree of branch recursively.
// 404 wraps ErrNotFound, 409 wraps ErrTooLarge, 403/429 wrap ErrRateLimited.
func (c *Client) Tree(ctx context.Context, source, branch string) (*Tree, error) {
	owner, repo, err := SplitSource(source)
	if err != nil {
		return nil, err
	}
	reqURL := fmt.Sprintf("%s/repos/%s/%s/git/trees/%s?recursive=1",
		c.apiBase, url.PathEscape(owner), url.PathEscape(repo), url.PathEscape(branch))
	var tree Tree
	if err := c.getJSON(ctx, reqURL, &tree); err != nil {
		return nil, fmt.Errorf("get tree %s@%s: %w", source, branch, err)
	}
	return &tree, nil
}

// RawURL builds the raw.githubusercontent.com URL of a file.
func (c *Client) RawURL(source, branch, filePath string) string {
	segments := strings.Split(strings.TrimPrefix(filePath, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("%s/%s/%s/%s", c.rawBase, source, url.PathEscape(branch), strings.Join(segments, "/"))
}

// FetchRaw downloads a raw file. Raw downloads are unauthenticated and do not count
// against the API quota. Non-2xx responses carry their status via httperr; transport
// failures do not. Files over 5 MiB fail with ErrTooLarge rather than being cut short.
func (c *Client) FetchRaw(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create raw request: %w", err)
	}
	req.Header.Set("User-Agent", "skilldex/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetch %s: %w", rawURL, c.statusError(resp))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxRaw+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if int64(len(body)) > c.maxRaw {
		return "", httperr.WithCode(fmt.Errorf("read %s: %w", rawURL, ErrTooLarge), http.StatusRequestEntityTooLarge)
	}
	return string(body), nil
}

// Exists checks a raw URL with a HEAD request. A 404 is a clean false.
func (c *Client) Exists(ctx context.Context, rawURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return false, fmt.Errorf("create head request: %w", err)
	}
	req.Header.Set("User-Agent", "skilldex/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("head %s: %w", rawURL, err)
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("head %s: %w", rawURL, c.statusError(resp))
}

// LatestCommit returns the time of the newest commit on branch, read from the public
// commits Atom feed. It does not use the API quota.
func (c *Client) LatestCommit(ctx context.Context, source, branch string) (time.Time, error) {
	feedURL := fmt.Sprintf("%s/%s/commits/%s.atom", c.webBase, source, url.PathEscape(branch))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("User-Agent", "skilldex/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch commit feed %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("commit feed %s: %w", source, c.statusError(resp))
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse commit feed %s: %w", source, err)
	}

	var latest time.Time
	for _, item := range feed.Items {
		ts := item.UpdatedParsed
		if ts == nil {
			ts = item.PublishedParsed
		}
		if ts != nil && ts.After(latest) {
			latest = ts.UTC()
		}
	}
	if latest.IsZero() {
		return time.Time{}, fmt.Errorf("commit feed %s: %w", source, ErrNotFound)
	}
	return latest, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("create github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "skilldex/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}

// statusError classifies a non-2xx response. Rate-limit responses log their headers.
func (c *Client) statusError(resp *http.Response) error {
	var base error
	switch resp.StatusCode {
	case http.StatusNotFound:
		base = ErrNotFound
	case http.StatusConflict:
		base = ErrTooLarge
	case http.StatusForbidden, http.StatusTooManyRequests:
		base = ErrRateLimited
		c.logRateLimit(resp)
	default:
		base = ErrUnexpected
	}
	return httperr.WithCode(fmt.Errorf("%w (status %d)", base, resp.StatusCode), resp.StatusCode)
}

var rateLimitHeaders = []string{
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Used",
	"X-RateLimit-Reset",
	"Retry-After",
}

func (c *Client) logRateLimit(resp *http.Response) {
	attrs := []any{"status", resp.StatusCode, "url", resp.Request.URL.String()}
	for _, h := range rateLimitHeaders {
		if v := resp.Header.Get(h); v != "" {
			attrs = append(attrs, strings.ToLower(h), v)
		}
	}
	if reset := resp.Header.Get("X-RateLimit-Reset"); reset != "" {
		var epoch int64
		if _, err := fmt.Sscan(reset, &epoch); err == nil {
			attrs = append(attrs, "reset_at", time.Unix(epoch, 0).UTC().Format(time.RFC3339))
		}
	}
	c.log.Warn("github rate limited", attrs...)
}

// SplitSource splits "owner/repo".
func SplitSource(source string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(source, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid source %q: want owner/repo", source)
	}
	return owner, repo, nil
}
