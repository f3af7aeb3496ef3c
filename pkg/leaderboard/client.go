// Package leaderboard ingests the ranked skills.sh catalog into the store.
package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/elonfeng/skilldex/internal/httperr"
)

// DefaultBaseURL is the public leaderboard host.
const DefaultBaseURL = "https://skills.sh"

// Entry is one ranked skill.
type Entry struct {
	Source   string `json:"source"`
	SkillID  string `json:"skillId"`
	Name     string `json:"name"`
	Installs int    `json:"installs"`
}

// Page is one page of the all-time leaderboard.
type Page struct {
	Skills  []Entry `json:"skills"`
	HasMore bool    `json:"hasMore"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
}

// Client reads leaderboard pages.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client for baseURL; an empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, hc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{client: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// Page fetches page n (zero based).
func (c *Client) Page(ctx context.Context, n int) (*Page, error) {
	reqURL := fmt.Sprintf("%s/api/skills/all-time/%d", c.baseURL, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create leaderboard request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "skilldex/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard page %d: %w", n, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httperr.WithCode(
			fmt.Errorf("leaderboard page %d: status %d", n, resp.StatusCode), resp.StatusCode)
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode leaderboard page %d: %w", n, err)
	}
	return &page, nil
}
