package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Analysis is a stored repository stack analysis addressable by a short url id.
type Analysis struct {
	URLID            string    `db:"url_id" json:"urlId"`
	RepoURL          string    `db:"repo_url" json:"repoUrl"`
	Owner            string    `db:"owner" json:"owner"`
	Repo             string    `db:"repo" json:"repo"`
	Branch           string    `db:"branch" json:"branch"`
	Technologies     []string  `db:"-" json:"technologies"`
	TechnologiesJSON string    `db:"technologies" json:"-"`
	Manifests        []string  `db:"-" json:"manifests"`
	ManifestsJSON    string    `db:"manifests" json:"-"`
	Monorepo         bool      `db:"monorepo" json:"monorepo"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

func (s *SQLiteStore) InsertAnalysis(ctx context.Context, a *Analysis) error {
	techJSON, _ := json.Marshal(nonNil(a.Technologies))
	manifestsJSON, _ := json.Marshal(nonNil(a.Manifests))
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO analyses (url_id, repo_url, owner, repo, branch, technologies, manifests, monorepo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.URLID, a.RepoURL, a.Owner, a.Repo, a.Branch, string(techJSON), string(manifestsJSON), a.Monorepo, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis %s: %w", a.URLID, err)
	}
	return nil
}

func (s *SQLiteStore) AnalysisExists(ctx context.Context, urlID string) (bool, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM analyses WHERE url_id = ?", urlID); err != nil {
		return false, fmt.Errorf("check analysis %s: %w", urlID, err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetAnalysis(ctx context.Context, urlID string) (*Analysis, error) {
	var a Analysis
	err := s.db.GetContext(ctx, &a, "SELECT * FROM analyses WHERE url_id = ?", urlID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get analysis %s: %w", urlID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis %s: %w", urlID, err)
	}
	json.Unmarshal([]byte(a.TechnologiesJSON), &a.Technologies)
	json.Unmarshal([]byte(a.ManifestsJSON), &a.Manifests)
	return &a, nil
}
