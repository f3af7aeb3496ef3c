package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Skill is one cataloged skill, unique by (Source, SkillID).
//
// SkillMdURL is tri-state: nil means discovery has not run, "" means discovery ran and
// found nothing, anything else is the resolved raw content URL.
type Skill struct {
	ID               int64        `db:"id" json:"id"`
	Source           string       `db:"source" json:"source"`
	SkillID          string       `db:"skill_id" json:"skillId"`
	Name             string       `db:"name" json:"name"`
	Installs         int          `db:"installs" json:"installs"`
	Leaderboard      string       `db:"leaderboard" json:"leaderboard"`
	Technologies     []string     `db:"-" json:"technologies"`
	TechnologiesJSON string       `db:"technologies" json:"-"`
	LastSynced       time.Time    `db:"last_synced" json:"lastSynced"`
	SkillMdURL       *string      `db:"skill_md_url" json:"skillMdUrl,omitempty"`
	Description      *string      `db:"description" json:"description,omitempty"`
	Content          *string      `db:"content" json:"content,omitempty"`
	ContentFetchedAt sql.NullTime `db:"content_fetched_at" json:"-"`
}

// Page is one keyset page of skills. Cursor is the last row id on the page.
type Page struct {
	Skills  []Skill
	Cursor  int64
	HasMore bool
}

// ListOpts controls skill listing.
type ListOpts struct {
	Source string
	Limit  int
}

// Stats summarizes pipeline progress.
type Stats struct {
	Skills           int `db:"skills" json:"skills"`
	PendingDiscovery int `db:"pending_discovery" json:"pendingDiscovery"`
	NotFound         int `db:"not_found" json:"notFound"`
	Resolved         int `db:"resolved" json:"resolved"`
	WithContent      int `db:"with_content" json:"withContent"`
	PendingTasks     int `db:"pending_tasks" json:"pendingTasks"`
	FailedTasks      int `db:"failed_tasks" json:"failedTasks"`
}

// Store is the persistence interface.
type Store interface {
	UpsertSkills(ctx context.Context, skills []Skill) (inserted, updated int, err error)
	GetSkill(ctx context.Context, id int64) (*Skill, error)
	GetSkillsByIDs(ctx context.Context, ids []int64) ([]Skill, error)
	ListSkills(ctx context.Context, opts ListOpts) ([]Skill, error)
	ListSkillsByTechnology(ctx context.Context, technology string, limit int) ([]Skill, error)
	SkillTechnologies(ctx context.Context, id int64) ([]string, error)

	ListSkillsMissingURL(ctx context.Context, after int64, limit int) (*Page, error)
	ListSkillsNeedingContent(ctx context.Context, after int64, limit int) (*Page, error)
	ListSkillsWithContent(ctx context.Context, after int64, limit int) (*Page, error)
	SetSkillMdURL(ctx context.Context, id int64, url string) error
	SetSkillContent(ctx context.Context, id int64, description, content *string, fetchedAt time.Time) error
	ClearSkillContent(ctx context.Context, ids []int64) error

	EnqueueTask(ctx context.Context, t *Task) error
	ClaimDueTasks(ctx context.Context, now time.Time, limit int) ([]Task, error)
	CompleteTask(ctx context.Context, id string) error
	FailTask(ctx context.Context, id string, reason string) error
	RetryTask(ctx context.Context, id string, runAt time.Time, reason string) error
	CountOpenTasks(ctx context.Context) (int, error)
	RequeueRunningTasks(ctx context.Context) (int64, error)

	InsertAnalysis(ctx context.Context, a *Analysis) error
	AnalysisExists(ctx context.Context, urlID string) (bool, error)
	GetAnalysis(ctx context.Context, urlID string) (*Analysis, error)

	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time keeps sqlite from returning SQLITE_BUSY under the worker pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// skillSummaryColumns omits the content body for list endpoints.
const skillSummaryColumns = `id, source, skill_id, name, installs, leaderboard, technologies,
	last_synced, skill_md_url, description, NULL AS content, content_fetched_at`

func (s *SQLiteStore) UpsertSkills(ctx context.Context, skills []Skill) (int, int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	var inserted, updated int
	for i := range skills {
		sk := &skills[i]
		techJSON, _ := json.Marshal(nonNil(sk.Technologies))
		if sk.Leaderboard == "" {
			sk.Leaderboard = "all-time"
		}

		var id int64
		err := tx.GetContext(ctx, &id, "SELECT id FROM skills WHERE source = ? AND skill_id = ?", sk.Source, sk.SkillID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx, `
				INSERT INTO skills (source, skill_id, name, installs, leaderboard, technologies, last_synced)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, sk.Source, sk.SkillID, sk.Name, sk.Installs, sk.Leaderboard, string(techJSON), sk.LastSynced)
			if err != nil {
				return 0, 0, fmt.Errorf("insert skill %s/%s: %w", sk.Source, sk.SkillID, err)
			}
			id, _ = res.LastInsertId()
			inserted++
		case err != nil:
			return 0, 0, fmt.Errorf("lookup skill %s/%s: %w", sk.Source, sk.SkillID, err)
		default:
			_, err := tx.ExecContext(ctx, `
				UPDATE skills SET installs = ?, technologies = ?, last_synced = ? WHERE id = ?
			`, sk.Installs, string(techJSON), sk.LastSynced, id)
			if err != nil {
				return 0, 0, fmt.Errorf("update skill %d: %w", id, err)
			}
			updated++
		}
		sk.ID = id

		if err := replaceTechnologies(ctx, tx, id, sk.Technologies, sk.Installs); err != nil {
			return 0, 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("commit upsert: %w", err)
	}
	return inserted, updated, nil
}

// replaceTechnologies rewrites the junction rows for one skill. Rows are never diffed.
func replaceTechnologies(ctx context.Context, tx *sqlx.Tx, id int64, techs []string, installs int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM skill_technologies WHERE skill_row_id = ?", id); err != nil {
		return fmt.Errorf("clear technologies %d: %w", id, err)
	}
	for _, t := range techs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO skill_technologies (skill_row_id, technology, installs) VALUES (?, ?, ?)",
			id, t, installs); err != nil {
			return fmt.Errorf("insert technology %s for %d: %w", t, id, err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetSkill(ctx context.Context, id int64) (*Skill, error) {
	var sk Skill
	err := s.db.GetContext(ctx, &sk, "SELECT * FROM skills WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get skill %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get skill %d: %w", id, err)
	}
	decodeSkill(&sk)
	return &sk, nil
}

func (s *SQLiteStore) GetSkillsByIDs(ctx context.Context, ids []int64) ([]Skill, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT * FROM skills WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, fmt.Errorf("build skills query: %w", err)
	}
	var skills []Skill
	if err := s.db.SelectContext(ctx, &skills, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get skills by ids: %w", err)
	}
	decodeSkills(skills)
	return skills, nil
}

func (s *SQLiteStore) ListSkills(ctx context.Context, opts ListOpts) ([]Skill, error) {
	query := "SELECT " + skillSummaryColumns + " FROM skills WHERE 1=1"
	var args []any

	if opts.Source != "" {
		query += " AND source = ?"
		args = append(args, opts.Source)
	}
	query += " ORDER BY installs DESC, id"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var skills []Skill
	if err := s.db.SelectContext(ctx, &skills, query, args...); err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	decodeSkills(skills)
	return skills, nil
}

func (s *SQLiteStore) ListSkillsByTechnology(ctx context.Context, technology string, limit int) ([]Skill, error) {
	if limit <= 0 {
		limit = 20
	}
	var skills []Skill
	err := s.db.SelectContext(ctx, &skills, `
		SELECT s.id, s.source, s.skill_id, s.name, s.installs, s.leaderboard, s.technologies,
			s.last_synced, s.skill_md_url, s.description, NULL AS content, s.content_fetched_at
		FROM skill_technologies st
		JOIN skills s ON s.id = st.skill_row_id
		WHERE st.technology = ?
		ORDER BY st.installs DESC, s.id
		LIMIT ?
	`, technology, limit)
	if err != nil {
		return nil, fmt.Errorf("list skills for %s: %w", technology, err)
	}
	decodeSkills(skills)
	return skills, nil
}

func (s *SQLiteStore) SkillTechnologies(ctx context.Context, id int64) ([]string, error) {
	var techs []string
	err := s.db.SelectContext(ctx, &techs,
		"SELECT technology FROM skill_technologies WHERE skill_row_id = ? ORDER BY technology", id)
	if err != nil {
		return nil, fmt.Errorf("skill technologies %d: %w", id, err)
	}
	return techs, nil
}

func (s *SQLiteStore) ListSkillsMissingURL(ctx context.Context, after int64, limit int) (*Page, error) {
	return s.page(ctx, "SELECT "+skillSummaryColumns+" FROM skills WHERE skill_md_url IS NULL AND id > ? ORDER BY id LIMIT ?", after, limit)
}

// ListSkillsNeedingContent pages resolved skills without content, plus skills whose
// description is a bare block-scalar indicator left by an earlier mis-parse.
func (s *SQLiteStore) ListSkillsNeedingContent(ctx context.Context, after int64, limit int) (*Page, error) {
	return s.page(ctx, `SELECT `+skillSummaryColumns+` FROM skills
		WHERE skill_md_url IS NOT NULL AND skill_md_url != ''
			AND (content IS NULL OR description IN ('|', '>'))
			AND id > ?
		ORDER BY id LIMIT ?`, after, limit)
}

func (s *SQLiteStore) ListSkillsWithContent(ctx context.Context, after int64, limit int) (*Page, error) {
	return s.page(ctx, `SELECT `+skillSummaryColumns+` FROM skills
		WHERE content IS NOT NULL AND content_fetched_at IS NOT NULL AND id > ?
		ORDER BY id LIMIT ?`, after, limit)
}

// page fetches limit+1 rows to learn whether another page exists.
func (s *SQLiteStore) page(ctx context.Context, query string, after int64, limit int) (*Page, error) {
	if limit <= 0 {
		limit = 100
	}
	var skills []Skill
	if err := s.db.SelectContext(ctx, &skills, query, after, limit+1); err != nil {
		return nil, fmt.Errorf("page skills after %d: %w", after, err)
	}
	p := &Page{Cursor: after}
	if len(skills) > limit {
		skills = skills[:limit]
		p.HasMore = true
	}
	decodeSkills(skills)
	p.Skills = skills
	if len(skills) > 0 {
		p.Cursor = skills[len(skills)-1].ID
	}
	return p, nil
}

func (s *SQLiteStore) SetSkillMdURL(ctx context.Context, id int64, url string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE skills SET skill_md_url = ? WHERE id = ?", url, id)
	if err != nil {
		return fmt.Errorf("set skill md url %d: %w", id, err)
	}
	return nil
}

// SetSkillContent stores whichever of description and content is non-nil.
func (s *SQLiteStore) SetSkillContent(ctx context.Context, id int64, description, content *string, fetchedAt time.Time) error {
	query := "UPDATE skills SET content_fetched_at = ?"
	args := []any{fetchedAt}
	if description != nil {
		query += ", description = ?"
		args = append(args, *description)
	}
	if content != nil {
		query += ", content = ?"
		args = append(args, *content)
	}
	query += " WHERE id = ?"
	args = append(args, id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set skill content %d: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) ClearSkillContent(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("UPDATE skills SET content = NULL WHERE id IN (?)", ids)
	if err != nil {
		return fmt.Errorf("build clear content query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("clear skill content: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `
		SELECT
			(SELECT COUNT(*) FROM skills) AS skills,
			(SELECT COUNT(*) FROM skills WHERE skill_md_url IS NULL) AS pending_discovery,
			(SELECT COUNT(*) FROM skills WHERE skill_md_url = '') AS not_found,
			(SELECT COUNT(*) FROM skills WHERE skill_md_url != '') AS resolved,
			(SELECT COUNT(*) FROM skills WHERE content IS NOT NULL) AS with_content,
			(SELECT COUNT(*) FROM tasks WHERE status IN ('pending', 'running')) AS pending_tasks,
			(SELECT COUNT(*) FROM tasks WHERE status = 'failed') AS failed_tasks
	`)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}

func decodeSkill(sk *Skill) {
	json.Unmarshal([]byte(sk.TechnologiesJSON), &sk.Technologies)
	if sk.Technologies == nil {
		sk.Technologies = []string{}
	}
}

func decodeSkills(skills []Skill) {
	for i := range skills {
		decodeSkill(&skills[i])
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
