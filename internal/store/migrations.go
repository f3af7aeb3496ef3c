package store

const schema = `
CREATE TABLE IF NOT EXISTS skills (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    source             TEXT NOT NULL,
    skill_id           TEXT NOT NULL,
    name               TEXT NOT NULL,
    installs           INTEGER NOT NULL DEFAULT 0,
    leaderboard        TEXT NOT NULL DEFAULT 'all-time',
    technologies       TEXT NOT NULL DEFAULT '[]',
    last_synced        DATETIME NOT NULL,
    skill_md_url       TEXT,
    description        TEXT,
    content            TEXT,
    content_fetched_at DATETIME,
    UNIQUE(source, skill_id)
);

CREATE INDEX IF NOT EXISTS idx_skills_installs ON skills(installs);
CREATE INDEX IF NOT EXISTS idx_skills_skill_md_url ON skills(skill_md_url);

CREATE TABLE IF NOT EXISTS skill_technologies (
    skill_row_id INTEGER NOT NULL REFERENCES skills(id),
    technology   TEXT NOT NULL,
    installs     INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (skill_row_id, technology)
);

CREATE INDEX IF NOT EXISTS idx_skill_tech_rank ON skill_technologies(technology, installs DESC);

CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    payload     TEXT NOT NULL DEFAULT '{}',
    run_at_ms   INTEGER NOT NULL,
    status      TEXT NOT NULL DEFAULT 'pending',
    attempts    INTEGER NOT NULL DEFAULT 0,
    last_error  TEXT NOT NULL DEFAULT '',
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(status, run_at_ms);

CREATE TABLE IF NOT EXISTS analyses (
    url_id       TEXT PRIMARY KEY,
    repo_url     TEXT NOT NULL,
    owner        TEXT NOT NULL,
    repo         TEXT NOT NULL,
    branch       TEXT NOT NULL DEFAULT '',
    technologies TEXT NOT NULL DEFAULT '[]',
    manifests    TEXT NOT NULL DEFAULT '[]',
    monorepo     BOOLEAN NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL
);
`
