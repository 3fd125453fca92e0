package database

// EnsureSchema creates all necessary database tables
func (s *SQLite) EnsureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS samples (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  taken_at TEXT NOT NULL,
  status TEXT NOT NULL,
  latency_ms INTEGER NOT NULL DEFAULT 0,
  url TEXT,
  http_status INTEGER,
  error TEXT
);
CREATE INDEX IF NOT EXISTS idx_samples_taken ON samples(taken_at);

CREATE TABLE IF NOT EXISTS incidents (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'identified',
  date TEXT NOT NULL,
  identified_time TEXT NOT NULL,
  resolved_time TEXT NOT NULL DEFAULT '',
  updates TEXT NOT NULL DEFAULT '[]',
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at);
`)
	return err
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS samples (
  id BIGSERIAL PRIMARY KEY,
  taken_at TIMESTAMPTZ NOT NULL,
  status TEXT NOT NULL,
  latency_ms BIGINT NOT NULL DEFAULT 0,
  url TEXT NOT NULL DEFAULT '',
  http_status INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_samples_taken ON samples(taken_at);

CREATE TABLE IF NOT EXISTS incidents (
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'identified',
  date TEXT NOT NULL,
  identified_time TEXT NOT NULL,
  resolved_time TEXT NOT NULL DEFAULT '',
  updates JSONB NOT NULL DEFAULT '[]',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_incidents_created ON incidents(created_at);
`
