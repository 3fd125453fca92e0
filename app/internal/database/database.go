package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"pulse/app/internal/incident"
	"pulse/app/internal/models"
	"pulse/app/internal/monitor"
)

// ErrLocked is returned when another process already owns the database file
var ErrLocked = errors.New("database is in use by another process")

// Store is a durable backend for both the monitoring log and the incident log
type Store interface {
	monitor.Store
	incident.Store
	// PruneSamples deletes all but the newest keep samples
	PruneSamples(ctx context.Context, keep int) (int64, error)
	Close() error
}

// SQLite stores samples and incidents in a single sqlite file. The file is
// guarded by an exclusive lock so that only one process writes to it.
type SQLite struct {
	db   *sql.DB
	lock *flock.Flock
}

// OpenSQLite opens (creating if needed) the database at path. ":memory:"
// opens a private in-memory database and takes no file lock.
func OpenSQLite(path string) (*SQLite, error) {
	var lock *flock.Flock
	if path != ":memory:" {
		lock = flock.New(path + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", path, err)
		}
		if !ok {
			return nil, ErrLocked
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		unlock(lock)
		return nil, err
	}
	// A single connection keeps :memory: databases alive and avoids
	// SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, lock: lock}
	if err := s.EnsureSchema(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return s, nil
}

func unlock(l *flock.Flock) {
	if l != nil {
		_ = l.Unlock()
	}
}

// Close closes the database and releases the file lock
func (s *SQLite) Close() error {
	err := s.db.Close()
	unlock(s.lock)
	return err
}

// AppendSample records a probe result
func (s *SQLite) AppendSample(ctx context.Context, sm models.Sample) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO samples (taken_at, status, latency_ms, url, http_status, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sm.Timestamp.UTC().Format(time.RFC3339Nano), string(sm.Status), sm.LatencyMs, sm.URL, sm.HTTPStatus, sm.Error)
	return err
}

// ReadSamples returns the newest limit samples, oldest first
func (s *SQLite) ReadSamples(ctx context.Context, limit int) ([]models.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT taken_at, status, latency_ms, url, http_status, error FROM (
			SELECT id, taken_at, status, latency_ms, COALESCE(url, '') AS url,
			       COALESCE(http_status, 0) AS http_status, COALESCE(error, '') AS error
			FROM samples ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Sample
	for rows.Next() {
		var sm models.Sample
		var takenAt, status string
		if err := rows.Scan(&takenAt, &status, &sm.LatencyMs, &sm.URL, &sm.HTTPStatus, &sm.Error); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, takenAt)
		if err != nil {
			return nil, fmt.Errorf("bad taken_at %q: %w", takenAt, err)
		}
		sm.Timestamp = ts
		sm.Status = models.Status(status)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// PruneSamples keeps only the newest keep samples
func (s *SQLite) PruneSamples(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM samples WHERE id NOT IN (
		SELECT id FROM samples ORDER BY id DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// createdLayout is fixed width so created_at sorts as text
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveIncident inserts or replaces an incident, keeping its original position
func (s *SQLite) SaveIncident(ctx context.Context, inc models.Incident) error {
	updates, err := json.Marshal(inc.Updates)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO incidents (id, title, status, date, identified_time, resolved_time, updates, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, status=excluded.status, date=excluded.date,
			identified_time=excluded.identified_time, resolved_time=excluded.resolved_time,
			updates=excluded.updates`,
		inc.ID, inc.Title, string(inc.Status), inc.Date, inc.IdentifiedTime, inc.ResolvedTime, string(updates),
		time.Now().UTC().Format(createdLayout))
	return err
}

// LoadIncidents returns all incidents, most recent first. Insertion order is
// the rowid; an upsert keeps it.
func (s *SQLite) LoadIncidents(ctx context.Context) ([]models.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, status, date, identified_time, resolved_time, updates
		FROM incidents ORDER BY rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Incident{}
	for rows.Next() {
		var inc models.Incident
		var status, updates string
		if err := rows.Scan(&inc.ID, &inc.Title, &status, &inc.Date, &inc.IdentifiedTime, &inc.ResolvedTime, &updates); err != nil {
			return nil, err
		}
		inc.Status = models.IncidentStatus(status)
		if err := decodeUpdates([]byte(updates), &inc); err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

func decodeUpdates(raw []byte, inc *models.Incident) error {
	inc.Updates = []models.IncidentUpdate{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &inc.Updates); err != nil {
		return fmt.Errorf("incident %s: bad updates: %w", inc.ID, err)
	}
	if inc.Updates == nil {
		inc.Updates = []models.IncidentUpdate{}
	}
	return nil
}
