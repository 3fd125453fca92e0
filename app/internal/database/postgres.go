package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"pulse/app/internal/models"
)

// Postgres stores samples and incidents in a PostgreSQL database
type Postgres struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a pool for databaseURL and migrates the schema
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// AppendSample records a probe result
func (p *Postgres) AppendSample(ctx context.Context, sm models.Sample) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO samples (taken_at, status, latency_ms, url, http_status, error)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sm.Timestamp.UTC(), string(sm.Status), sm.LatencyMs, sm.URL, sm.HTTPStatus, sm.Error,
	)
	return err
}

// ReadSamples returns the newest limit samples, oldest first
func (p *Postgres) ReadSamples(ctx context.Context, limit int) ([]models.Sample, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT taken_at, status, latency_ms, url, http_status, error FROM (
		   SELECT * FROM samples ORDER BY id DESC LIMIT $1
		 ) recent ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Sample
	for rows.Next() {
		var sm models.Sample
		var status string
		if err := rows.Scan(&sm.Timestamp, &status, &sm.LatencyMs, &sm.URL, &sm.HTTPStatus, &sm.Error); err != nil {
			return nil, err
		}
		sm.Timestamp = sm.Timestamp.UTC()
		sm.Status = models.Status(status)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// PruneSamples keeps only the newest keep samples
func (p *Postgres) PruneSamples(ctx context.Context, keep int) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM samples WHERE id NOT IN (SELECT id FROM samples ORDER BY id DESC LIMIT $1)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SaveIncident inserts or replaces an incident, keeping its original position
func (p *Postgres) SaveIncident(ctx context.Context, inc models.Incident) error {
	updates, err := json.Marshal(inc.Updates)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO incidents (id, title, status, date, identified_time, resolved_time, updates)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   title = EXCLUDED.title, status = EXCLUDED.status, date = EXCLUDED.date,
		   identified_time = EXCLUDED.identified_time, resolved_time = EXCLUDED.resolved_time,
		   updates = EXCLUDED.updates`,
		inc.ID, inc.Title, string(inc.Status), inc.Date, inc.IdentifiedTime, inc.ResolvedTime, string(updates),
	)
	return err
}

// LoadIncidents returns all incidents, most recent first
func (p *Postgres) LoadIncidents(ctx context.Context) ([]models.Incident, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, title, status, date, identified_time, resolved_time, updates
		 FROM incidents ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Incident{}
	for rows.Next() {
		var inc models.Incident
		var status string
		var updates []byte
		if err := rows.Scan(&inc.ID, &inc.Title, &status, &inc.Date, &inc.IdentifiedTime, &inc.ResolvedTime, &updates); err != nil {
			return nil, err
		}
		inc.Status = models.IncidentStatus(status)
		if err := decodeUpdates(updates, &inc); err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}
