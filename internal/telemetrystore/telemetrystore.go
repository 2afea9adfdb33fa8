// Package telemetrystore implements an optional durable audit sink:
// the core agent has no persistence requirement of its own, but a
// deployment that wants a local record of every sample and alarm it
// ever published can attach a Store to its plugin's Publish hook.
package telemetrystore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store records published telemetry samples and raised alarms to
// Postgres. The zero value is not usable; construct with Open.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, verifies connectivity, and ensures the
// telemetry_samples/alarm_events tables exist.
func Open(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("telemetrystore: dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("telemetrystore: connect: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("telemetrystore: ping: %w", err)
	}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS telemetry_samples (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			rendered TEXT NOT NULL,
			sampled_at TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_samples_device_name
			ON telemetry_samples (device_id, name, sampled_at DESC)`,
		`CREATE TABLE IF NOT EXISTS alarm_events (
			id BIGSERIAL PRIMARY KEY,
			device_id TEXT NOT NULL,
			name TEXT NOT NULL,
			severity TEXT NOT NULL,
			message TEXT NOT NULL,
			raised_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("telemetrystore: ensure schema: %w", err)
		}
	}
	return nil
}

// RecordSample inserts one telemetry publication. rendered is the
// sample's value already formatted as text (the store has no
// dependency on internal/value, so callers format before recording).
func (s *Store) RecordSample(ctx context.Context, deviceID, name, kind, rendered string, sampledAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO telemetry_samples (device_id, name, kind, rendered, sampled_at) VALUES ($1,$2,$3,$4,$5)`,
		deviceID, name, kind, rendered, sampledAt)
	if err != nil {
		return fmt.Errorf("telemetrystore: record sample %s: %w", name, err)
	}
	return nil
}

// RecordAlarm inserts one raised alarm.
func (s *Store) RecordAlarm(ctx context.Context, deviceID, name, severity, message string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO alarm_events (device_id, name, severity, message) VALUES ($1,$2,$3,$4)`,
		deviceID, name, severity, message)
	if err != nil {
		return fmt.Errorf("telemetrystore: record alarm %s: %w", name, err)
	}
	return nil
}

// RecentSamples returns the limit most recent samples for name, newest
// first.
func (s *Store) RecentSamples(ctx context.Context, deviceID, name string, limit int) ([]Sample, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT kind, rendered, sampled_at FROM telemetry_samples
		 WHERE device_id = $1 AND name = $2
		 ORDER BY sampled_at DESC LIMIT $3`,
		deviceID, name, limit)
	if err != nil {
		return nil, fmt.Errorf("telemetrystore: query samples %s: %w", name, err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sm Sample
		if err := rows.Scan(&sm.Kind, &sm.Rendered, &sm.SampledAt); err != nil {
			return nil, fmt.Errorf("telemetrystore: scan sample %s: %w", name, err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Sample is one row read back from RecentSamples.
type Sample struct {
	Kind      string
	Rendered  string
	SampledAt time.Time
}
