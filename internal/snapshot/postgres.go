/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */

// Package snapshot persists one immutable record per closed iteration. The
// store is the system of record: once a snapshot exists it supersedes live
// queries and is never regenerated.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"sprintboard/internal/config"
	"sprintboard/internal/domain"
)

type DB struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

func MustOpen(ctx context.Context, cfg config.Config, log zerolog.Logger) *DB {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}
	ctx2, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(ctx2); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}
	return &DB{Pool: pool, log: log}
}

func (d *DB) Close() { d.Pool.Close() }

type PostgresStore struct {
	db  *DB
	log zerolog.Logger
}

func NewPostgresStore(d *DB, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{db: d, log: log}
}

// Migrate creates the snapshot table if missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS snapshots(
            iteration_id BIGINT PRIMARY KEY,
            captured_at  TIMESTAMPTZ NOT NULL,
            doc          JSONB NOT NULL
        )`)
	return err
}

// Get returns the stored snapshot for an iteration, or nil when absent.
func (s *PostgresStore) Get(ctx context.Context, iterationID int64) (*domain.Snapshot, error) {
	var doc []byte
	err := s.db.Pool.QueryRow(ctx, `SELECT doc FROM snapshots WHERE iteration_id=$1`, iterationID).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap domain.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Put stores a snapshot with create-if-absent semantics: the insert is a
// no-op when a row for the iteration already exists, making the first writer
// win atomically. It reports whether this call created the record.
func (s *PostgresStore) Put(ctx context.Context, snap *domain.Snapshot) (bool, error) {
	doc, err := json.Marshal(snap)
	if err != nil {
		return false, err
	}
	tag, err := s.db.Pool.Exec(ctx, `
        INSERT INTO snapshots(iteration_id, captured_at, doc)
        VALUES($1,$2,$3)
        ON CONFLICT (iteration_id) DO NOTHING`,
		snap.Iteration.ID, snap.CapturedAt, doc)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ExistsClosed reports whether a snapshot exists for the iteration and the
// frozen iteration in it is closed.
func (s *PostgresStore) ExistsClosed(ctx context.Context, iterationID int64) (bool, error) {
	var state *string
	err := s.db.Pool.QueryRow(ctx,
		`SELECT doc->'iteration'->>'state' FROM snapshots WHERE iteration_id=$1`, iterationID).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return state != nil && *state == string(domain.IterationClosed), nil
}

// TryAdvisoryLock guards the capture job against concurrent replicas.
func (s *PostgresStore) TryAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	err := s.db.Pool.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok)
	return ok, err
}

func (s *PostgresStore) AdvisoryUnlock(ctx context.Context, key int64) error {
	var ok bool
	err := s.db.Pool.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&ok)
	if !ok && err == nil {
		return errors.New("advisory unlock returned false")
	}
	return err
}
