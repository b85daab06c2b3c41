// Package postgres implements the profile and attempt stores on
// PostgreSQL through a pgx connection pool.
//
// Each mutation is a single statement or a single transaction, so readers
// observe either the previous or the new profile and counters never lose
// an increment under concurrency.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goFaceAuth/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the tables used by Store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS face_profiles (
    identity          TEXT PRIMARY KEY,
    embedding         DOUBLE PRECISION[] NOT NULL,
    enabled           BOOLEAN NOT NULL DEFAULT TRUE,
    liveness_required BOOLEAN NOT NULL DEFAULT TRUE,
    registered_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS face_attempt_counters (
    identity      TEXT PRIMARY KEY,
    success_count BIGINT NOT NULL DEFAULT 0,
    failed_count  BIGINT NOT NULL DEFAULT 0,
    last_attempt  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS face_attempt_failures (
    id        BIGSERIAL PRIMARY KEY,
    identity  TEXT NOT NULL,
    failed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS face_attempt_failures_identity_at
    ON face_attempt_failures (identity, failed_at);

ALTER TABLE face_profiles ALTER COLUMN liveness_required SET DEFAULT TRUE;
`

// Store is both a store.ProfileStore and a store.AttemptStore.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Connect opens a pool for databaseURL and verifies it with a ping.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// EnsureSchema applies Schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return unavailable(err)
	}
	return nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}

/*
====================================
PROFILES
====================================
*/

func (s *Store) GetProfile(ctx context.Context, identity string) (*store.Profile, error) {
	p := store.Profile{Identity: identity}
	query := `
        SELECT embedding, enabled, liveness_required, registered_at
        FROM face_profiles
        WHERE identity = $1
    `
	err := s.db.QueryRow(ctx, query, identity).Scan(
		&p.Embedding,
		&p.Enabled,
		&p.LivenessRequired,
		&p.RegisteredAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, unavailable(err)
	}
	p.RegisteredAt = p.RegisteredAt.UTC()
	return &p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p store.Profile) error {
	query := `
        INSERT INTO face_profiles (identity, embedding, enabled, liveness_required, registered_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (identity) DO UPDATE SET
            embedding = EXCLUDED.embedding,
            enabled = EXCLUDED.enabled,
            liveness_required = EXCLUDED.liveness_required,
            registered_at = EXCLUDED.registered_at
    `
	_, err := s.db.Exec(ctx, query, p.Identity, p.Embedding, p.Enabled, p.LivenessRequired, p.RegisteredAt.UTC())
	if err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) SetEnabled(ctx context.Context, identity string, enabled bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE face_profiles SET enabled = $2 WHERE identity = $1`, identity, enabled)
	if err != nil {
		return unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

/*
====================================
ATTEMPTS
====================================
*/

// RecordAttempt bumps one counter and, for failures, appends to the
// timeline and prunes entries older than retain, all in one transaction.
func (s *Store) RecordAttempt(
	ctx context.Context,
	identity string,
	success bool,
	at time.Time,
	retain time.Duration,
) (store.Counters, error) {
	var successInc, failedInc int64
	if success {
		successInc = 1
	} else {
		failedInc = 1
	}

	var c store.Counters
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		var succ, failed int64
		var last time.Time
		err := tx.QueryRow(ctx, `
            INSERT INTO face_attempt_counters (identity, success_count, failed_count, last_attempt)
            VALUES ($1, $2, $3, $4)
            ON CONFLICT (identity) DO UPDATE SET
                success_count = face_attempt_counters.success_count + EXCLUDED.success_count,
                failed_count = face_attempt_counters.failed_count + EXCLUDED.failed_count,
                last_attempt = EXCLUDED.last_attempt
            RETURNING success_count, failed_count, last_attempt
        `, identity, successInc, failedInc, at.UTC()).Scan(&succ, &failed, &last)
		if err != nil {
			return err
		}
		c = store.Counters{Success: uint64(succ), Failed: uint64(failed), LastAttempt: last.UTC()}

		if success {
			return nil
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO face_attempt_failures (identity, failed_at) VALUES ($1, $2)`,
			identity, at.UTC()); err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`DELETE FROM face_attempt_failures WHERE identity = $1 AND failed_at < $2`,
			identity, at.Add(-retain).UTC())
		return err
	})
	if err != nil {
		return store.Counters{}, unavailable(err)
	}
	return c, nil
}

func (s *Store) Counters(ctx context.Context, identity string) (store.Counters, error) {
	var succ, failed int64
	var last *time.Time
	err := s.db.QueryRow(ctx, `
        SELECT success_count, failed_count, last_attempt
        FROM face_attempt_counters
        WHERE identity = $1
    `, identity).Scan(&succ, &failed, &last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Counters{}, nil
		}
		return store.Counters{}, unavailable(err)
	}

	c := store.Counters{Success: uint64(succ), Failed: uint64(failed)}
	if last != nil {
		c.LastAttempt = last.UTC()
	}
	return c, nil
}

func (s *Store) FailuresSince(ctx context.Context, identity string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
        SELECT COUNT(*) FROM face_attempt_failures
        WHERE identity = $1 AND failed_at > $2
    `, identity, since.UTC()).Scan(&n)
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func (s *Store) ResetFailures(ctx context.Context, identity string, counters bool) error {
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM face_attempt_failures WHERE identity = $1`, identity); err != nil {
			return err
		}
		if !counters {
			return nil
		}
		_, err := tx.Exec(ctx, `DELETE FROM face_attempt_counters WHERE identity = $1`, identity)
		return err
	})
	if err != nil {
		return unavailable(err)
	}
	return nil
}

var (
	_ store.ProfileStore = (*Store)(nil)
	_ store.AttemptStore = (*Store)(nil)
)
