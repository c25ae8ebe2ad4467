// Package postgres provides the PostgreSQL-backed session store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intervox-ai/intervox/internal/session"
)

// Compile-time assertion that Store implements session.Store.
var _ session.Store = (*Store)(nil)

// schema creates the sessions table on first use. total_tokens is only ever
// updated additively, so the column needs no optimistic-locking support.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id             TEXT PRIMARY KEY,
    user_id        TEXT        NOT NULL,
    user_email     TEXT        NOT NULL DEFAULT '',
    interview_type TEXT        NOT NULL,
    start_time     TIMESTAMPTZ NOT NULL DEFAULT now(),
    end_time       TIMESTAMPTZ,
    total_tokens   BIGINT      NOT NULL DEFAULT 0,
    completed      BOOLEAN     NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS sessions_user_start_idx
    ON sessions (user_id, start_time DESC);`

// Store is the PostgreSQL implementation of [session.Store]. It holds a
// single [pgxpool.Pool]; all methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn and ensures the
// sessions table exists.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("session store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session store: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("session store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Create implements [session.Store].
func (s *Store) Create(ctx context.Context, userID, userEmail, interviewType string) (string, error) {
	id := uuid.NewString()
	const q = `
		INSERT INTO sessions (id, user_id, user_email, interview_type)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, q, id, userID, userEmail, interviewType); err != nil {
		return "", fmt.Errorf("session store: create: %w", err)
	}
	return id, nil
}

// AddTokens implements [session.Store]. The increment happens inside the
// UPDATE itself so concurrent metering updates from overlapping requests
// never lose an addend.
func (s *Store) AddTokens(ctx context.Context, id string, delta int64) error {
	const q = `UPDATE sessions SET total_tokens = total_tokens + $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, delta)
	if err != nil {
		return fmt.Errorf("session store: add tokens: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session store: add tokens: %w", session.ErrNotFound)
	}
	return nil
}

// Complete implements [session.Store].
func (s *Store) Complete(ctx context.Context, id string) error {
	const q = `
		UPDATE sessions
		SET    completed = TRUE, end_time = now()
		WHERE  id = $1 AND NOT completed`

	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("session store: complete: %w", err)
	}
	return nil
}

// Get implements [session.Store].
func (s *Store) Get(ctx context.Context, id string) (session.Session, error) {
	const q = `
		SELECT id, user_id, user_email, interview_type, start_time,
		       COALESCE(end_time, 'epoch'::timestamptz), total_tokens, completed
		FROM   sessions
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return session.Session{}, fmt.Errorf("session store: get: %w", err)
	}
	sess, err := pgx.CollectOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("session store: get: %w", err)
	}
	return sess, nil
}

// List implements [session.Store].
func (s *Store) List(ctx context.Context, userID string) ([]session.Session, error) {
	const q = `
		SELECT id, user_id, user_email, interview_type, start_time,
		       COALESCE(end_time, 'epoch'::timestamptz), total_tokens, completed
		FROM   sessions
		WHERE  user_id = $1
		ORDER  BY start_time DESC`

	rows, err := s.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("session store: list: %w", err)
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	return sessions, nil
}

// Ping reports whether the database is reachable. Used by the readiness
// probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// scanSession scans one sessions row. A zero end_time (stored as NULL,
// coalesced to epoch) maps back to the zero time.
func scanSession(row pgx.CollectableRow) (session.Session, error) {
	var sess session.Session
	if err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&sess.UserEmail,
		&sess.InterviewType,
		&sess.StartTime,
		&sess.EndTime,
		&sess.TotalTokens,
		&sess.Completed,
	); err != nil {
		return session.Session{}, err
	}
	if sess.EndTime.Unix() == 0 {
		sess.EndTime = time.Time{}
	}
	return sess, nil
}
