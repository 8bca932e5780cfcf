package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a pgx connection pool and verifies connectivity with a ping.
func New(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// schema is applied on startup so a fresh database is usable immediately.
// Statements are idempotent; existing tables are left untouched.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'Member',
	reedz_balance BIGINT NOT NULL DEFAULT 0,
	reset_code TEXT,
	reset_code_expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS bets (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	creator_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	answer_type TEXT NOT NULL,
	is_open BOOLEAN NOT NULL DEFAULT TRUE,
	is_closed BOOLEAN NOT NULL DEFAULT FALSE,
	is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
	close_at TIMESTAMPTZ NOT NULL,
	correct_answer TEXT,
	resolved_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS predictions (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	bet_id UUID NOT NULL REFERENCES bets(id) ON DELETE CASCADE,
	value TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, bet_id)
);

CREATE INDEX IF NOT EXISTS idx_predictions_bet_id ON predictions (bet_id);
CREATE INDEX IF NOT EXISTS idx_predictions_user_id ON predictions (user_id);
CREATE INDEX IF NOT EXISTS idx_bets_close_at_open ON bets (close_at) WHERE is_open;

CREATE TABLE IF NOT EXISTS keep_alive (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema creates the application tables when they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// KeepAlive issues small writes that keep a hosted Postgres from being
// paused for inactivity.
type KeepAlive struct {
	pool *pgxpool.Pool
}

func NewKeepAlive(pool *pgxpool.Pool) *KeepAlive {
	return &KeepAlive{pool: pool}
}

// Touch inserts a ping row and deletes it again.
func (k *KeepAlive) Touch(ctx context.Context) error {
	if _, err := k.pool.Exec(ctx, `INSERT INTO keep_alive (status) VALUES ('ping')`); err != nil {
		return fmt.Errorf("keep-alive insert: %w", err)
	}
	if _, err := k.pool.Exec(ctx, `DELETE FROM keep_alive WHERE status = 'ping'`); err != nil {
		return fmt.Errorf("keep-alive delete: %w", err)
	}
	return nil
}
