package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// schema creates the tables when missing. Statements run in order.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    name_lower TEXT NOT NULL UNIQUE,
    salt TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    session_token TEXT NOT NULL DEFAULT '',
    state JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS accounts_session_token_idx ON accounts (session_token)`,
	`CREATE TABLE IF NOT EXISTS leaderboard (
    name TEXT NOT NULL,
    aura DOUBLE PRECISION NOT NULL,
    rebirths INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL,
    account_id TEXT NOT NULL DEFAULT ''
)`,
}

// InitPostgres opens dsn, checks the connection and creates the accounts
// and leaderboard tables when missing.
func InitPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := CreateSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// CreateSchema creates the accounts and leaderboard tables and the session
// token index. It is safe to run against an existing database.
func CreateSchema(db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}
