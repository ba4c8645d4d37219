// Package database owns the Postgres pool and schema.
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Connect opens a pgx pool and verifies the connection.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id uuid PRIMARY KEY,
		username text NOT NULL UNIQUE,
		password_hash text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS rooms (
		id uuid PRIMARY KEY,
		doc jsonb NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS moves (
		room_id uuid NOT NULL REFERENCES rooms (id),
		id integer NOT NULL,
		doc jsonb NOT NULL,
		resolution jsonb,
		PRIMARY KEY (room_id, id)
	)`,
	`CREATE TABLE IF NOT EXISTS cards (
		room_id uuid NOT NULL REFERENCES rooms (id),
		id integer NOT NULL,
		suit integer NOT NULL,
		rank integer NOT NULL,
		wild boolean NOT NULL,
		shown_to text[] NOT NULL,
		drawn_by integer,
		revealed_by integer,
		PRIMARY KEY (room_id, id)
	)`,
}

// EnsureSchema creates the tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log *logrus.Logger) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	if log != nil {
		log.WithField("component", "database").Debug("schema ensured")
	}
	return nil
}
