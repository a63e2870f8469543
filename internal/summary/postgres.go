package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists summaries in PostgreSQL, one row per destination.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS summaries (
			destination TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) WriteSummary(ctx context.Context, destination, text string) error {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return ErrInvalidDestination
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO summaries (destination, content, updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (destination) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		destination,
		text,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReadSummary(ctx context.Context, destination string) (string, error) {
	var text string
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM summaries WHERE destination=$1`,
		strings.TrimSpace(destination),
	).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("query summary: %w", err)
	}
	return text, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
