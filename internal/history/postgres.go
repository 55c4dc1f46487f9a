package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps history in PostgreSQL, for deployments with several replicas.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures the table exists.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("history: pgxpool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS downloads (
		id          BIGSERIAL PRIMARY KEY,
		video_id    TEXT NOT NULL,
		title       TEXT NOT NULL,
		method      TEXT NOT NULL,
		source      TEXT NOT NULL,
		created_at  TEXT NOT NULL
	)`); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO downloads (video_id, title, method, source, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.VideoID, e.Title, e.Method, e.Source, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, video_id, title, method, source, created_at FROM downloads ORDER BY id DESC LIMIT $1`,
		NormLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.VideoID, &e.Title, &e.Method, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
