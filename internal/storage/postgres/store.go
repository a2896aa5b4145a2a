package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"lodge_finder/internal/adapters/observability"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS kv_store (
  k          TEXT        PRIMARY KEY,
  v          BYTEA       NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const getSQL = `SELECT v FROM kv_store WHERE k = $1`

const putSQL = `
INSERT INTO kv_store (k, v) VALUES ($1, $2)
ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v, updated_at = now()`

type Store struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

// Open builds a small pool in simple-protocol mode so it also works
// behind PgBouncer, then creates the table when missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	cfg.ConnConfig.RuntimeParams["application_name"] = "lodge-finder"
	cfg.MaxConns = 5
	cfg.MinConns = 0
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	s := New(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Info().Msg("postgres store ready")
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.pool.QueryRow(ctx, getSQL, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		observability.ObserveStore("postgres", "get", nil)
		return nil, false, nil
	}
	observability.ObserveStore("postgres", "get", err)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx, putSQL, key, value)
	observability.ObserveStore("postgres", "put", err)
	return err
}

func (s *Store) Close() { s.pool.Close() }
