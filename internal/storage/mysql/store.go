package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"lodge_finder/internal/adapters/observability"
)

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

// Open connects, pings and creates the table when missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db.Ping: %w", err)
	}
	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info().Msg("mysql store ready")
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, getSQL, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		observability.ObserveStore("mysql", "get", nil)
		return nil, false, nil
	}
	observability.ObserveStore("mysql", "get", err)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, putSQL, key, value)
	observability.ObserveStore("mysql", "put", err)
	return err
}

func (s *Store) Close() error { return s.db.Close() }
