package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eventdesk/desk-engine/internal/model"
)

// Schema creates the snapshot table. One row per event, overwritten on
// every save.
const Schema = `CREATE TABLE IF NOT EXISTS market_snapshots (
	event_ticker TEXT PRIMARY KEY,
	snapshot     JSONB NOT NULL,
	taken_at     TIMESTAMPTZ NOT NULL
)`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// The snapshot is stored as JSONB; decimals keep their exact string form.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the snapshot table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO market_snapshots (event_ticker, snapshot, taken_at)
		 VALUES ($1, $2::JSONB, $3)
		 ON CONFLICT (event_ticker)
		 DO UPDATE SET snapshot = EXCLUDED.snapshot, taken_at = EXCLUDED.taken_at`,
		snap.EventTicker, string(data), snap.TakenAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", snap.EventTicker, err)
	}
	return nil
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, eventTicker string) (*model.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT snapshot::TEXT FROM market_snapshots WHERE event_ticker = $1`, eventTicker).
		Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, eventTicker)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", eventTicker, err)
	}
	return decodeSnapshot(data)
}

func decodeSnapshot(data []byte) (*model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("store: decode snapshot: %w", err)
	}
	return &snap, nil
}
