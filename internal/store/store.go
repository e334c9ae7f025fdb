// Package store persists the latest market state snapshot per event so a
// restarted process has something to show before its first refresh.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
//
// Only the most recent snapshot is kept; the store is not a history.
package store

import (
	"context"
	"errors"

	"github.com/eventdesk/desk-engine/internal/model"
)

// ErrNotFound is returned by LoadSnapshot when nothing was saved for the
// event.
var ErrNotFound = errors.New("store: snapshot not found")

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// SaveSnapshot replaces the stored snapshot for snap.EventTicker.
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error

	// LoadSnapshot returns the last snapshot saved for eventTicker.
	LoadSnapshot(ctx context.Context, eventTicker string) (*model.Snapshot, error)
}
