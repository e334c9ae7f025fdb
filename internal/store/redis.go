package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eventdesk/desk-engine/internal/model"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary store and then refresh the cache; reads check
// Redis first then fall back to the primary.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through ---

func (s *CachedStore) SaveSnapshot(ctx context.Context, snap *model.Snapshot) error {
	if err := s.primary.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	s.cacheSnapshot(ctx, snap)
	return nil
}

// --- Read-through ---

func (s *CachedStore) LoadSnapshot(ctx context.Context, eventTicker string) (*model.Snapshot, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(eventTicker)).Bytes()
	if err == nil {
		if snap, err := decodeSnapshot(data); err == nil {
			return snap, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("redis read failed, falling back to primary", "event", eventTicker, "err", err)
	}

	snap, err := s.primary.LoadSnapshot(ctx, eventTicker)
	if err != nil {
		return nil, err
	}

	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

// --- Cache helpers ---

func (s *CachedStore) cacheSnapshot(ctx context.Context, snap *model.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, snapshotKey(snap.EventTicker), data, s.ttl).Err(); err != nil {
		slog.Warn("redis write failed", "event", snap.EventTicker, "err", err)
	}
}

func snapshotKey(eventTicker string) string { return fmt.Sprintf("snapshot:%s", eventTicker) }
