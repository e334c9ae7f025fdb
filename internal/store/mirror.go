package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/eventdesk/desk-engine/internal/model"
)

// Mirror saves snapshots to a Store off the refresh path. Only the newest
// pending snapshot is kept; older ones are skipped, since the store only
// holds the latest anyway.
type Mirror struct {
	store   Store
	pending chan *model.Snapshot
	timeout time.Duration
}

// NewMirror creates a mirror writing to st. Call Run to start saving.
func NewMirror(st Store) *Mirror {
	return &Mirror{
		store:   st,
		pending: make(chan *model.Snapshot, 1),
		timeout: 5 * time.Second,
	}
}

// Offer queues snap for saving without blocking, replacing any snapshot
// still waiting.
func (m *Mirror) Offer(snap *model.Snapshot) {
	for {
		select {
		case m.pending <- snap:
			return
		default:
		}
		select {
		case <-m.pending:
		default:
		}
	}
}

// Run saves offered snapshots until ctx is done. Save errors are logged
// and never stop the loop.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-m.pending:
			saveCtx, cancel := context.WithTimeout(ctx, m.timeout)
			if err := m.store.SaveSnapshot(saveCtx, snap); err != nil {
				slog.Warn("snapshot save failed", "event", snap.EventTicker, "err", err)
			}
			cancel()
		}
	}
}
