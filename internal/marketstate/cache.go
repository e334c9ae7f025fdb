// Package marketstate holds the process-wide view of market state: one
// immutable Snapshot that is replaced as a whole.
//
// Readers load the current snapshot without locking and keep using that
// pointer for the rest of their work, so they always see a complete,
// self-consistent snapshot even while a refresh swaps in the next one.
// Writers are serialized so that the quote cycle and the resting-order
// cycle, which each replace part of the state, never lose the other's
// update.
package marketstate

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eventdesk/desk-engine/internal/model"
)

// Cache owns the current Snapshot.
type Cache struct {
	current atomic.Pointer[model.Snapshot]
	writeMu sync.Mutex
	now     func() time.Time
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{now: func() time.Time { return time.Now().UTC() }}
}

// Load returns the current snapshot, or nil before the first refresh.
// The returned snapshot must not be modified.
func (c *Cache) Load() *model.Snapshot {
	return c.current.Load()
}

// Store replaces the current snapshot unconditionally.
func (c *Cache) Store(s *model.Snapshot) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.current.Store(s)
}

// Update builds the next snapshot from the current one and swaps it in.
// fn receives the current snapshot (possibly nil) and must return a new
// value; returning nil leaves the cache unchanged.
func (c *Cache) Update(fn func(prev *model.Snapshot) *model.Snapshot) *model.Snapshot {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	next := fn(c.current.Load())
	if next == nil {
		return c.current.Load()
	}
	c.current.Store(next)
	return next
}

// MarketUpdate is the payload of one successful quote/position cycle.
type MarketUpdate struct {
	EventTicker string
	Quotes      map[string]model.EffectiveQuote
	Positions   []model.ValuedPosition
	Balance     *model.Balance
}

// ReplaceMarket swaps in a snapshot with new quotes, positions and balance,
// carrying over the current resting orders.
func (c *Cache) ReplaceMarket(u MarketUpdate) *model.Snapshot {
	return c.Update(func(prev *model.Snapshot) *model.Snapshot {
		at := c.now()
		next := &model.Snapshot{
			EventTicker:     u.EventTicker,
			Quotes:          u.Quotes,
			Positions:       u.Positions,
			Balance:         u.Balance,
			RestingOrders:   []model.RestingOrder{},
			QuotesUpdatedAt: at,
			TakenAt:         at,
		}
		if next.Quotes == nil {
			next.Quotes = map[string]model.EffectiveQuote{}
		}
		if next.Positions == nil {
			next.Positions = []model.ValuedPosition{}
		}
		if prev != nil {
			next.RestingOrders = prev.RestingOrders
			next.RestingUpdatedAt = prev.RestingUpdatedAt
			if next.Balance == nil {
				next.Balance = prev.Balance
			}
		}
		return next
	})
}

// ReplaceResting swaps in a snapshot with a new resting-order list,
// carrying over everything else.
func (c *Cache) ReplaceResting(eventTicker string, orders []model.RestingOrder) *model.Snapshot {
	return c.Update(func(prev *model.Snapshot) *model.Snapshot {
		at := c.now()
		if orders == nil {
			orders = []model.RestingOrder{}
		}
		next := &model.Snapshot{
			EventTicker:      eventTicker,
			Quotes:           map[string]model.EffectiveQuote{},
			Positions:        []model.ValuedPosition{},
			RestingOrders:    orders,
			RestingUpdatedAt: at,
			TakenAt:          at,
		}
		if prev != nil {
			next.Quotes = prev.Quotes
			next.Positions = prev.Positions
			next.Balance = prev.Balance
			next.QuotesUpdatedAt = prev.QuotesUpdatedAt
		}
		return next
	})
}

// QuoteAge reports how old the quotes in s are. A snapshot that never had
// quotes is infinitely old.
func QuoteAge(s *model.Snapshot, now time.Time) time.Duration {
	if s == nil || s.QuotesUpdatedAt.IsZero() {
		return time.Duration(1<<63 - 1)
	}
	return now.Sub(s.QuotesUpdatedAt)
}
