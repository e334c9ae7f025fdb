package marketstate

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventdesk/desk-engine/internal/model"
)

func TestCache_EmptyLoadIsNil(t *testing.T) {
	assert.Nil(t, New().Load())
}

func TestReplaceMarket_KeepsRestingOrders(t *testing.T) {
	c := New()
	c.ReplaceResting("EV", []model.RestingOrder{{OrderID: "o-1"}})

	snap := c.ReplaceMarket(MarketUpdate{
		EventTicker: "EV",
		Quotes:      map[string]model.EffectiveQuote{"EV-A": {}},
	})

	require.Len(t, snap.RestingOrders, 1)
	assert.Equal(t, "o-1", snap.RestingOrders[0].OrderID)
	assert.Contains(t, snap.Quotes, "EV-A")
	assert.NotNil(t, snap.Positions)
	assert.False(t, snap.QuotesUpdatedAt.IsZero())
	assert.False(t, snap.RestingUpdatedAt.IsZero())
}

func TestReplaceResting_KeepsQuotesAndPositions(t *testing.T) {
	c := New()
	bal := &model.Balance{Balance: decimal.NewFromInt(12)}
	c.ReplaceMarket(MarketUpdate{
		EventTicker: "EV",
		Quotes:      map[string]model.EffectiveQuote{"EV-A": {}},
		Positions:   []model.ValuedPosition{{NormalizedPosition: model.NormalizedPosition{Ticker: "EV-A", NetYes: 3}}},
		Balance:     bal,
	})
	before := c.Load()

	snap := c.ReplaceResting("EV", nil)

	assert.NotSame(t, before, snap)
	assert.Contains(t, snap.Quotes, "EV-A")
	require.Len(t, snap.Positions, 1)
	assert.Same(t, bal, snap.Balance)
	assert.NotNil(t, snap.RestingOrders)
	assert.Equal(t, before.QuotesUpdatedAt, snap.QuotesUpdatedAt)
}

func TestReplaceMarket_DoesNotMutatePrevious(t *testing.T) {
	c := New()
	first := c.ReplaceMarket(MarketUpdate{Quotes: map[string]model.EffectiveQuote{"EV-A": {}}})
	second := c.ReplaceMarket(MarketUpdate{Quotes: map[string]model.EffectiveQuote{"EV-B": {}}})

	assert.Contains(t, first.Quotes, "EV-A")
	assert.NotContains(t, first.Quotes, "EV-B")
	assert.Same(t, second, c.Load())
}

func TestUpdate_NilKeepsCurrent(t *testing.T) {
	c := New()
	snap := &model.Snapshot{EventTicker: "EV"}
	c.Store(snap)

	got := c.Update(func(*model.Snapshot) *model.Snapshot { return nil })
	assert.Same(t, snap, got)
	assert.Same(t, snap, c.Load())
}

func TestQuoteAge(t *testing.T) {
	now := time.Now()
	assert.Greater(t, QuoteAge(nil, now), 24*time.Hour)
	assert.Greater(t, QuoteAge(&model.Snapshot{}, now), 24*time.Hour)
	assert.Equal(t, 2*time.Second, QuoteAge(&model.Snapshot{QuotesUpdatedAt: now.Add(-2 * time.Second)}, now))
}

// TestCache_ReadersNeverSeeMixedSnapshots swaps snapshots whose quotes and
// positions are tagged with the same generation while readers check that
// every snapshot they load carries one generation throughout.
func TestCache_ReadersNeverSeeMixedSnapshots(t *testing.T) {
	c := New()
	gen := func(n int) MarketUpdate {
		tag := strconv.Itoa(n)
		return MarketUpdate{
			EventTicker: "EV",
			Quotes:      map[string]model.EffectiveQuote{"EV-A": {Quote: model.Quote{Label: tag}}},
			Positions: []model.ValuedPosition{{
				NormalizedPosition: model.NormalizedPosition{Ticker: tag},
			}},
		}
	}
	c.ReplaceMarket(gen(0))

	var stop atomic.Bool
	var mixed atomic.Int64
	var wg sync.WaitGroup

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				s := c.Load()
				if s.Quotes["EV-A"].Label != s.Positions[0].Ticker {
					mixed.Add(1)
				}
			}
		}()
	}

	// Resting-order cycle interleaving with the quote cycle.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for !stop.Load() {
			c.ReplaceResting("EV", []model.RestingOrder{{OrderID: "o"}})
		}
	}()

	for i := 1; i <= 2000; i++ {
		c.ReplaceMarket(gen(i))
	}
	stop.Store(true)
	wg.Wait()

	assert.Zero(t, mixed.Load())
	final := c.Load()
	assert.Equal(t, "2000", final.Positions[0].Ticker)
}
