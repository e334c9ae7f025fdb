// Package correlation implements position limits that account for the
// correlation between markets of the same event.
//
// The outcomes of one event are mutually exclusive, so a desk long YES on
// several of them carries one concentrated bet. Besides the per-market cap,
// the limiter caps the aggregate absolute YES-equivalent exposure across
// every market that shares an event ticker.
package correlation

import (
	"errors"
	"fmt"

	"github.com/eventdesk/desk-engine/internal/contract"
)

var (
	// ErrPerMarketLimitExceeded is returned when a trade would push a single
	// market's net position beyond the per-market maximum.
	ErrPerMarketLimitExceeded = errors.New("correlation: per-market position limit exceeded")

	// ErrEventLimitExceeded is returned when a trade would push the
	// aggregate exposure across the markets of one event beyond the event
	// maximum.
	ErrEventLimitExceeded = errors.New("correlation: event exposure limit exceeded")
)

// PositionLimiter enforces position limits in contracts. A zero limit
// disables that check.
type PositionLimiter struct {
	// MaxPerMarket is the maximum absolute net YES-equivalent position in
	// any single market.
	MaxPerMarket int64

	// MaxPerEvent is the maximum sum of absolute net positions across all
	// markets of one event.
	MaxPerEvent int64
}

// NewPositionLimiter creates a limiter. Negative limits are treated as 0.
func NewPositionLimiter(maxPerMarket, maxPerEvent int64) *PositionLimiter {
	return &PositionLimiter{
		MaxPerMarket: max(maxPerMarket, 0),
		MaxPerEvent:  max(maxPerEvent, 0),
	}
}

// Enabled reports whether any limit is set.
func (l *PositionLimiter) Enabled() bool {
	return l != nil && (l.MaxPerMarket > 0 || l.MaxPerEvent > 0)
}

// CheckLimit validates whether a trade respects position limits.
//
// Parameters:
//   - ticker: market ticker being traded
//   - delta: signed change in YES-equivalent position (+YES / -NO direction)
//   - existing: market ticker → current net YES-equivalent position
//
// Trades that reduce exposure are always allowed, so a desk already over a
// lowered limit can still unwind.
func (l *PositionLimiter) CheckLimit(ticker string, delta int64, existing map[string]int64) error {
	if !l.Enabled() || delta == 0 {
		return nil
	}

	current := existing[ticker]
	next := current + delta
	if abs(next) <= abs(current) {
		return nil
	}

	// 1. Per-market limit.
	if l.MaxPerMarket > 0 && abs(next) > l.MaxPerMarket {
		return fmt.Errorf("%w: %s would reach %d (max %d)",
			ErrPerMarketLimitExceeded, ticker, next, l.MaxPerMarket)
	}

	// 2. Event exposure: sum |position| across markets of the same event.
	if l.MaxPerEvent > 0 {
		event := contract.EventOf(ticker)
		total := abs(next)
		for t, pos := range existing {
			if t == ticker {
				continue // already counted via next above
			}
			if contract.EventOf(t) == event {
				total += abs(pos)
			}
		}
		if total > l.MaxPerEvent {
			return fmt.Errorf("%w: %s would reach %d (max %d)",
				ErrEventLimitExceeded, event, total, l.MaxPerEvent)
		}
	}

	return nil
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
