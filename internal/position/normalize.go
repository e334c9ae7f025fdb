// Package position converts the exchange's position ledger into signed
// YES-equivalent exposure and marks it to the current fee-adjusted quotes.
//
// The ledger is trusted as the source of truth: nothing is replayed from
// fills. Every refresh recomputes positions wholesale.
package position

import (
	"github.com/shopspring/decimal"

	"github.com/eventdesk/desk-engine/internal/kalshi"
	"github.com/eventdesk/desk-engine/internal/model"
)

const (
	// CostScale is the precision of the average cost per contract.
	CostScale int32 = 4
	// ValueScale is the precision of liquidation values (cents).
	ValueScale int32 = 2
	// FeeScale is the precision of fee amounts.
	FeeScale int32 = 4
)

// Normalize reframes ledger entries as NormalizedPositions. The exchange's
// signed position is already YES-equivalent and passes through; the average
// cost is exposure / |position|. Entries without a ticker are skipped. The
// result is never nil.
func Normalize(ledger []kalshi.MarketPosition) []model.NormalizedPosition {
	out := make([]model.NormalizedPosition, 0, len(ledger))

	for _, mp := range ledger {
		if mp.Ticker == "" {
			continue
		}

		exposure := kalshi.Value(mp.MarketExposureDollars)
		out = append(out, model.NormalizedPosition{
			Ticker:         mp.Ticker,
			NetYes:         mp.Position,
			AvgCost:        AverageCost(exposure, mp.Position),
			FeesPaid:       kalshi.Value(mp.FeesPaidDollars),
			RealizedPnL:    kalshi.Value(mp.RealizedPnlDollars),
			MarketExposure: exposure,
			TotalTraded:    kalshi.Value(mp.TotalTradedDollars),
		})
	}

	return out
}

// AverageCost is exposure per contract at 4dp, or zero for a flat position.
func AverageCost(exposure decimal.Decimal, count int64) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return exposure.Div(decimal.NewFromInt(abs(count))).Round(CostScale)
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
