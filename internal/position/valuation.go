package position

import (
	"github.com/shopspring/decimal"

	"github.com/eventdesk/desk-engine/internal/model"
)

// Value marks each position to the quote table. It is a left join: a
// position whose market has no quote is still returned, with zero value.
// The result is never nil.
func Value(positions []model.NormalizedPosition, quotes map[string]model.EffectiveQuote) []model.ValuedPosition {
	out := make([]model.ValuedPosition, 0, len(positions))
	for _, p := range positions {
		q, ok := quotes[p.Ticker]
		out = append(out, Liquidate(p, q, ok))
	}
	return out
}

// Liquidate values closing one position against its quote.
//
//	NetYes > 0: sell YES at the effective yes bid
//	NetYes < 0: sell NO at the effective no bid
//	NetYes = 0: nothing to sell
func Liquidate(p model.NormalizedPosition, q model.EffectiveQuote, quoted bool) model.ValuedPosition {
	v := model.ValuedPosition{
		NormalizedPosition: p,
		SideToSell:         model.SideNone,
		ExitPrice:          decimal.Zero,
		LiquidationValue:   decimal.Zero,
		ExitFee:            decimal.Zero,
	}

	var exit, unitFee decimal.Decimal
	switch {
	case p.NetYes > 0:
		v.SideToSell = model.SideYes
		exit, unitFee = q.YesBidEffective, q.FeeYesBid
	case p.NetYes < 0:
		v.SideToSell = model.SideNo
		exit, unitFee = q.NoBidEffective, q.FeeNoBid
	default:
		v.UnrealizedPnL = p.MarketExposure.Neg()
		return v
	}

	if quoted {
		count := decimal.NewFromInt(abs(p.NetYes))
		v.ExitPrice = exit.Round(ValueScale)
		v.LiquidationValue = exit.Mul(count).Round(ValueScale)
		v.ExitFee = unitFee.Mul(count).Round(FeeScale)
	}
	v.UnrealizedPnL = v.LiquidationValue.Sub(p.MarketExposure)
	return v
}
