// Package fee implements the exchange taker fee schedule and the
// fee-adjusted ("effective") prices derived from it.
//
// The fee on a contract traded at probability p is
//
//	fee(p) = K * p * (1 - p),  K = 0.07
//
// which peaks at 0.0175 for p = 0.5 and vanishes at 0 and 1.
//
// No rounding happens inside the formula. Prices are only rounded when they
// have to be expressed in whole cents for the exchange, and that rounding is
// directional: asks round up, bids round down, so a quoted price is never
// better than what the exchange will honor.
//
// All monetary values use shopspring/decimal, never float64 for money.
package fee

import (
	"github.com/shopspring/decimal"
)

var (
	// K is the taker fee coefficient.
	K = decimal.NewFromFloat(0.07)

	// MaxFee is the fee at p = 0.5.
	MaxFee = decimal.NewFromFloat(0.0175)

	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Fee returns the per-contract taker fee for a price in [0, 1].
// Out-of-range prices are clamped first so the fee is never negative.
func Fee(price decimal.Decimal) decimal.Decimal {
	p := clamp(price)
	return K.Mul(p).Mul(one.Sub(p))
}

// EffectiveAsk is the all-in cost of lifting an ask: ask + fee(ask).
func EffectiveAsk(ask decimal.Decimal) decimal.Decimal {
	return ask.Add(Fee(ask))
}

// EffectiveBid is what a seller nets when hitting a bid: bid - fee(bid).
func EffectiveBid(bid decimal.Decimal) decimal.Decimal {
	return bid.Sub(Fee(bid))
}

// AskCents converts a buy-side price to whole cents, rounding up.
func AskCents(price decimal.Decimal) int64 {
	return price.Mul(hundred).Ceil().IntPart()
}

// BidCents converts a sell-side price to whole cents, rounding down.
func BidCents(price decimal.Decimal) int64 {
	return price.Mul(hundred).Floor().IntPart()
}

// FromCents converts an integer cent price to a probability.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func clamp(p decimal.Decimal) decimal.Decimal {
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(one) {
		return one
	}
	return p
}
