// Package quote turns the exchange's market listing into a table of
// fee-adjusted quotes keyed by market ticker.
package quote

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/eventdesk/desk-engine/internal/fee"
	"github.com/eventdesk/desk-engine/internal/kalshi"
	"github.com/eventdesk/desk-engine/internal/model"
)

// Build computes an EffectiveQuote for every active market. Inactive
// markets are dropped. A market missing any bid/ask is skipped so it reads
// as "no quote" downstream; a missing last price or label defaults to zero
// or empty. The result is never nil.
func Build(markets []kalshi.Market) map[string]model.EffectiveQuote {
	quotes := make(map[string]model.EffectiveQuote, len(markets))

	for _, m := range markets {
		if m.Status != kalshi.MarketStatusActive || m.Ticker == "" {
			continue
		}
		if m.YesBid == nil || m.YesAsk == nil || m.NoBid == nil || m.NoAsk == nil {
			slog.Debug("skipping market with incomplete quote", "ticker", m.Ticker)
			continue
		}

		q := model.Quote{
			Ticker:    m.Ticker,
			Label:     m.YesSubTitle,
			YesBid:    fee.FromCents(*m.YesBid),
			YesAsk:    fee.FromCents(*m.YesAsk),
			NoBid:     fee.FromCents(*m.NoBid),
			NoAsk:     fee.FromCents(*m.NoAsk),
			LastPrice: decimal.Zero,
		}
		if m.LastPrice != nil {
			q.LastPrice = fee.FromCents(*m.LastPrice)
		}

		quotes[m.Ticker] = Effective(q)
	}

	return quotes
}

// Effective applies the fee model to every side of q.
func Effective(q model.Quote) model.EffectiveQuote {
	return model.EffectiveQuote{
		Quote: q,

		FeeYesBid: fee.Fee(q.YesBid),
		FeeYesAsk: fee.Fee(q.YesAsk),
		FeeNoBid:  fee.Fee(q.NoBid),
		FeeNoAsk:  fee.Fee(q.NoAsk),

		YesBidEffective: fee.EffectiveBid(q.YesBid),
		YesAskEffective: fee.EffectiveAsk(q.YesAsk),
		NoBidEffective:  fee.EffectiveBid(q.NoBid),
		NoAskEffective:  fee.EffectiveAsk(q.NoAsk),
	}
}
