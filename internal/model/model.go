// Package model defines the core domain types shared across the desk engine.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is a contract side of a binary market.
type Side string

const (
	SideYes  Side = "YES"
	SideNo   Side = "NO"
	SideNone Side = ""
)

// Action is the direction of an order.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// Quote is one tradable market as the exchange reports it. Prices are
// probabilities in [0, 1].
type Quote struct {
	Ticker    string          `json:"market_ticker"`
	Label     string          `json:"team"`
	YesBid    decimal.Decimal `json:"yes_bid"`
	YesAsk    decimal.Decimal `json:"yes_ask"`
	NoBid     decimal.Decimal `json:"no_bid"`
	NoAsk     decimal.Decimal `json:"no_ask"`
	LastPrice decimal.Decimal `json:"last_price"`
}

// EffectiveQuote is a Quote with the taker fee and fee-adjusted price of
// each side. Built once per refresh, never mutated.
type EffectiveQuote struct {
	Quote

	FeeYesBid decimal.Decimal `json:"fee_yes_bid"`
	FeeYesAsk decimal.Decimal `json:"fee_yes_ask"`
	FeeNoBid  decimal.Decimal `json:"fee_no_bid"`
	FeeNoAsk  decimal.Decimal `json:"fee_no_ask"`

	YesBidEffective decimal.Decimal `json:"yes_bid_effective"`
	YesAskEffective decimal.Decimal `json:"yes_ask_effective"`
	NoBidEffective  decimal.Decimal `json:"no_bid_effective"`
	NoAskEffective  decimal.Decimal `json:"no_ask_effective"`
}

// AskEffective returns the effective ask for side.
func (q EffectiveQuote) AskEffective(side Side) decimal.Decimal {
	if side == SideNo {
		return q.NoAskEffective
	}
	return q.YesAskEffective
}

// BidEffective returns the effective bid for side.
func (q EffectiveQuote) BidEffective(side Side) decimal.Decimal {
	if side == SideNo {
		return q.NoBidEffective
	}
	return q.YesBidEffective
}

// NormalizedPosition is one market's net exposure in YES terms. NetYes > 0
// is net long YES, NetYes < 0 net long NO.
type NormalizedPosition struct {
	Ticker         string          `json:"ticker"`
	NetYes         int64           `json:"net_yes_position"`
	AvgCost        decimal.Decimal `json:"avg_share_price"`
	FeesPaid       decimal.Decimal `json:"fees_paid_dollars"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl_dollars"`
	MarketExposure decimal.Decimal `json:"market_exposure_dollars"`
	TotalTraded    decimal.Decimal `json:"total_traded_dollars"`
}

// ValuedPosition is a NormalizedPosition marked to the current quotes.
type ValuedPosition struct {
	NormalizedPosition

	SideToSell       Side            `json:"side_to_sell"`
	ExitPrice        decimal.Decimal `json:"current_net_value_per_share"`
	LiquidationValue decimal.Decimal `json:"liquidation_value"`
	ExitFee          decimal.Decimal `json:"fee_component_dollars"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl_dollars"`
}

// RestingOrder summarizes one of our orders waiting in the book.
type RestingOrder struct {
	OrderID       string          `json:"order_id"`
	Ticker        string          `json:"ticker"`
	Side          string          `json:"side"`
	Action        string          `json:"action"`
	Type          string          `json:"type"`
	Price         decimal.Decimal `json:"price"`
	QueuePosition *int64          `json:"queue_position"`
	Remaining     *int64          `json:"remaining"`
	Created       string          `json:"created"`
	LastUpdate    string          `json:"last_update"`
}

// Balance is the account balance in dollars.
type Balance struct {
	Balance        decimal.Decimal  `json:"balance"`
	PortfolioValue *decimal.Decimal `json:"portfolio_value,omitempty"`
}

// Snapshot is an immutable view of market state. A new Snapshot replaces
// the current one as a whole; fields are never updated in place.
type Snapshot struct {
	EventTicker      string                    `json:"event_ticker"`
	Quotes           map[string]EffectiveQuote `json:"quotes"`
	Positions        []ValuedPosition          `json:"positions"`
	RestingOrders    []RestingOrder            `json:"resting_orders"`
	Balance          *Balance                  `json:"balance,omitempty"`
	QuotesUpdatedAt  time.Time                 `json:"quotes_updated_at"`
	RestingUpdatedAt time.Time                 `json:"resting_updated_at"`
	TakenAt          time.Time                 `json:"taken_at"`
}

// Quote returns the effective quote for ticker.
func (s *Snapshot) Quote(ticker string) (EffectiveQuote, bool) {
	if s == nil {
		return EffectiveQuote{}, false
	}
	q, ok := s.Quotes[ticker]
	return q, ok
}

// Position returns the valued position for ticker.
func (s *Snapshot) Position(ticker string) (ValuedPosition, bool) {
	if s == nil {
		return ValuedPosition{}, false
	}
	for _, p := range s.Positions {
		if p.Ticker == ticker {
			return p, true
		}
	}
	return ValuedPosition{}, false
}

// Event log categories.
const (
	CategoryInfo        = "INFO"
	CategoryError       = "ERROR"
	CategoryTradeResult = "TRADE_RESULT"
	CategoryOrderCancel = "ORDER_CANCEL"
)

// Event is one entry of the recent-activity log.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Category  string         `json:"type"`
	Text      string         `json:"text"`
	Details   map[string]any `json:"details"`
}

// Order outcomes.
const (
	OutcomeExecuted = "executed"
	OutcomeCanceled = "canceled"
	OutcomeRejected = "rejected"
)

// Execution types.
const (
	ExecutionTaker = "TAKER"
	ExecutionMaker = "MAKER"
)

// OrderResult is the classified outcome of one order submission.
type OrderResult struct {
	Outcome       string          `json:"outcome"`
	Ticker        string          `json:"ticker"`
	Side          Side            `json:"side"`
	Action        Action          `json:"action"`
	Quantity      int64           `json:"quantity"`
	LimitCents    int64           `json:"limit_cents"`
	ClientOrderID string          `json:"client_order_id"`
	OrderID       string          `json:"order_id,omitempty"`
	FillCount     int64           `json:"fill_count,omitempty"`
	FillPrice     decimal.Decimal `json:"fill_price"`
	FillCost      decimal.Decimal `json:"fill_cost"`
	Fees          decimal.Decimal `json:"fees"`
	ExecutionType string          `json:"execution_type,omitempty"`
	FilledAt      string          `json:"filled_at,omitempty"`
	Error         string          `json:"error,omitempty"`
}
