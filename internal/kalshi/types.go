package kalshi

import (
	"github.com/shopspring/decimal"
)

// Market statuses and order statuses used by the exchange.
const (
	MarketStatusActive = "active"

	OrderStatusResting  = "resting"
	OrderStatusExecuted = "executed"
	OrderStatusCanceled = "canceled"
)

// Market is one entry of GET /markets. Prices are integer cents; a nil
// pointer means the exchange omitted the field.
type Market struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker,omitempty"`
	Status      string `json:"status"`
	YesSubTitle string `json:"yes_sub_title,omitempty"`
	YesBid      *int64 `json:"yes_bid,omitempty"`
	YesAsk      *int64 `json:"yes_ask,omitempty"`
	NoBid       *int64 `json:"no_bid,omitempty"`
	NoAsk       *int64 `json:"no_ask,omitempty"`
	LastPrice   *int64 `json:"last_price,omitempty"`
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
	Cursor  string   `json:"cursor"`
}

// MarketPosition is one entry of the portfolio position ledger. Position is
// already signed in YES terms (positive = long YES, negative = long NO).
// Dollar amounts arrive as decimal strings.
type MarketPosition struct {
	Ticker                string              `json:"ticker"`
	Position              int64               `json:"position"`
	MarketExposureDollars decimal.NullDecimal `json:"market_exposure_dollars"`
	FeesPaidDollars       decimal.NullDecimal `json:"fees_paid_dollars"`
	RealizedPnlDollars    decimal.NullDecimal `json:"realized_pnl_dollars"`
	TotalTradedDollars    decimal.NullDecimal `json:"total_traded_dollars"`
	RestingOrdersCount    *int64              `json:"resting_orders_count,omitempty"`
}

type positionsResponse struct {
	MarketPositions []MarketPosition `json:"market_positions"`
	Cursor          string           `json:"cursor"`
}

// Balance is GET /portfolio/balance, in cents.
type Balance struct {
	Balance        int64  `json:"balance"`
	PortfolioValue *int64 `json:"portfolio_value,omitempty"`
}

// QueuePosition places one of our resting orders in the book queue.
type QueuePosition struct {
	OrderID       string `json:"order_id"`
	MarketTicker  string `json:"market_ticker"`
	QueuePosition *int64 `json:"queue_position,omitempty"`
}

type queuePositionsResponse struct {
	QueuePositions []QueuePosition `json:"queue_positions"`
}

// Order is the exchange's view of one order. Only the fields this service
// reads are declared; absent fields stay at their zero/invalid value.
type Order struct {
	OrderID              string              `json:"order_id"`
	ClientOrderID        string              `json:"client_order_id,omitempty"`
	Ticker               string              `json:"ticker"`
	Side                 string              `json:"side"`
	Action               string              `json:"action"`
	Type                 string              `json:"type"`
	Status               string              `json:"status"`
	YesPriceDollars      decimal.NullDecimal `json:"yes_price_dollars"`
	NoPriceDollars       decimal.NullDecimal `json:"no_price_dollars"`
	FillCount            *int64              `json:"fill_count,omitempty"`
	RemainingCount       *int64              `json:"remaining_count,omitempty"`
	TakerFillCostDollars decimal.NullDecimal `json:"taker_fill_cost_dollars"`
	MakerFillCostDollars decimal.NullDecimal `json:"maker_fill_cost_dollars"`
	TakerFeesDollars     decimal.NullDecimal `json:"taker_fees_dollars"`
	MakerFeesDollars     decimal.NullDecimal `json:"maker_fees_dollars"`
	CreatedTime          string              `json:"created_time,omitempty"`
	LastUpdateTime       string              `json:"last_update_time,omitempty"`
}

// SidePrice returns the order's price field for its own side.
func (o *Order) SidePrice() (decimal.Decimal, bool) {
	if o.Side == "no" && o.NoPriceDollars.Valid {
		return o.NoPriceDollars.Decimal, true
	}
	if o.YesPriceDollars.Valid {
		return o.YesPriceDollars.Decimal, true
	}
	if o.NoPriceDollars.Valid {
		return o.NoPriceDollars.Decimal, true
	}
	return decimal.Zero, false
}

type orderResponse struct {
	Order *Order `json:"order"`
}

// CreateOrderRequest is the body of POST /portfolio/orders. Exactly one of
// YesPrice / NoPrice is set, in cents.
type CreateOrderRequest struct {
	Ticker        string `json:"ticker"`
	Action        string `json:"action"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Count         int64  `json:"count"`
	ClientOrderID string `json:"client_order_id"`
	YesPrice      *int64 `json:"yes_price,omitempty"`
	NoPrice       *int64 `json:"no_price,omitempty"`
}

// CancelOrderResponse is the body of DELETE /portfolio/orders/{id}.
type CancelOrderResponse struct {
	Order     *Order `json:"order"`
	ReducedBy int64  `json:"reduced_by"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// Value returns d or zero when the field was absent.
func Value(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
