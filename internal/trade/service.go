// Package trade prices and submits orders against the current market state
// snapshot, cancels resting orders, and serves the desk's HTTP and
// WebSocket API.
//
// All monetary values use shopspring/decimal, never float64 for money.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eventdesk/desk-engine/internal/contract"
	"github.com/eventdesk/desk-engine/internal/correlation"
	"github.com/eventdesk/desk-engine/internal/eventlog"
	"github.com/eventdesk/desk-engine/internal/fee"
	"github.com/eventdesk/desk-engine/internal/kalshi"
	"github.com/eventdesk/desk-engine/internal/marketstate"
	"github.com/eventdesk/desk-engine/internal/metrics"
	"github.com/eventdesk/desk-engine/internal/model"
)

var (
	// ErrStaleOrMissingQuote is returned when the current snapshot has no
	// quote for the market, or its quotes are older than the max quote age.
	ErrStaleOrMissingQuote = errors.New("trade: stale or missing quote")

	// ErrInvalidOrderParameters is returned for an unparseable side, action
	// or quantity, a ticker outside the configured event, or an order that
	// would breach a position limit.
	ErrInvalidOrderParameters = errors.New("trade: invalid order parameters")

	// ErrNotCancelable is returned when the order is not resting on the
	// exchange.
	ErrNotCancelable = errors.New("trade: order not cancelable")
)

// Exchange limit prices are whole cents in [1, 99].
const (
	minPriceCents = 1
	maxPriceCents = 99
)

// Exchange is the subset of the exchange client used to trade.
// Satisfied by *kalshi.Client.
type Exchange interface {
	CreateOrder(ctx context.Context, req kalshi.CreateOrderRequest) (*kalshi.Order, error)
	GetOrder(ctx context.Context, orderID string) (*kalshi.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*kalshi.CancelOrderResponse, error)
}

// Config holds the order gateway settings.
type Config struct {
	// EventTicker restricts orders to markets of one event. Empty allows
	// any well-formed market ticker.
	EventTicker string
	// MaxQuoteAge refuses orders priced from older quotes. 0 disables.
	MaxQuoteAge time.Duration
}

// Service handles order placement, cancellation and status reads. It holds
// no mutable state of its own: prices come from the market state cache and
// every outcome is written to the event log.
type Service struct {
	exchange Exchange
	cache    *marketstate.Cache
	events   *eventlog.Log
	limiter  *correlation.PositionLimiter
	cfg      Config
	now      func() time.Time
	newID    func() string
}

// NewService creates a new trade service.
// Pass nil for limiter to disable position limits.
func NewService(ex Exchange, cache *marketstate.Cache, events *eventlog.Log, limiter *correlation.PositionLimiter, cfg Config) *Service {
	return &Service{
		exchange: ex,
		cache:    cache,
		events:   events,
		limiter:  limiter,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.New().String() },
	}
}

// OrderRequest is one buy or sell instruction. Side and Action are
// case-insensitive.
type OrderRequest struct {
	Ticker   string `json:"ticker"`
	Side     string `json:"side"`
	Action   string `json:"action"`
	Quantity int64  `json:"quantity"`
}

type validOrder struct {
	ticker   string
	side     model.Side
	action   model.Action
	quantity int64
}

// PlaceOrder prices req from one read of the current snapshot, submits it
// as a market order with a fee-adjusted limit and classifies the
// exchange's answer.
//
// Invalid parameters and stale or missing quotes are refused before
// anything is sent and come back as errors. Once the order has been sent,
// every outcome, including a transport failure, is a classified result and
// the error is nil.
func (s *Service) PlaceOrder(ctx context.Context, req OrderRequest) (*model.OrderResult, error) {
	o, err := s.validate(req)
	if err != nil {
		return nil, s.refuse(req, "invalid", err)
	}

	snap := s.cache.Load()
	q, ok := snap.Quote(o.ticker)
	if !ok {
		return nil, s.refuse(req, "missing_quote",
			fmt.Errorf("%w: no cached market data for %s", ErrStaleOrMissingQuote, o.ticker))
	}
	if s.cfg.MaxQuoteAge > 0 {
		if age := marketstate.QuoteAge(snap, s.now()); age > s.cfg.MaxQuoteAge {
			return nil, s.refuse(req, "stale_quote",
				fmt.Errorf("%w: quotes for %s are %s old", ErrStaleOrMissingQuote, o.ticker, age.Round(time.Millisecond)))
		}
	}

	limit := LimitCents(q, o.side, o.action)

	if s.limiter.Enabled() {
		existing := make(map[string]int64, len(snap.Positions))
		for _, p := range snap.Positions {
			existing[p.Ticker] = p.NetYes
		}
		if err := s.limiter.CheckLimit(o.ticker, yesDelta(o), existing); err != nil {
			return nil, s.refuse(req, "position_limit", fmt.Errorf("%w: %w", ErrInvalidOrderParameters, err))
		}
	}

	s.events.Info(
		fmt.Sprintf("REQUESTING %s %s @ %d¢ x%d (%s)", o.action, o.side, limit, o.quantity, o.ticker),
		map[string]any{"ticker": o.ticker, "side": string(o.side), "quantity": o.quantity, "price": limit},
	)

	result := &model.OrderResult{
		Ticker:        o.ticker,
		Side:          o.side,
		Action:        o.action,
		Quantity:      o.quantity,
		LimitCents:    limit,
		ClientOrderID: s.newID(),
	}

	submit := kalshi.CreateOrderRequest{
		Ticker:        o.ticker,
		Action:        strings.ToLower(string(o.action)),
		Side:          strings.ToLower(string(o.side)),
		Type:          "market",
		Count:         o.quantity,
		ClientOrderID: result.ClientOrderID,
	}
	if o.side == model.SideYes {
		submit.YesPrice = &limit
	} else {
		submit.NoPrice = &limit
	}

	start := time.Now()
	order, err := s.exchange.CreateOrder(ctx, submit)
	metrics.OrderLatency.WithLabelValues(string(o.action)).Observe(time.Since(start).Seconds())

	Classify(result, order, err)

	s.events.Add(model.CategoryTradeResult, Describe(result), map[string]any{
		"ticker":   result.Ticker,
		"outcome":  result.Outcome,
		"order_id": result.OrderID,
	})
	metrics.OrdersTotal.WithLabelValues(string(o.action), string(o.side), result.Outcome).Inc()

	slog.Info("order placed",
		"ticker", result.Ticker,
		"action", result.Action,
		"side", result.Side,
		"qty", result.Quantity,
		"limit_cents", result.LimitCents,
		"outcome", result.Outcome,
		"order_id", result.OrderID,
		"client_order_id", result.ClientOrderID,
	)
	return result, nil
}

// LimitCents is the whole-cent limit for an order on side: the effective
// ask rounded up for a buy, the effective bid rounded down for a sell,
// clamped to the exchange's price range.
func LimitCents(q model.EffectiveQuote, side model.Side, action model.Action) int64 {
	var cents int64
	if action == model.ActionBuy {
		cents = fee.AskCents(q.AskEffective(side))
	} else {
		cents = fee.BidCents(q.BidEffective(side))
	}
	return min(max(cents, minPriceCents), maxPriceCents)
}

// yesDelta is the order's signed change to the YES-equivalent position.
func yesDelta(o validOrder) int64 {
	d := o.quantity
	if o.side == model.SideNo {
		d = -d
	}
	if o.action == model.ActionSell {
		d = -d
	}
	return d
}

func (s *Service) validate(req OrderRequest) (validOrder, error) {
	var o validOrder

	switch strings.ToLower(strings.TrimSpace(req.Side)) {
	case "yes":
		o.side = model.SideYes
	case "no":
		o.side = model.SideNo
	default:
		return o, fmt.Errorf("%w: side must be yes or no, got %q", ErrInvalidOrderParameters, req.Side)
	}

	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "buy":
		o.action = model.ActionBuy
	case "sell":
		o.action = model.ActionSell
	default:
		return o, fmt.Errorf("%w: action must be buy or sell, got %q", ErrInvalidOrderParameters, req.Action)
	}

	if req.Quantity < 1 {
		return o, fmt.Errorf("%w: quantity must be at least 1, got %d", ErrInvalidOrderParameters, req.Quantity)
	}
	o.quantity = req.Quantity

	var c *contract.Contract
	var err error
	if s.cfg.EventTicker != "" {
		c, err = contract.ParseMarketOf(req.Ticker, s.cfg.EventTicker)
	} else {
		c, err = contract.ParseTicker(req.Ticker)
	}
	if err != nil {
		return o, fmt.Errorf("%w: %w", ErrInvalidOrderParameters, err)
	}
	o.ticker = c.Ticker

	return o, nil
}

// refuse records an order refused before submission and returns err.
func (s *Service) refuse(req OrderRequest, reason string, err error) error {
	metrics.OrderRefusals.WithLabelValues(reason).Inc()
	s.events.Error(
		fmt.Sprintf("%s %s failed for %s: %v", strings.ToUpper(req.Action), strings.ToUpper(req.Side), req.Ticker, err),
		map[string]any{"ticker": req.Ticker, "reason": reason},
	)
	slog.Warn("order refused", "ticker", req.Ticker, "reason", reason, "err", err)
	return err
}

// CancelOrder cancels orderID if, and only if, the exchange reports it as
// resting. Anything else fails with ErrNotCancelable and no cancellation is
// sent.
func (s *Service) CancelOrder(ctx context.Context, orderID string) (*kalshi.CancelOrderResponse, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("%w: order id is required", ErrInvalidOrderParameters)
	}

	order, err := s.exchange.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.cancelFailed(orderID, err)
	}
	if order.Status != kalshi.OrderStatusResting {
		return nil, s.cancelFailed(orderID,
			fmt.Errorf("%w: order %s has status %q", ErrNotCancelable, orderID, order.Status))
	}

	resp, err := s.exchange.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, s.cancelFailed(orderID, err)
	}

	s.events.Add(model.CategoryOrderCancel,
		fmt.Sprintf("Cancelled order %s (%s)", orderID, order.Ticker),
		map[string]any{"order_id": orderID, "ticker": order.Ticker},
	)
	s.forgetResting(orderID)

	slog.Info("order canceled", "order_id", orderID, "ticker", order.Ticker, "reduced_by", resp.ReducedBy)
	return resp, nil
}

func (s *Service) cancelFailed(orderID string, err error) error {
	s.events.Error(fmt.Sprintf("Cancel failed for %s: %v", orderID, err), map[string]any{"order_id": orderID})
	slog.Warn("cancel failed", "order_id", orderID, "err", err)
	return err
}

// forgetResting drops a canceled order from the cached resting list so it
// disappears before the next resting cycle.
func (s *Service) forgetResting(orderID string) {
	s.cache.Update(func(prev *model.Snapshot) *model.Snapshot {
		if prev == nil {
			return nil
		}
		kept := make([]model.RestingOrder, 0, len(prev.RestingOrders))
		for _, ro := range prev.RestingOrders {
			if ro.OrderID != orderID {
				kept = append(kept, ro)
			}
		}
		if len(kept) == len(prev.RestingOrders) {
			return nil
		}
		next := *prev
		next.RestingOrders = kept
		return &next
	})
}

// StatusView is the desk status report.
type StatusView struct {
	Markets   []model.EffectiveQuote `json:"markets"`
	Positions []model.ValuedPosition `json:"positions"`
	Messages  []model.Event          `json:"messages"`
	LastPull  *time.Time             `json:"last_pull"`
	UserInfo  *model.Balance         `json:"user_info"`
}

// Status reports the current snapshot and the recent event log. Markets
// are sorted by ticker.
func (s *Service) Status() StatusView {
	snap := s.cache.Load()
	view := StatusView{
		Markets:   []model.EffectiveQuote{},
		Positions: []model.ValuedPosition{},
		Messages:  s.events.Recent(eventlog.DefaultCapacity),
	}
	if snap == nil {
		return view
	}

	for _, q := range snap.Quotes {
		view.Markets = append(view.Markets, q)
	}
	sort.Slice(view.Markets, func(i, j int) bool { return view.Markets[i].Ticker < view.Markets[j].Ticker })

	if snap.Positions != nil {
		view.Positions = snap.Positions
	}
	if !snap.QuotesUpdatedAt.IsZero() {
		at := snap.QuotesUpdatedAt
		view.LastPull = &at
	}
	view.UserInfo = snap.Balance
	return view
}

// RestingOrders returns the cached resting orders. Never nil.
func (s *Service) RestingOrders() []model.RestingOrder {
	snap := s.cache.Load()
	if snap == nil || snap.RestingOrders == nil {
		return []model.RestingOrder{}
	}
	return snap.RestingOrders
}
