// Package refresh runs the background cycles that keep the market state
// cache current: a fast cycle for quotes, positions and balance, and a
// slower cycle for resting orders.
//
// A cycle either swaps in a complete new snapshot or changes nothing. On
// failure the previous snapshot stays current, an ERROR entry goes to the
// event log, and the cycle runs again after its normal interval. There is
// no backoff and no retry limit; the loops run until their context ends.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/eventdesk/desk-engine/internal/eventlog"
	"github.com/eventdesk/desk-engine/internal/kalshi"
	"github.com/eventdesk/desk-engine/internal/marketstate"
	"github.com/eventdesk/desk-engine/internal/metrics"
	"github.com/eventdesk/desk-engine/internal/model"
	"github.com/eventdesk/desk-engine/internal/position"
	"github.com/eventdesk/desk-engine/internal/quote"
)

// ErrPartialRefresh is matched by every failed cycle. The previous
// snapshot is retained whenever it is returned.
var ErrPartialRefresh = errors.New("refresh: cycle failed, previous snapshot retained")

// CycleError reports which cycle failed and why.
type CycleError struct {
	Cycle string
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("refresh %s: %v", e.Cycle, e.Err)
}

func (e *CycleError) Unwrap() []error { return []error{ErrPartialRefresh, e.Err} }

// Cycle names used in logs and metrics.
const (
	CycleMarket  = "market"
	CycleResting = "resting"
)

// Exchange is the subset of the exchange client the pollers read from.
// Satisfied by *kalshi.Client.
type Exchange interface {
	GetMarkets(ctx context.Context, eventTicker string) ([]kalshi.Market, error)
	GetPositions(ctx context.Context, eventTicker string) ([]kalshi.MarketPosition, error)
	GetBalance(ctx context.Context) (*kalshi.Balance, error)
	GetQueuePositions(ctx context.Context, eventTicker string) ([]kalshi.QueuePosition, error)
	GetOrder(ctx context.Context, orderID string) (*kalshi.Order, error)
}

// Config controls the poll cadence.
type Config struct {
	EventTicker     string
	QuoteInterval   time.Duration // default 500ms
	RestingInterval time.Duration // default 3s
	// MaxOrderLookups bounds concurrent order lookups in the resting cycle.
	MaxOrderLookups int
}

// SnapshotHook is called after every successful market-cycle swap.
type SnapshotHook func(ctx context.Context, snap *model.Snapshot)

// Poller owns both refresh loops.
type Poller struct {
	exchange Exchange
	cache    *marketstate.Cache
	events   *eventlog.Log
	cfg      Config
	hooks    []SnapshotHook
}

// NewPoller creates a poller. Zero intervals fall back to the defaults.
func NewPoller(ex Exchange, cache *marketstate.Cache, events *eventlog.Log, cfg Config) *Poller {
	if cfg.QuoteInterval <= 0 {
		cfg.QuoteInterval = 500 * time.Millisecond
	}
	if cfg.RestingInterval <= 0 {
		cfg.RestingInterval = 3 * time.Second
	}
	if cfg.MaxOrderLookups <= 0 {
		cfg.MaxOrderLookups = 8
	}
	return &Poller{exchange: ex, cache: cache, events: events, cfg: cfg}
}

// OnSnapshot registers a hook run after each successful market cycle.
// Register hooks before Run.
func (p *Poller) OnSnapshot(h SnapshotHook) {
	p.hooks = append(p.hooks, h)
}

// Run starts both cycles and blocks until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	done := make(chan struct{}, 2)
	go func() {
		p.loop(ctx, CycleMarket, p.cfg.QuoteInterval, p.RefreshMarket, "Polling failed")
		done <- struct{}{}
	}()
	go func() {
		p.loop(ctx, CycleResting, p.cfg.RestingInterval, p.RefreshResting, "Resting order polling failed")
		done <- struct{}{}
	}()
	<-done
	<-done
}

// loop runs fn now and then once per interval after each run finishes.
func (p *Poller) loop(ctx context.Context, cycle string, interval time.Duration, fn func(context.Context) error, failPrefix string) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		start := time.Now()
		err := fn(ctx)
		metrics.RefreshDuration.WithLabelValues(cycle).Observe(time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.RefreshCycles.WithLabelValues(cycle, "error").Inc()
			slog.Warn("refresh cycle failed", "cycle", cycle, "err", err)
			cause := err
			var ce *CycleError
			if errors.As(err, &ce) {
				cause = ce.Err
			}
			p.events.Error(fmt.Sprintf("%s: %v", failPrefix, cause), map[string]any{"cycle": cycle})
		} else {
			metrics.RefreshCycles.WithLabelValues(cycle, "ok").Inc()
			metrics.LastRefresh.WithLabelValues(cycle).SetToCurrentTime()
		}

		timer.Reset(interval)
	}
}

// RefreshMarket runs one fast cycle: markets, positions and balance are
// fetched concurrently, then quotes are built, positions normalized and
// valued, and the result swapped in as one snapshot.
func (p *Poller) RefreshMarket(ctx context.Context) error {
	var (
		markets []kalshi.Market
		ledger  []kalshi.MarketPosition
		bal     *kalshi.Balance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		markets, err = p.exchange.GetMarkets(gctx, p.cfg.EventTicker)
		return err
	})
	g.Go(func() (err error) {
		ledger, err = p.exchange.GetPositions(gctx, p.cfg.EventTicker)
		return err
	})
	g.Go(func() (err error) {
		bal, err = p.exchange.GetBalance(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return &CycleError{Cycle: CycleMarket, Err: err}
	}

	quotes := quote.Build(markets)
	valued := position.Value(position.Normalize(ledger), quotes)

	snap := p.cache.ReplaceMarket(marketstate.MarketUpdate{
		EventTicker: p.cfg.EventTicker,
		Quotes:      quotes,
		Positions:   valued,
		Balance:     toBalance(bal),
	})

	metrics.QuotedMarkets.Set(float64(len(quotes)))
	metrics.OpenPositions.Set(float64(countOpen(valued)))

	for _, h := range p.hooks {
		h(ctx, snap)
	}
	return nil
}

// RefreshResting runs one slow cycle: list queue positions, look up each
// order, and keep the ones still resting.
func (p *Poller) RefreshResting(ctx context.Context) error {
	queue, err := p.exchange.GetQueuePositions(ctx, p.cfg.EventTicker)
	if err != nil {
		return &CycleError{Cycle: CycleResting, Err: err}
	}

	lookups := make([]*model.RestingOrder, len(queue))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxOrderLookups)

	for i, qp := range queue {
		if qp.OrderID == "" {
			continue
		}
		i, qp := i, qp
		g.Go(func() error {
			order, err := p.exchange.GetOrder(gctx, qp.OrderID)
			if err != nil {
				return err
			}
			if order.Status != kalshi.OrderStatusResting {
				return nil
			}
			ro := toRestingOrder(qp, order)
			lookups[i] = &ro
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &CycleError{Cycle: CycleResting, Err: err}
	}

	resting := make([]model.RestingOrder, 0, len(lookups))
	for _, ro := range lookups {
		if ro != nil {
			resting = append(resting, *ro)
		}
	}

	p.cache.ReplaceResting(p.cfg.EventTicker, resting)
	metrics.RestingOrders.Set(float64(len(resting)))
	return nil
}

func toBalance(b *kalshi.Balance) *model.Balance {
	if b == nil {
		return nil
	}
	out := &model.Balance{Balance: decimal.New(b.Balance, -2)}
	if b.PortfolioValue != nil {
		pv := decimal.New(*b.PortfolioValue, -2)
		out.PortfolioValue = &pv
	}
	return out
}

func toRestingOrder(qp kalshi.QueuePosition, o *kalshi.Order) model.RestingOrder {
	orderType := strings.ToUpper(o.Type)
	if orderType == "" {
		orderType = "LIMIT"
	}
	ticker := o.Ticker
	if ticker == "" {
		ticker = qp.MarketTicker
	}
	price, _ := o.SidePrice()
	return model.RestingOrder{
		OrderID:       qp.OrderID,
		Ticker:        ticker,
		Side:          strings.ToUpper(o.Side),
		Action:        strings.ToUpper(o.Action),
		Type:          orderType,
		Price:         price,
		QueuePosition: qp.QueuePosition,
		Remaining:     o.RemainingCount,
		Created:       o.CreatedTime,
		LastUpdate:    o.LastUpdateTime,
	}
}

func countOpen(positions []model.ValuedPosition) int {
	n := 0
	for _, p := range positions {
		if p.NetYes != 0 {
			n++
		}
	}
	return n
}
