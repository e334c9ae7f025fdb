// Package kalshi is a small client for the Kalshi trade API v2: the market
// listing, portfolio ledger and order endpoints this service needs, with
// RSA-PSS request signing.
//
// Payloads are decoded into explicit schemas. Optional fields are pointers or
// decimal.NullDecimal so callers can tell "absent" from "zero".
package kalshi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DemoBaseURL = "https://demo-api.kalshi.co"
	ProdBaseURL = "https://api.elections.kalshi.com"

	apiPrefix = "/trade-api/v2"

	// maxPages bounds cursor pagination on list endpoints.
	maxPages = 20
)

// ErrTransport is matched (errors.Is) by every failure to get a usable
// response from the exchange: network errors, non-2xx and bodies that do
// not decode.
var ErrTransport = errors.New("kalshi: transport error")

// TransportError carries the details of a failed exchange call.
type TransportError struct {
	Method     string
	Path       string
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	default:
		return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Message)
	}
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// BaseURLFor maps the ENV setting to an API host. Anything other than
// PROD selects the demo environment.
func BaseURLFor(env string) string {
	if strings.EqualFold(env, "PROD") {
		return ProdBaseURL
	}
	return DemoBaseURL
}

// Client talks to one exchange environment with one API key.
type Client struct {
	http   *resty.Client
	signer *Signer
	now    func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout (default 10s).
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithClock overrides the clock used for signature timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a client for baseURL. Requests are never retried here:
// orders are not idempotent and the pollers already retry on their own
// interval.
func NewClient(baseURL string, signer *Signer, opts ...Option) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")
	c := &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10*time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "desk-engine/1"),
		signer: signer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMarkets lists every market of an event, following the cursor.
func (c *Client) GetMarkets(ctx context.Context, eventTicker string) ([]Market, error) {
	var all []Market
	cursor := ""
	for page := 0; page < maxPages; page++ {
		query := map[string]string{"event_ticker": eventTicker}
		if cursor != "" {
			query["cursor"] = cursor
		}
		var resp marketsResponse
		if err := c.do(ctx, http.MethodGet, "/markets", query, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Markets...)
		if resp.Cursor == "" || resp.Cursor == cursor {
			break
		}
		cursor = resp.Cursor
	}
	return all, nil
}

// GetPositions returns the authoritative position ledger for an event.
func (c *Client) GetPositions(ctx context.Context, eventTicker string) ([]MarketPosition, error) {
	var all []MarketPosition
	cursor := ""
	for page := 0; page < maxPages; page++ {
		query := map[string]string{"event_ticker": eventTicker}
		if cursor != "" {
			query["cursor"] = cursor
		}
		var resp positionsResponse
		if err := c.do(ctx, http.MethodGet, "/portfolio/positions", query, nil, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.MarketPositions...)
		if resp.Cursor == "" || resp.Cursor == cursor {
			break
		}
		cursor = resp.Cursor
	}
	return all, nil
}

// GetBalance returns the account balance.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var resp Balance
	if err := c.do(ctx, http.MethodGet, "/portfolio/balance", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetQueuePositions lists our resting orders' queue positions for an event.
// A null list decodes as empty.
func (c *Client) GetQueuePositions(ctx context.Context, eventTicker string) ([]QueuePosition, error) {
	var resp queuePositionsResponse
	query := map[string]string{"event_ticker": eventTicker}
	if err := c.do(ctx, http.MethodGet, "/portfolio/orders/queue_positions", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.QueuePositions == nil {
		return []QueuePosition{}, nil
	}
	return resp.QueuePositions, nil
}

// GetOrder fetches one order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	path := "/portfolio/orders/" + orderID
	var resp orderResponse
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, &TransportError{Method: http.MethodGet, Path: apiPrefix + path, Message: "response has no order"}
	}
	return resp.Order, nil
}

// CreateOrder submits an order and returns the exchange's order record.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	const path = "/portfolio/orders"
	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, path, nil, req, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, &TransportError{Method: http.MethodPost, Path: apiPrefix + path, Message: "response has no order"}
	}
	return resp.Order, nil
}

// CancelOrder cancels a resting order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*CancelOrderResponse, error) {
	var resp CancelOrderResponse
	if err := c.do(ctx, http.MethodDelete, "/portfolio/orders/"+orderID, nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do signs and executes one request and decodes a 2xx body into out.
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out any) error {
	fullPath := apiPrefix + path

	headers, err := c.signer.Headers(c.now(), method, fullPath)
	if err != nil {
		return &TransportError{Method: method, Path: fullPath, Err: err}
	}

	req := c.http.R().SetContext(ctx).SetHeaders(headers)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, fullPath)
	if err != nil {
		return &TransportError{Method: method, Path: fullPath, Err: err}
	}
	if !resp.IsSuccess() {
		return &TransportError{
			Method:     method,
			Path:       fullPath,
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.Body()),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &TransportError{Method: method, Path: fullPath, Message: "malformed response", Err: err}
	}
	return nil
}

// errorMessage extracts the exchange's error message, falling back to the
// raw body.
func errorMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		if e.Error.Code != "" {
			return e.Error.Code + ": " + e.Error.Message
		}
		return e.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response body"
	}
	return msg
}
