package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func key(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

// newTestClient starts a server that verifies request signatures before
// delegating to handler.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	k := key(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts := r.Header.Get(HeaderAccessTimestamp)
		sig, err := base64.StdEncoding.DecodeString(r.Header.Get(HeaderAccessSignature))
		if err != nil || r.Header.Get(HeaderAccessKey) != "key-1" {
			http.Error(w, `{"error":{"code":"unauthorized","message":"bad auth"}}`, http.StatusUnauthorized)
			return
		}
		digest := sha256.Sum256([]byte(ts + r.Method + r.URL.Path))
		if err := rsa.VerifyPSS(&k.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
			SaltLength: rsa.PSSSaltLengthEqualsHash,
		}); err != nil {
			http.Error(w, `{"error":{"code":"unauthorized","message":"bad signature"}}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	fixed := time.UnixMilli(1760000000000)
	return NewClient(srv.URL, NewSigner("key-1", k), WithClock(func() time.Time { return fixed }))
}

func TestGetMarkets_DecodesOptionalPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/markets", r.URL.Path)
		assert.Equal(t, "KXNFLGAME-25OCT12CLEPIT", r.URL.Query().Get("event_ticker"))
		io.WriteString(w, `{"markets":[
			{"ticker":"KXNFLGAME-25OCT12CLEPIT-CLE","status":"active","yes_bid":40,"yes_ask":42,"no_bid":58,"no_ask":60,"last_price":41,"yes_sub_title":"Cleveland"},
			{"ticker":"KXNFLGAME-25OCT12CLEPIT-PIT","status":"active","yes_bid":58}
		],"cursor":""}`)
	})

	markets, err := c.GetMarkets(context.Background(), "KXNFLGAME-25OCT12CLEPIT")
	require.NoError(t, err)
	require.Len(t, markets, 2)

	assert.Equal(t, "Cleveland", markets[0].YesSubTitle)
	require.NotNil(t, markets[0].YesAsk)
	assert.EqualValues(t, 42, *markets[0].YesAsk)
	assert.Nil(t, markets[1].YesAsk)
	assert.Nil(t, markets[1].LastPrice)
}

func TestGetMarkets_FollowsCursor(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("cursor") == "" {
			io.WriteString(w, `{"markets":[{"ticker":"A","status":"active"}],"cursor":"next"}`)
			return
		}
		io.WriteString(w, `{"markets":[{"ticker":"B","status":"active"}],"cursor":""}`)
	})

	markets, err := c.GetMarkets(context.Background(), "EV")
	require.NoError(t, err)
	assert.Len(t, markets, 2)
	assert.Equal(t, 2, calls)
}

func TestGetPositions_DecodesDollarStrings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/trade-api/v2/portfolio/positions", r.URL.Path)
		io.WriteString(w, `{"market_positions":[
			{"ticker":"EV-A","position":-7,"market_exposure_dollars":"4.2000","fees_paid_dollars":"0.1200","realized_pnl_dollars":"-0.5000","total_traded_dollars":"9.0000"},
			{"ticker":"EV-B","position":0}
		]}`)
	})

	positions, err := c.GetPositions(context.Background(), "EV")
	require.NoError(t, err)
	require.Len(t, positions, 2)

	p := positions[0]
	assert.EqualValues(t, -7, p.Position)
	assert.True(t, p.MarketExposureDollars.Valid)
	assert.True(t, p.MarketExposureDollars.Decimal.Equal(decimal.RequireFromString("4.2")))
	assert.True(t, p.RealizedPnlDollars.Decimal.Equal(decimal.RequireFromString("-0.5")))
	assert.False(t, positions[1].FeesPaidDollars.Valid)
}

func TestGetQueuePositions_NullIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"queue_positions":null}`)
	})

	qp, err := c.GetQueuePositions(context.Background(), "EV")
	require.NoError(t, err)
	assert.NotNil(t, qp)
	assert.Empty(t, qp)
}

func TestCreateOrder_SendsBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req CreateOrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "buy", req.Action)
		assert.Equal(t, "yes", req.Side)
		require.NotNil(t, req.YesPrice)
		assert.EqualValues(t, 62, *req.YesPrice)
		assert.Nil(t, req.NoPrice)

		io.WriteString(w, `{"order":{"order_id":"o-1","status":"executed","side":"yes","fill_count":10,
			"taker_fill_cost_dollars":"6.1000","taker_fees_dollars":"0.1700","yes_price_dollars":"0.6200"}}`)
	})

	price := int64(62)
	order, err := c.CreateOrder(context.Background(), CreateOrderRequest{
		Ticker: "EV-A", Action: "buy", Side: "yes", Type: "market", Count: 10,
		ClientOrderID: "c-1", YesPrice: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, OrderStatusExecuted, order.Status)
	p, ok := order.SidePrice()
	assert.True(t, ok)
	assert.True(t, p.Equal(decimal.RequireFromString("0.62")))
}

func TestDo_NonSuccessIsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"code":"insufficient_balance","message":"not enough funds"}}`)
	})

	_, err := c.GetBalance(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)
	assert.Contains(t, te.Error(), "not enough funds")
}

func TestDo_MalformedBodyIsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"balance":`)
	})

	_, err := c.GetBalance(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestGetOrder_MissingOrderIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	})

	_, err := c.GetOrder(context.Background(), "o-1")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestParsePrivateKey_PKCS1AndPKCS8(t *testing.T) {
	k := key(t)

	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k)})
	got, err := ParsePrivateKey(pkcs1)
	require.NoError(t, err)
	assert.True(t, got.Equal(k))

	der, err := x509.MarshalPKCS8PrivateKey(k)
	require.NoError(t, err)
	pkcs8 := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	got, err = ParsePrivateKey(pkcs8)
	require.NoError(t, err)
	assert.True(t, got.Equal(k))

	_, err = ParsePrivateKey([]byte("not pem"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBaseURLFor(t *testing.T) {
	assert.Equal(t, ProdBaseURL, BaseURLFor("prod"))
	assert.Equal(t, DemoBaseURL, BaseURLFor("DEMO"))
	assert.Equal(t, DemoBaseURL, BaseURLFor(""))
}
