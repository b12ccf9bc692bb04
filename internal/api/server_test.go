package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bourse/internal/common"
	"bourse/internal/engine"
	"bourse/internal/events"
	"bourse/internal/fees"
	"bourse/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

type testServer struct {
	market *engine.Market
	hub    *events.Hub
	router *gin.Engine
}

func newTestServer(t *testing.T, health HealthFunc) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := events.NewHub()
	market := engine.New(fees.New(fees.DefaultPercent), engine.WithSink(hub))
	_, err := market.RegisterCompany("AAPL", "Apple Inc.", 180, 1_000_000)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	srv := NewServer(market, hub, reg, health)
	return &testServer{market: market, hub: hub, router: srv.Router()}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) trader(t *testing.T, body string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/trader/register", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[common.Trader](t, rec).ID
}

// --- Tests ------------------------------------------------------------------

func TestRegisterAndListCompanies(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/company/register",
		`{"symbol":"MSFT","name":"Microsoft","price":300,"outstanding_shares":1000}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/company/register",
		`{"symbol":"MSFT","name":"Microsoft","price":300,"outstanding_shares":1000}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/market/companies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	companies := decode[[]common.Company](t, rec)
	require.Len(t, companies, 2)
	assert.Equal(t, "AAPL", companies[0].Symbol)
	assert.Equal(t, "MSFT", companies[1].Symbol)
}

func TestTraderLookup(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.trader(t, `{"name":"Jane","cash":150000,"portfolio":{"AAPL":500}}`)

	rec := ts.do(t, http.MethodGet, "/trader/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	trader := decode[common.Trader](t, rec)
	assert.Equal(t, "Jane", trader.Name)
	assert.Equal(t, uint64(500), trader.Holding("AAPL"))

	rec = ts.do(t, http.MethodGet, "/trader/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPlaceOrderStatuses(t *testing.T) {
	ts := newTestServer(t, nil)
	id := ts.trader(t, `{"name":"John","cash":1000}`)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"accepted", `{"trader_id":"` + id + `","symbol":"AAPL","order_type":"buy","price":10,"quantity":5}`, http.StatusOK},
		{"unknown symbol", `{"trader_id":"` + id + `","symbol":"NOPE","order_type":"buy","price":10,"quantity":5}`, http.StatusNotFound},
		{"unknown trader", `{"trader_id":"ghost","symbol":"AAPL","order_type":"buy","price":10,"quantity":5}`, http.StatusNotFound},
		{"bad side", `{"trader_id":"` + id + `","symbol":"AAPL","order_type":"hold","price":10,"quantity":5}`, http.StatusBadRequest},
		{"no funds", `{"trader_id":"` + id + `","symbol":"AAPL","order_type":"buy","price":1000,"quantity":5}`, http.StatusUnprocessableEntity},
		{"no shares", `{"trader_id":"` + id + `","symbol":"AAPL","order_type":"sell","price":10,"quantity":5}`, http.StatusUnprocessableEntity},
		{"malformed", `{"trader_id":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/market/order", tt.body)
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
		})
	}

	rec := ts.do(t, http.MethodGet, "/market/orderbook/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[struct {
		Buy  []common.Order `json:"buy"`
		Sell []common.Order `json:"sell"`
	}](t, rec)
	require.Len(t, snap.Buy, 1)
	assert.Equal(t, id, snap.Buy[0].TraderID)
	assert.Empty(t, snap.Sell)

	rec = ts.do(t, http.MethodGet, "/market/orderbook/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTradesAndPrice(t *testing.T) {
	ts := newTestServer(t, nil)
	buyer := ts.trader(t, `{"name":"John","cash":100000}`)
	seller := ts.trader(t, `{"name":"Jane","cash":0,"portfolio":{"AAPL":500}}`)

	rec := ts.do(t, http.MethodPost, "/market/order",
		`{"trader_id":"`+buyer+`","symbol":"AAPL","order_type":"buy","price":180,"quantity":10}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodPost, "/market/order",
		`{"trader_id":"`+seller+`","symbol":"AAPL","order_type":"sell","price":179,"quantity":10}`)
	require.Equal(t, http.StatusOK, rec.Code)

	ts.market.Match()

	rec = ts.do(t, http.MethodGet, "/market/trades?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	trades := decode[[]common.Trade](t, rec)
	require.Len(t, trades, 1)
	assert.Equal(t, 179.5, trades[0].Price)
	assert.Equal(t, buyer, trades[0].BuyerID)

	rec = ts.do(t, http.MethodGet, "/market/trades?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/market/price/AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 180.0, decode[float64](t, rec))

	rec = ts.do(t, http.MethodGet, "/market/price/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFeeEstimate(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/market/fee-estimate?price=100&quantity=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	estimate := decode[fees.Estimate](t, rec)
	assert.Equal(t, 1000.0, estimate.TradeValue)
	assert.InDelta(t, 1.0, estimate.Fees.BuyerFee, 1e-9)
	assert.InDelta(t, 1001.0, estimate.BuyerTotal, 1e-9)
	assert.InDelta(t, 999.0, estimate.SellerReceives, 1e-9)

	for _, query := range []string{
		"price=abc&quantity=10",
		"price=NaN&quantity=1",
		"price=Inf&quantity=1",
		"price=-Inf&quantity=1",
		"price=1e308&quantity=10",
	} {
		rec = ts.do(t, http.MethodGet, "/market/fee-estimate?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
		assert.Contains(t, rec.Body.String(), "error", query)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	healthy := newTestServer(t, nil)
	rec := healthy.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = healthy.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "bourse_fees_collected_total")

	sick := newTestServer(t, func() error { return errors.New("clock stalled") })
	rec = sick.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "clock stalled")
}

func TestWebsocketReceivesEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	httpSrv := httptest.NewServer(ts.router)
	defer httpSrv.Close()

	url := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.hub.Len() == 1 }, time.Second, time.Millisecond)

	_, err = ts.market.Tick(func(p float64) float64 { return p })
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var update struct {
		Type      string                    `json:"type"`
		Companies map[string]common.Company `json:"companies"`
	}
	require.NoError(t, json.Unmarshal(msg, &update))
	assert.Equal(t, events.TypeMarketUpdate, update.Type)
	assert.Equal(t, 180.0, update.Companies["AAPL"].Price)

	conn.Close()
	assert.Eventually(t, func() bool { return ts.hub.Len() == 0 }, time.Second, time.Millisecond)
}
