package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-desk-go/api"
	"trading-desk-go/instrument"
	"trading-desk-go/ledger"
	"trading-desk-go/marketdata"
	"trading-desk-go/order"
	"trading-desk-go/query"
	"trading-desk-go/reconcile"
)

type stack struct {
	server *api.Server
	book   *order.Book
	quotes *marketdata.StaticSource
	http   *httptest.Server
}

func newStack(t *testing.T) *stack {
	return newStackQuotes(t, nil)
}

// newStackQuotes 可用 wrap 替换服务器看到的行情源（并发场景注入用）
func newStackQuotes(t *testing.T, wrap func(*marketdata.StaticSource) marketdata.QuoteSource) *stack {
	t.Helper()

	registry := instrument.NewRegistry()
	_, err := registry.Register("AAPL", "NASDAQ", instrument.Meta{Name: "Apple Inc."})
	require.NoError(t, err)

	led := ledger.New()
	journal := reconcile.NewJournal()
	rec := reconcile.New(led, journal)
	book := order.NewBook(registry)
	book.SetFillSink(rec)

	quotes := marketdata.NewStaticSource()
	quotes.SetLast("AAPL", 190)
	var qsrc marketdata.QuoteSource = quotes
	if wrap != nil {
		qsrc = wrap(quotes)
	}
	klines := marketdata.NewKlineStore()
	watchlist := marketdata.NewWatchlist(quotes)
	svc := query.NewService(registry, book, led, journal, quotes)

	srv := api.NewServer(api.Config{DefaultAccount: "acct"}, api.Deps{
		Registry:  registry,
		Book:      book,
		Ledger:    led,
		Query:     svc,
		Watchlist: watchlist,
		Klines:    klines,
		Quotes:    qsrc,
	})
	srv.Start()
	t.Cleanup(srv.Stop)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &stack{server: srv, book: book, quotes: quotes, http: ts}
}

func (s *stack) post(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.http.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func (s *stack) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(s.http.URL + path)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func submitOrder(t *testing.T, s *stack, qty float64) int64 {
	t.Helper()
	resp := s.post(t, "/api/orders", map[string]interface{}{
		"symbol": "AAPL", "exchange": "NASDAQ",
		"side": "BUY", "type": "LIMIT", "quantity": qty, "price": 189.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var view struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	decode(t, resp, &view)
	assert.Equal(t, "SUBMITTED", view.Status)
	return view.ID
}

func TestServerSubmitAndListOrders(t *testing.T) {
	s := newStack(t)
	id := submitOrder(t, s, 10)
	assert.Positive(t, id)

	resp := s.get(t, "/api/orders")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []map[string]interface{}
	decode(t, resp, &orders)
	assert.Len(t, orders, 1)
}

func TestServerSubmitValidation(t *testing.T) {
	s := newStack(t)

	// 结构校验：缺少方向
	resp := s.post(t, "/api/orders", map[string]interface{}{
		"symbol": "AAPL", "exchange": "NASDAQ", "type": "MARKET", "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// 业务校验：限价单缺价格
	resp = s.post(t, "/api/orders", map[string]interface{}{
		"symbol": "AAPL", "exchange": "NASDAQ",
		"side": "BUY", "type": "LIMIT", "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	// 未注册合约
	resp = s.post(t, "/api/orders", map[string]interface{}{
		"symbol": "GME", "exchange": "NYSE",
		"side": "BUY", "type": "MARKET", "quantity": 1,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServerFillAndPositions(t *testing.T) {
	s := newStack(t)
	id := submitOrder(t, s, 10)

	resp := s.post(t, "/api/fills", map[string]interface{}{
		"orderId": id, "quantity": 10.0, "price": 185.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.get(t, "/api/positions")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var positions []struct {
		Symbol        string  `json:"symbol"`
		Quantity      float64 `json:"quantity"`
		AveragePrice  float64 `json:"averagePrice"`
		UnrealizedPnL float64 `json:"unrealizedPnL"`
	}
	decode(t, resp, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, 10.0, positions[0].Quantity)
	assert.Equal(t, 185.0, positions[0].AveragePrice)
	assert.InDelta(t, 50.0, positions[0].UnrealizedPnL, 1e-9)

	resp = s.get(t, "/api/transactions")
	var txns []map[string]interface{}
	decode(t, resp, &txns)
	assert.Len(t, txns, 1)
}

func TestServerOverfillConflict(t *testing.T) {
	s := newStack(t)
	id := submitOrder(t, s, 5)

	resp := s.post(t, "/api/fills", map[string]interface{}{
		"orderId": id, "quantity": 6.0, "price": 185.0,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestServerCancel(t *testing.T) {
	s := newStack(t)
	id := submitOrder(t, s, 5)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/orders/%d", s.http.URL, id), nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// 再撤返回冲突
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// 未知订单
	req, _ = http.NewRequest(http.MethodDelete, s.http.URL+"/api/orders/9999", nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServerCancelAll(t *testing.T) {
	s := newStack(t)
	filled := submitOrder(t, s, 5)
	submitOrder(t, s, 10)
	submitOrder(t, s, 15)

	resp := s.post(t, "/api/fills", map[string]interface{}{
		"orderId": filled, "quantity": 5.0, "price": 185.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.post(t, "/api/orders/cancel-all", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var report struct {
		Canceled int `json:"canceled"`
		Failures []struct {
			OrderID int64  `json:"orderId"`
			Error   string `json:"error"`
		} `json:"failures"`
	}
	decode(t, resp, &report)
	assert.Equal(t, 2, report.Canceled)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, filled, report.Failures[0].OrderID)
}

func TestServerClosePosition(t *testing.T) {
	s := newStack(t)
	id := submitOrder(t, s, 10)
	resp := s.post(t, "/api/fills", map[string]interface{}{
		"orderId": id, "quantity": 10.0, "price": 185.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	// 合约号从 1 开始分配
	resp = s.post(t, "/api/positions/1/close", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = s.get(t, "/api/positions")
	var positions []struct {
		Quantity    float64 `json:"quantity"`
		RealizedPnL float64 `json:"realizedPnL"`
	}
	decode(t, resp, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, 0.0, positions[0].Quantity)
	assert.InDelta(t, 50.0, positions[0].RealizedPnL, 1e-9)

	// 已平仓位再平返回 404
	resp = s.post(t, "/api/positions/1/close", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

// hookSource 行情源包装：下一次 Quote 调用前触发一次回调，
// 用于在平仓读取行情的瞬间插入并发事件
type hookSource struct {
	inner   *marketdata.StaticSource
	mu      sync.Mutex
	onQuote func()
}

func (h *hookSource) set(fn func()) {
	h.mu.Lock()
	h.onQuote = fn
	h.mu.Unlock()
}

func (h *hookSource) Quote(symbol string) (marketdata.Quote, error) {
	h.mu.Lock()
	fn := h.onQuote
	h.onQuote = nil
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
	return h.inner.Quote(symbol)
}

// TestServerClosePositionConcurrentFill 平仓下单期间另一笔订单成交落账：
// 平仓必须重读持仓快照，把新增数量一并对冲掉，不留残余仓位。
func TestServerClosePositionConcurrentFill(t *testing.T) {
	var hook *hookSource
	s := newStackQuotes(t, func(inner *marketdata.StaticSource) marketdata.QuoteSource {
		hook = &hookSource{inner: inner}
		return hook
	})

	a := submitOrder(t, s, 10)
	resp := s.post(t, "/api/fills", map[string]interface{}{
		"orderId": a, "quantity": 10.0, "price": 185.0,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	b := submitOrder(t, s, 5)
	hook.set(func() {
		_, err := s.book.RecordFill(order.ID(b), 5, 185)
		require.NoError(t, err)
	})

	resp = s.post(t, "/api/positions/1/close", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	// 两轮对冲：10@190 + 5@190，实现 (190-185)*15 = 75
	resp = s.get(t, "/api/positions")
	var positions []struct {
		Quantity    float64 `json:"quantity"`
		RealizedPnL float64 `json:"realizedPnL"`
	}
	decode(t, resp, &positions)
	require.Len(t, positions, 1)
	assert.Equal(t, 0.0, positions[0].Quantity)
	assert.InDelta(t, 75.0, positions[0].RealizedPnL, 1e-9)
}

func TestServerWatchlist(t *testing.T) {
	s := newStack(t)

	resp := s.post(t, "/api/watchlist", map[string]interface{}{
		"symbol": "AAPL", "exchange": "NASDAQ",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var item struct {
		ID int64 `json:"id"`
	}
	decode(t, resp, &item)

	// 未注册合约不允许加入
	resp = s.post(t, "/api/watchlist", map[string]interface{}{
		"symbol": "GME", "exchange": "NYSE",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = s.get(t, "/api/watchlist")
	var items []struct {
		Symbol string  `json:"symbol"`
		Last   float64 `json:"last"`
	}
	decode(t, resp, &items)
	require.Len(t, items, 1)
	assert.Equal(t, 190.0, items[0].Last)

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/watchlist/%d", s.http.URL, item.ID), nil)
	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, del.StatusCode)
	del.Body.Close()
}

func TestServerChart(t *testing.T) {
	s := newStack(t)

	resp := s.get(t, "/api/chart/AAPL/7m")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = s.get(t, "/api/chart/AAPL/1m")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestServerHealth(t *testing.T) {
	s := newStack(t)
	resp := s.get(t, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]interface{}
	decode(t, resp, &health)
	assert.Equal(t, "ok", health["status"])
}
